package varint

import "testing"

func TestRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 300, 16384, 1 << 40, ^uint64(0)}
	for _, v := range values {
		buf := AppendUvarint(nil, v)
		got, n, err := Uvarint(buf)
		if err != nil {
			t.Fatalf("v=%d: %v", v, err)
		}
		if got != v || n != len(buf) {
			t.Fatalf("v=%d: got %d, n=%d", v, got, n)
		}
	}
}

func TestSingleByteEncoding(t *testing.T) {
	buf := AppendUvarint(nil, 5)
	if len(buf) != 1 || buf[0] != 5 {
		t.Fatalf("got %v", buf)
	}
}

func TestUvarintIgnoresTrailingBytes(t *testing.T) {
	buf := AppendUvarint(nil, 300)
	buf = append(buf, 0xFF)
	got, n, err := Uvarint(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got != 300 || n != len(buf)-1 {
		t.Fatalf("got %d, n=%d", got, n)
	}
}

func TestUvarintRejectsTruncated(t *testing.T) {
	if _, _, err := Uvarint(nil); err == nil {
		t.Fatal("expected error for empty input")
	}
	if _, _, err := Uvarint([]byte{0x80, 0x80}); err == nil {
		t.Fatal("expected error for unterminated varint")
	}
}
