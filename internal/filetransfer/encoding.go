package filetransfer

import "unicode/utf16"

// EncodeText reinterprets raw bytes as big-endian UTF-16 code units for the
// protocol's text-mode chunk transport: the byte slice is zero-padded to an
// even length, then consecutive byte pairs are read as big-endian uint16s
// and the resulting code units are decoded into a string.
func EncodeText(raw []byte) string {
	padded := raw
	if len(padded)%2 != 0 {
		padded = append(append(make([]byte, 0, len(raw)+1), raw...), 0)
	}
	units := make([]uint16, len(padded)/2)
	for i := range units {
		units[i] = uint16(padded[2*i])<<8 | uint16(padded[2*i+1])
	}
	return string(utf16.Decode(units))
}

// DecodeText reverses EncodeText: the string's UTF-16 code units become two
// bytes each, high byte first. The caller is responsible for trimming any
// padding byte it knows was added (the declared chunk length travels
// alongside the data).
func DecodeText(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, len(units)*2)
	for i, u := range units {
		out[2*i] = byte(u >> 8)
		out[2*i+1] = byte(u)
	}
	return out
}
