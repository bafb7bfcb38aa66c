package v1

import (
	"encoding/binary"
	"fmt"

	"github.com/jg-phare/mcslauncherd/internal/protocol/varint"
)

// frameMagic identifies a binary frame: 4 bytes, big-endian.
const frameMagic uint32 = 0x00002CBB

// BinaryFrame is a decoded binary protocol frame: a JSON body (itself a
// Request) plus an optional raw attachment, used exclusively by
// file_upload_chunk_raw.
type BinaryFrame struct {
	Body       []byte
	Attachment []byte
}

// ParseBinaryFrame decodes magic + varint(bodyLen) + varint(attachmentLen) +
// body + attachment from raw. The declared lengths are untrusted client
// input and are validated against the bytes actually present before any
// slicing, so a hostile header can't drive an oversized allocation.
func ParseBinaryFrame(raw []byte) (BinaryFrame, error) {
	if len(raw) < 4 {
		return BinaryFrame{}, fmt.Errorf("v1: frame too short")
	}
	magic := binary.BigEndian.Uint32(raw[:4])
	if magic != frameMagic {
		return BinaryFrame{}, fmt.Errorf("v1: bad magic %#x", magic)
	}

	rest := raw[4:]
	bodyLen, n, err := varint.Uvarint(rest)
	if err != nil {
		return BinaryFrame{}, fmt.Errorf("v1: read body length: %w", err)
	}
	rest = rest[n:]
	attachLen, n, err := varint.Uvarint(rest)
	if err != nil {
		return BinaryFrame{}, fmt.Errorf("v1: read attachment length: %w", err)
	}
	rest = rest[n:]

	if bodyLen > uint64(len(rest)) {
		return BinaryFrame{}, fmt.Errorf("v1: body length %d exceeds remaining frame size %d", bodyLen, len(rest))
	}
	if attachLen > uint64(len(rest))-bodyLen {
		return BinaryFrame{}, fmt.Errorf("v1: attachment length %d exceeds remaining frame size %d", attachLen, uint64(len(rest))-bodyLen)
	}

	return BinaryFrame{
		Body:       rest[:bodyLen],
		Attachment: rest[bodyLen : bodyLen+attachLen],
	}, nil
}

// EncodeBinaryFrame is the inverse of ParseBinaryFrame, used to build
// attachment-carrying responses such as download_range replies.
func EncodeBinaryFrame(body, attachment []byte) []byte {
	out := make([]byte, 4)
	binary.BigEndian.PutUint32(out, frameMagic)
	out = varint.AppendUvarint(out, uint64(len(body)))
	out = varint.AppendUvarint(out, uint64(len(attachment)))
	out = append(out, body...)
	out = append(out, attachment...)
	return out
}
