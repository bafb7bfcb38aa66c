package instance

import (
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
)

// codecFor maps an instance's declared console encoding name to a codec.
// Unknown or empty names fall back to UTF-8, which is transparent.
func codecFor(name string) encoding.Encoding {
	switch strings.ToLower(name) {
	case "", "utf-8", "utf8":
		return unicode.UTF8
	case "gbk":
		return simplifiedchinese.GBK
	case "gb18030":
		return simplifiedchinese.GB18030
	case "latin1", "iso-8859-1":
		return charmap.ISO8859_1
	default:
		return unicode.UTF8
	}
}

// decoderFor returns a function converting raw console output bytes (carried
// as a string) into UTF-8.
func decoderFor(name string) func(string) string {
	enc := codecFor(name)
	if enc == unicode.UTF8 {
		return func(s string) string { return s }
	}
	dec := enc.NewDecoder()
	return func(s string) string {
		out, err := dec.String(s)
		if err != nil {
			return s
		}
		return out
	}
}

// encoderFor returns a function converting a UTF-8 stdin line into the
// child's declared input encoding.
func encoderFor(name string) func(string) string {
	enc := codecFor(name)
	if enc == unicode.UTF8 {
		return func(s string) string { return s }
	}
	e := enc.NewEncoder()
	return func(s string) string {
		out, err := e.String(s)
		if err != nil {
			return s
		}
		return out
	}
}
