// Package encoding decodes the fixed-size name fields of Nitro files.
//
// Names are 16-byte NUL-padded fields. Most are ASCII; models from Japanese
// releases use Shift JIS.
package encoding

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// NameSize is the size of a name field.
const NameSize = 16

// ShiftJISToUTF8 converts Shift JIS encoded bytes to a UTF-8 string. ASCII
// is returned unchanged, as are bytes that don't decode.
func ShiftJISToUTF8(data []byte) string {
	if isASCII(data) {
		return string(data)
	}
	result, _, err := transform.Bytes(japanese.ShiftJIS.NewDecoder(), data)
	if err != nil || !utf8.Valid(result) {
		return string(data)
	}
	return string(result)
}

// UTF8ToShiftJIS converts a UTF-8 string to Shift JIS. Returns the original
// bytes if some rune has no Shift JIS encoding.
func UTF8ToShiftJIS(s string) []byte {
	result, _, err := transform.Bytes(japanese.ShiftJIS.NewEncoder(), []byte(s))
	if err != nil {
		return []byte(s)
	}
	return result
}

// FixedStringToUTF8 converts a NUL-padded name field to UTF-8. Trailing NULs
// are dropped; other control bytes, NULs included, show as '.'.
func FixedStringToUTF8(data []byte) string {
	data = bytes.TrimRight(data, "\x00")
	clean := make([]byte, len(data))
	for i, c := range data {
		if c < 0x20 {
			c = '.'
		}
		clean[i] = c
	}
	return ShiftJISToUTF8(clean)
}

// UTF8ToFixedString encodes s as a name field of size bytes, NUL-padded.
// Names too long for the field are truncated.
func UTF8ToFixedString(s string, size int) []byte {
	result := make([]byte, size)
	copy(result, UTF8ToShiftJIS(s))
	return result
}

func isASCII(data []byte) bool {
	for _, c := range data {
		if c >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
