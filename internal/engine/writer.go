package engine

import (
	"strconv"
	"unicode/utf8"

	j "github.com/goccy/go-json"
)

// Output flags. The public goserde flags alias these bits.
const (
	FlagPrettyPrint uint32 = 1 << iota
	FlagUnescapedSlashes
	FlagUnescapedUnicode
	FlagPreserveZeroFraction
)

const hexDigits = "0123456789abcdef"

// AppendString appends s as a quoted JSON string. The base escaping (quotes,
// backslashes, control characters, invalid UTF-8) is delegated to go-json;
// slash and non-ASCII escaping follow flags.
func AppendString(dst []byte, s string, flags uint32) ([]byte, error) {
	quoted, err := j.MarshalNoEscape(s)
	if err != nil {
		return dst, err
	}
	escapeSlashes := flags&FlagUnescapedSlashes == 0
	escapeUnicode := flags&FlagUnescapedUnicode == 0
	if !escapeSlashes && !escapeUnicode {
		return append(dst, quoted...), nil
	}
	for i := 0; i < len(quoted); {
		c := quoted[i]
		switch {
		case c == '/' && escapeSlashes:
			dst = append(dst, '\\', '/')
			i++
		case c >= utf8.RuneSelf && escapeUnicode:
			r, size := utf8.DecodeRune(quoted[i:])
			dst = appendUnicodeEscape(dst, r)
			i += size
		default:
			dst = append(dst, c)
			i++
		}
	}
	return dst, nil
}

func appendUnicodeEscape(dst []byte, r rune) []byte {
	if r > 0xFFFF {
		r -= 0x10000
		dst = appendU4(dst, 0xD800+(r>>10)&0x3FF)
		return appendU4(dst, 0xDC00+r&0x3FF)
	}
	return appendU4(dst, r)
}

func appendU4(dst []byte, r rune) []byte {
	return append(dst, '\\', 'u',
		hexDigits[(r>>12)&0xF], hexDigits[(r>>8)&0xF], hexDigits[(r>>4)&0xF], hexDigits[r&0xF])
}

// AppendFloat appends f using go-json's number formatting. NaN and infinities
// are rejected because JSON cannot represent them.
func AppendFloat(dst []byte, f float64, flags uint32) ([]byte, error) {
	b, err := j.Marshal(f)
	if err != nil {
		return dst, err
	}
	dst = append(dst, b...)
	if flags&FlagPreserveZeroFraction != 0 && isIntegralLiteral(b) {
		dst = append(dst, '.', '0')
	}
	return dst, nil
}

func isIntegralLiteral(b []byte) bool {
	for _, c := range b {
		if c == '.' || c == 'e' || c == 'E' {
			return false
		}
	}
	return true
}

// AppendInt appends a base-10 integer.
func AppendInt(dst []byte, i int64) []byte { return strconv.AppendInt(dst, i, 10) }

// AppendUint appends a base-10 unsigned integer.
func AppendUint(dst []byte, u uint64) []byte { return strconv.AppendUint(dst, u, 10) }

// AppendBool appends true or false.
func AppendBool(dst []byte, b bool) []byte { return strconv.AppendBool(dst, b) }

// AppendNewline appends a newline followed by level levels of indentation.
func AppendNewline(dst []byte, level int) []byte {
	dst = append(dst, '\n')
	for i := 0; i < level; i++ {
		dst = append(dst, "    "...)
	}
	return dst
}

// KeySeparator returns the bytes written between an object key and its value.
func KeySeparator(flags uint32) string {
	if flags&FlagPrettyPrint != 0 {
		return ": "
	}
	return ":"
}
