// browser/dom/escape.go
package dom

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// EscapeIdent serializes s as a CSS identifier (CSSOM "serialize an
// identifier"), so it can follow '#' or '.' in a selector verbatim.
func EscapeIdent(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	first, _ := utf8.DecodeRuneInString(s)
	i := 0
	for _, r := range s {
		switch {
		case r == 0:
			b.WriteRune(utf8.RuneError)
		case r >= 0x01 && r <= 0x1f, r == 0x7f:
			writeHexEscape(&b, r)
		case i == 0 && r >= '0' && r <= '9':
			writeHexEscape(&b, r)
		case i == 1 && r >= '0' && r <= '9' && first == '-':
			writeHexEscape(&b, r)
		case i == 0 && r == '-' && utf8.RuneCountInString(s) == 1:
			b.WriteString(`\-`)
		case r >= 0x80, r == '-', r == '_',
			r >= '0' && r <= '9',
			r >= 'A' && r <= 'Z',
			r >= 'a' && r <= 'z':
			b.WriteRune(r)
		default:
			b.WriteByte('\\')
			b.WriteRune(r)
		}
		i++
	}
	return b.String()
}

// QuoteString serializes s as a double quoted CSS string (CSSOM "serialize a
// string"), for use as an attribute selector value.
func QuoteString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch {
		case r == 0:
			b.WriteRune(utf8.RuneError)
		case r >= 0x01 && r <= 0x1f, r == 0x7f:
			writeHexEscape(&b, r)
		case r == '"', r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func writeHexEscape(b *strings.Builder, r rune) {
	fmt.Fprintf(b, `\%x `, r)
}
