package emit

import (
	"fmt"
	"strings"
	"unicode"
)

// quote renders s as a double-quoted literal with C-style escapes, which
// Python, JavaScript and Rust all accept. wide formats escapes for runes the
// target cannot take verbatim.
func quote(s string, wide func(r rune) string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			if r < 0x20 || r == 0x7f || r == 0x2028 || r == 0x2029 || (r > 0x7f && !unicode.IsPrint(r)) {
				b.WriteString(wide(r))
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func pyEscape(r rune) string {
	if r <= 0xff {
		return fmt.Sprintf(`\x%02x`, r)
	}
	if r <= 0xffff {
		return fmt.Sprintf(`\u%04x`, r)
	}
	return fmt.Sprintf(`\U%08x`, r)
}

func braceEscape(r rune) string {
	return fmt.Sprintf(`\u{%x}`, r)
}
