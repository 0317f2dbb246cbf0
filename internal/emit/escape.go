// Package emit holds the shared code-emission primitives used by every popup
// template: the escapers, the opaque token codec, the self-registering
// behavior fragment and the bundle that ties markup, style and behavior together.
//
// Two escapers exist and are never interchangeable. EscapeHTML produces text
// safe inside a markup tree; EscapeJSString produces the body of a quoted
// literal inside generated program text.
package emit

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

var htmlReplacer = strings.NewReplacer(
	`&`, "&amp;",
	`<`, "&lt;",
	`>`, "&gt;",
	`"`, "&#34;",
	`'`, "&#39;",
)

// EscapeHTML escapes the five reserved markup characters.
func EscapeHTML(s string) string {
	return htmlReplacer.Replace(s)
}

// EscapeJSString escapes s for use between quotes in generated JavaScript.
// Backslash is handled before quotes, and quotes before line breaks; '<' is
// escaped so the literal can never close an enclosing script element.
func EscapeJSString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\'':
			b.WriteString(`\'`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\u2028':
			b.WriteString(`\u2028`)
		case '\u2029':
			b.WriteString(`\u2029`)
		case '<':
			b.WriteString(`\u003c`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// JSString returns s as a complete double-quoted JavaScript literal.
func JSString(s string) string {
	return `"` + EscapeJSString(s) + `"`
}

// UnescapeJSString reverses EscapeJSString. It also accepts \t and any \uXXXX
// sequence so literals written by hand can be read back.
func UnescapeJSString(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(s) {
			return "", fmt.Errorf("unterminated escape at end of literal")
		}
		switch s[i] {
		case '\\', '"', '\'', '/':
			b.WriteByte(s[i])
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'u':
			if i+4 >= len(s) {
				return "", fmt.Errorf("short unicode escape at offset %d", i)
			}
			n, err := strconv.ParseUint(s[i+1:i+5], 16, 32)
			if err != nil {
				return "", fmt.Errorf("bad unicode escape %q: %w", s[i+1:i+5], err)
			}
			b.WriteRune(rune(n))
			i += 4
		default:
			return "", fmt.Errorf("unknown escape \\%c at offset %d", s[i], i)
		}
	}
	return b.String(), nil
}

// EscapeCSSString escapes s for use inside a double-quoted CSS string, such as
// an attribute selector value.
func EscapeCSSString(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '"' || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '\n' || r == '\r' || r == '\f' || r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, "\\%x ", r)
		case r == '<':
			b.WriteString(`\3c `)
		case r == utf8.RuneError:
			b.WriteString(`\fffd `)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// EncodeToken encodes an arbitrary payload as an opaque base64 token. Tokens
// survive any embedding context without escaping.
func EncodeToken(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

// DecodeToken reverses EncodeToken.
func DecodeToken(token string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("decoding token: %w", err)
	}
	return string(data), nil
}
