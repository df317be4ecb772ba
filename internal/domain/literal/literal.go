// Package literal turns file content into JavaScript string literals and back.
package literal

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	m "nginline.dev/pkg/nginline/internal/model"
)

// ErrInvalidLiteral reports text that is not a single constant string literal.
var ErrInvalidLiteral = errors.New("invalid string literal")

// Delimiter returns the quote character used for style.
func Delimiter(style m.LiteralStyle) byte {
	if style == m.StyleLegacy {
		return '\''
	}

	return '`'
}

// Escape escapes s for the body of a literal in the given style.
//
// Template literals keep raw line breaks; backslashes, backticks, "${" and
// carriage returns are escaped. Legacy literals are line-bound, so line
// breaks and the JavaScript line terminators U+2028/U+2029 are escaped too.
func Escape(s string, style m.LiteralStyle) string {
	var b strings.Builder

	b.Grow(len(s) + len(s)/8)

	legacy := style == m.StyleLegacy

	for i, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == '\r':
			b.WriteString(`\r`)
		case legacy && r == '\'':
			b.WriteString(`\'`)
		case legacy && r == '\n':
			b.WriteString(`\n`)
		case legacy && r == '\u2028':
			b.WriteString(`\u2028`)
		case legacy && r == '\u2029':
			b.WriteString(`\u2029`)
		case !legacy && r == '`':
			b.WriteString("\\`")
		case !legacy && r == '$' && strings.HasPrefix(s[i+1:], "{"):
			b.WriteString(`\$`)
		default:
			b.WriteRune(r)
		}
	}

	return b.String()
}

// Quote escapes s and wraps it in the delimiter of style.
func Quote(s string, style m.LiteralStyle) string {
	q := string(Delimiter(style))
	return q + Escape(s, style) + q
}

// Unquote decodes a single-quoted, double-quoted or backtick literal. Template
// literals with substitutions are rejected since their value is not constant.
func Unquote(lit string) (string, error) {
	if len(lit) < 2 {
		return "", fmt.Errorf("%w: %q", ErrInvalidLiteral, lit)
	}

	quote := lit[0]
	if (quote != '\'' && quote != '"' && quote != '`') || lit[len(lit)-1] != quote {
		return "", fmt.Errorf("%w: %q", ErrInvalidLiteral, lit)
	}

	body := lit[1 : len(lit)-1]

	var b strings.Builder

	b.Grow(len(body))

	for i := 0; i < len(body); {
		c := body[i]

		switch {
		case c == quote:
			return "", fmt.Errorf("%w: unescaped %q inside literal", ErrInvalidLiteral, quote)
		case quote == '`' && c == '$' && i+1 < len(body) && body[i+1] == '{':
			return "", fmt.Errorf("%w: template literal has substitutions", ErrInvalidLiteral)
		case quote != '`' && (c == '\n' || c == '\r'):
			return "", fmt.Errorf("%w: line break inside quoted string", ErrInvalidLiteral)
		case quote == '`' && c == '\r':
			// Template literals normalize CR and CRLF to LF.
			b.WriteByte('\n')

			i++
			if i < len(body) && body[i] == '\n' {
				i++
			}

		case c == '\\':
			n, err := unescape(&b, body, i)
			if err != nil {
				return "", err
			}

			i += n

		default:
			b.WriteByte(c)
			i++
		}
	}

	return b.String(), nil
}

// unescape decodes the escape sequence at body[i] and returns its length.
func unescape(b *strings.Builder, body string, i int) (int, error) {
	if i+1 >= len(body) {
		return 0, fmt.Errorf("%w: trailing backslash", ErrInvalidLiteral)
	}

	switch c := body[i+1]; c {
	case 'n':
		b.WriteByte('\n')
	case 'r':
		b.WriteByte('\r')
	case 't':
		b.WriteByte('\t')
	case 'b':
		b.WriteByte('\b')
	case 'f':
		b.WriteByte('\f')
	case 'v':
		b.WriteByte('\v')
	case '0':
		b.WriteByte(0)
	case '\n':
		// Line continuation.
	case '\r':
		if i+2 < len(body) && body[i+2] == '\n' {
			return 3, nil
		}
	case 'x':
		if i+4 > len(body) {
			return 0, fmt.Errorf("%w: short \\x escape", ErrInvalidLiteral)
		}

		v, err := strconv.ParseUint(body[i+2:i+4], 16, 8)
		if err != nil {
			return 0, fmt.Errorf("%w: bad \\x escape: %w", ErrInvalidLiteral, err)
		}

		b.WriteRune(rune(v))

		return 4, nil
	case 'u':
		return unescapeUnicode(b, body, i)
	default:
		r, size := utf8.DecodeRuneInString(body[i+1:])
		b.WriteRune(r)

		return 1 + size, nil
	}

	return 2, nil
}

func unescapeUnicode(b *strings.Builder, body string, i int) (int, error) {
	digits := body[i+2:]

	if strings.HasPrefix(digits, "{") {
		end := strings.IndexByte(digits, '}')
		if end < 0 {
			return 0, fmt.Errorf("%w: unterminated \\u{ escape", ErrInvalidLiteral)
		}

		v, err := strconv.ParseUint(digits[1:end], 16, 32)
		if err != nil || v > utf8.MaxRune {
			return 0, fmt.Errorf("%w: bad \\u{} escape", ErrInvalidLiteral)
		}

		b.WriteRune(rune(v))

		return 2 + end + 1, nil
	}

	if len(digits) < 4 {
		return 0, fmt.Errorf("%w: short \\u escape", ErrInvalidLiteral)
	}

	v, err := strconv.ParseUint(digits[:4], 16, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: bad \\u escape: %w", ErrInvalidLiteral, err)
	}

	b.WriteRune(rune(v))

	return 6, nil
}

// CollapseWhitespace joins the whitespace-separated words of s with single
// spaces, dropping line breaks and leading or trailing blanks.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Reindent puts every non-blank line of s on its own line prefixed with
// inner and closes with a line holding only outer, so the closing delimiter
// lines up with the property. Blank lines stay empty.
func Reindent(s, inner, outer string) string {
	lines := strings.Split(strings.Trim(s, "\r\n"), "\n")
	common := commonIndent(lines)

	var b strings.Builder

	b.WriteByte('\n')

	for _, line := range lines {
		line = strings.TrimRight(line, " \t\r")
		if line != "" {
			b.WriteString(inner)
			b.WriteString(line[common:])
		}

		b.WriteByte('\n')
	}

	b.WriteString(outer)

	return b.String()
}

// commonIndent returns the length of the whitespace prefix shared by all non-blank lines.
func commonIndent(lines []string) int {
	common := -1

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}

		n := len(line) - len(strings.TrimLeft(line, " \t"))
		if common < 0 || n < common {
			common = n
		}
	}

	if common < 0 {
		return 0
	}

	return common
}

// Array joins already quoted elements into an array literal.
func Array(elements []string) string {
	return "[" + strings.Join(elements, ", ") + "]"
}
