// Package syntax finds decorator metadata blocks and their properties in
// JavaScript/TypeScript source without parsing it. Everything here works on
// byte offsets into the original text.
package syntax

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedSource reports unbalanced delimiters or unterminated literals.
	ErrMalformedSource = errors.New("malformed source")
	// ErrPropertyExtraction reports a reference property whose value cannot be delimited.
	ErrPropertyExtraction = errors.New("property extraction failed")
)

func closerFor(c byte) byte {
	switch c {
	case '(':
		return ')'
	case '{':
		return '}'
	case '[':
		return ']'
	}

	return 0
}

func isCloser(c byte) bool {
	return c == ')' || c == '}' || c == ']'
}

func isQuote(c byte) bool {
	return c == '\'' || c == '"'
}

func isCommentStart(text string, i int) bool {
	return text[i] == '/' && i+1 < len(text) && (text[i+1] == '/' || text[i+1] == '*')
}

// Balanced returns the offset one past the delimiter matching text[open].
// String literals, template literals and comments are skipped, so delimiters
// inside them are not structural.
func Balanced(text string, open int) (int, error) {
	if open < 0 || open >= len(text) || closerFor(text[open]) == 0 {
		return 0, fmt.Errorf("%w: no opening delimiter at offset %d", ErrMalformedSource, open)
	}

	stack := []byte{closerFor(text[open])}

	for i := open + 1; i < len(text); {
		c := text[i]

		switch {
		case isQuote(c):
			end, err := SkipString(text, i)
			if err != nil {
				return 0, err
			}

			i = end

			continue

		case c == '`':
			end, err := SkipTemplate(text, i)
			if err != nil {
				return 0, err
			}

			i = end

			continue

		case isCommentStart(text, i):
			end, err := SkipComment(text, i)
			if err != nil {
				return 0, err
			}

			i = end

			continue

		case closerFor(c) != 0:
			stack = append(stack, closerFor(c))

		case isCloser(c):
			want := stack[len(stack)-1]
			if c != want {
				return 0, fmt.Errorf("%w: unexpected %q at offset %d, want %q", ErrMalformedSource, c, i, want)
			}

			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i + 1, nil
			}
		}

		i++
	}

	return 0, fmt.Errorf("%w: %q at offset %d is never closed", ErrMalformedSource, text[open], open)
}

// SkipString returns the offset one past the quote closing the string at text[start].
// Line-bound strings may not contain a raw line break.
func SkipString(text string, start int) (int, error) {
	quote := text[start]

	for i := start + 1; i < len(text); i++ {
		switch text[i] {
		case '\\':
			i++
		case quote:
			return i + 1, nil
		case '\n':
			return 0, fmt.Errorf("%w: unterminated string at offset %d", ErrMalformedSource, start)
		}
	}

	return 0, fmt.Errorf("%w: unterminated string at offset %d", ErrMalformedSource, start)
}

// SkipTemplate returns the offset one past the backtick closing the template
// literal at text[start]. Braces in the literal body are ignored; those of
// ${...} substitutions must balance.
func SkipTemplate(text string, start int) (int, error) {
	for i := start + 1; i < len(text); {
		switch {
		case text[i] == '\\':
			i += 2
		case text[i] == '`':
			return i + 1, nil
		case text[i] == '$' && i+1 < len(text) && text[i+1] == '{':
			end, err := Balanced(text, i+1)
			if err != nil {
				return 0, err
			}

			i = end
		default:
			i++
		}
	}

	return 0, fmt.Errorf("%w: unterminated template literal at offset %d", ErrMalformedSource, start)
}

// SkipComment returns the offset just past the comment at text[start].
// Line comments end before the line break.
func SkipComment(text string, start int) (int, error) {
	if text[start+1] == '/' {
		for i := start + 2; i < len(text); i++ {
			if text[i] == '\n' {
				return i, nil
			}
		}

		return len(text), nil
	}

	for i := start + 2; i+1 < len(text); i++ {
		if text[i] == '*' && text[i+1] == '/' {
			return i + 2, nil
		}
	}

	return 0, fmt.Errorf("%w: unterminated comment at offset %d", ErrMalformedSource, start)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

// SkipTrivia skips whitespace and comments starting at i, stopping at limit.
func SkipTrivia(text string, i, limit int) (int, error) {
	for i < limit {
		switch {
		case isSpace(text[i]):
			i++
		case isCommentStart(text, i):
			end, err := SkipComment(text, i)
			if err != nil {
				return 0, err
			}

			i = end
		default:
			return i, nil
		}
	}

	return limit, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// scanIdent returns the end of the identifier starting at i.
func scanIdent(text string, i int) int {
	for i < len(text) && isIdentPart(text[i]) {
		i++
	}

	return i
}
