package syntax

import (
	"fmt"
	"log/slog"

	"nginline.dev/pkg/nginline/internal/domain/literal"
	m "nginline.dev/pkg/nginline/internal/model"
)

// TopLevelProperties lists the key/value pairs directly inside the object
// literal of block. Values of nested objects are skipped as a whole.
// Entries without a colon (shorthand, spread, methods) are not reported.
func TopLevelProperties(text string, block m.Block) ([]m.Property, error) {
	var props []m.Property

	limit := block.End - 1

	for i := block.Open + 1; i < limit; {
		start, err := SkipTrivia(text, i, limit)
		if err != nil {
			return nil, err
		}

		if start >= limit {
			break
		}

		prop, next, ok, err := scanProperty(text, start, limit)
		if err != nil {
			return nil, err
		}

		if ok {
			props = append(props, prop)
		}

		i = next
	}

	return props, nil
}

// scanProperty reads one entry at text[start] and returns the offset after its trailing comma.
func scanProperty(text string, start, limit int) (m.Property, int, bool, error) {
	prop := m.Property{KeyStart: start, Comma: -1}

	i := start

	switch c := text[i]; {
	case isQuote(c):
		end, err := SkipString(text, i)
		if err != nil {
			return prop, 0, false, err
		}

		key, err := literal.Unquote(text[i:end])
		if err != nil {
			return prop, 0, false, fmt.Errorf("%w: key at offset %d: %w", ErrMalformedSource, i, err)
		}

		prop.Key = key
		prop.KeyQuote = c
		i = end

	case isIdentStart(c):
		i = scanIdent(text, i)
		prop.Key = text[start:i]
	}

	prop.KeyEnd = i

	colon, err := SkipTrivia(text, i, limit)
	if err != nil {
		return prop, 0, false, err
	}

	if prop.Key == "" || colon >= limit || text[colon] != ':' {
		_, comma, err := scanValue(text, i, limit)
		if err != nil {
			return prop, 0, false, err
		}

		return prop, nextAfter(comma, limit), false, nil
	}

	valueStart, err := SkipTrivia(text, colon+1, limit)
	if err != nil {
		return prop, 0, false, err
	}

	valueEnd, comma, err := scanValue(text, valueStart, limit)
	if err != nil {
		return prop, 0, false, fmt.Errorf("%w: property %q: %w", ErrPropertyExtraction, prop.Key, err)
	}

	prop.ValueStart = valueStart
	prop.ValueEnd = valueEnd
	prop.Comma = comma

	return prop, nextAfter(comma, limit), true, nil
}

func nextAfter(comma, limit int) int {
	if comma < 0 {
		return limit
	}

	return comma + 1
}

// scanValue scans an expression up to the next top-level comma or limit. It
// returns the end of the last token and the comma offset (-1 when none).
func scanValue(text string, i, limit int) (int, int, error) {
	last := i

	for i < limit {
		c := text[i]

		var (
			end int
			err error
		)

		switch {
		case c == ',':
			return last, i, nil
		case isSpace(c):
			i++
			continue
		case isCommentStart(text, i):
			if i, err = SkipComment(text, i); err != nil {
				return 0, 0, err
			}

			continue
		case isQuote(c):
			end, err = SkipString(text, i)
		case c == '`':
			end, err = SkipTemplate(text, i)
		case closerFor(c) != 0:
			end, err = Balanced(text, i)
		case isCloser(c):
			return 0, 0, fmt.Errorf("%w: unexpected %q at offset %d", ErrMalformedSource, c, i)
		default:
			end = i + 1
		}

		if err != nil {
			return 0, 0, err
		}

		if end > limit {
			return 0, 0, fmt.Errorf("%w: value at offset %d runs past its block", ErrMalformedSource, i)
		}

		i = end
		last = end
	}

	return last, -1, nil
}

// ReferenceID is the companion identifier property of a block (moduleId).
// PrevComma is the comma ending the preceding property, or -1.
type ReferenceID struct {
	Property  m.Property
	Block     m.Block
	PrevComma int
}

// Extraction holds the reference properties found in one unit.
type Extraction struct {
	Matches      []m.PropertyMatch
	ReferenceIDs []ReferenceID
}

// Extractor recognizes reference properties in blocks.
type Extractor struct {
	rules      map[string]m.PropertyRule
	idProperty string
}

// NewExtractor builds an Extractor. idProperty may be empty.
func NewExtractor(rules []m.PropertyRule, idProperty string) *Extractor {
	byName := make(map[string]m.PropertyRule, len(rules))
	for _, rule := range rules {
		byName[rule.Reference] = rule
	}

	return &Extractor{rules: byName, idProperty: idProperty}
}

// Extract returns the reference properties of unit in document order. The
// first property producing a given inline name wins, as does the first ID
// property of each block; later ones and values that are not string literals are left
// untouched.
func (e *Extractor) Extract(text string, unit m.Unit) (Extraction, error) {
	var out Extraction

	seen := make(map[string]bool)

	for _, block := range unit.Blocks {
		seenID := false

		props, err := TopLevelProperties(text, block)
		if err != nil {
			return Extraction{}, err
		}

		for idx, prop := range props {
			if e.idProperty != "" && prop.Key == e.idProperty {
				if seenID {
					slog.Warn("duplicate reference id property left untouched", "property", prop.Key, "offset", prop.KeyStart)
					continue
				}

				seenID = true

				prev := -1
				if idx > 0 {
					prev = props[idx-1].Comma
				}

				out.ReferenceIDs = append(out.ReferenceIDs, ReferenceID{Property: prop, Block: block, PrevComma: prev})

				continue
			}

			rule, ok := e.rules[prop.Key]
			if !ok {
				continue
			}

			if seen[rule.Inline] {
				slog.Warn("duplicate reference property left untouched", "property", prop.Key, "inline", rule.Inline, "offset", prop.KeyStart)
				continue
			}

			seen[rule.Inline] = true

			match, ok, err := e.match(text, rule, prop, block)
			if err != nil {
				return Extraction{}, err
			}

			if ok {
				out.Matches = append(out.Matches, match)
			}
		}
	}

	return out, nil
}

func (e *Extractor) match(text string, rule m.PropertyRule, prop m.Property, block m.Block) (m.PropertyMatch, bool, error) {
	if prop.ValueStart >= prop.ValueEnd {
		return m.PropertyMatch{}, false, fmt.Errorf("%w: property %q at offset %d has no value", ErrPropertyExtraction, prop.Key, prop.KeyStart)
	}

	value := text[prop.ValueStart:prop.ValueEnd]

	var (
		paths []string
		ok    bool
		err   error
	)

	switch rule.Shape {
	case m.ShapeArray:
		paths, ok, err = stringArray(value)
	default:
		var path string

		path, ok = stringLiteral(value)
		paths = []string{path}
	}

	if err != nil {
		return m.PropertyMatch{}, false, fmt.Errorf("%w: property %q at offset %d: %w", ErrPropertyExtraction, prop.Key, prop.KeyStart, err)
	}

	if !ok {
		slog.Debug("reference property is not a literal, leaving it untouched", "property", prop.Key, "offset", prop.KeyStart)
		return m.PropertyMatch{}, false, nil
	}

	return m.PropertyMatch{Rule: rule, Property: prop, Block: block, Paths: paths}, true, nil
}

// stringLiteral decodes value when it is exactly one constant string literal.
func stringLiteral(value string) (string, bool) {
	if value == "" || (!isQuote(value[0]) && value[0] != '`') {
		return "", false
	}

	s, err := literal.Unquote(value)
	if err != nil {
		return "", false
	}

	return s, true
}

// stringArray decodes value when it is an array literal of constant strings.
func stringArray(value string) ([]string, bool, error) {
	if value == "" || value[0] != '[' {
		return nil, false, nil
	}

	end, err := Balanced(value, 0)
	if err != nil {
		return nil, false, err
	}

	if end != len(value) {
		return nil, false, nil
	}

	paths := []string{}
	limit := len(value) - 1

	for i := 1; i < limit; {
		start, err := SkipTrivia(value, i, limit)
		if err != nil {
			return nil, false, err
		}

		if start >= limit {
			break
		}

		elemEnd, comma, err := scanValue(value, start, limit)
		if err != nil {
			return nil, false, err
		}

		path, ok := stringLiteral(value[start:elemEnd])
		if !ok {
			return nil, false, nil
		}

		paths = append(paths, path)
		i = nextAfter(comma, limit)
	}

	return paths, true, nil
}
