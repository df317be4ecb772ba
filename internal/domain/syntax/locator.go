package syntax

import (
	"iter"

	m "nginline.dev/pkg/nginline/internal/model"
)

// Locator finds decorator blocks whose name matches one of its signatures.
type Locator struct {
	signatures map[string]m.Signature
}

// NewLocator builds a Locator for the given signatures.
func NewLocator(signatures []m.Signature) *Locator {
	byName := make(map[string]m.Signature, len(signatures))
	for _, sig := range signatures {
		byName[sig.Name] = sig
	}

	return &Locator{signatures: byName}
}

// Blocks yields the metadata blocks of text in document order. Scanning
// resumes right after each decorator's opening parenthesis, so a block nested
// inside another block's argument is reported too. The sequence stops after
// the first error.
//
// Outside of a matched block the scan is lenient: a quote that does not close
// on its line is treated as a plain character.
func (l *Locator) Blocks(text string) iter.Seq2[m.Block, error] {
	return func(yield func(m.Block, error) bool) {
		for i := 0; i < len(text); {
			c := text[i]

			switch {
			case isQuote(c):
				i = skipLenient(text, i, SkipString)

			case c == '`':
				i = skipLenient(text, i, SkipTemplate)

			case isCommentStart(text, i):
				i = skipLenient(text, i, SkipComment)

			case c == '@':
				block, next, ok, err := l.match(text, i)
				if err != nil {
					yield(m.Block{}, err)
					return
				}

				if ok && !yield(block, nil) {
					return
				}

				i = next

			default:
				i++
			}
		}
	}
}

func skipLenient(text string, i int, skip func(string, int) (int, error)) int {
	end, err := skip(text, i)
	if err != nil {
		return i + 1
	}

	return end
}

// match tries to read a recognized decorator call at text[at] == '@'.
func (l *Locator) match(text string, at int) (m.Block, int, bool, error) {
	nameEnd := scanIdent(text, at+1)
	if nameEnd == at+1 {
		return m.Block{}, at + 1, false, nil
	}

	sig, known := l.signatures[text[at+1:nameEnd]]
	if !known {
		return m.Block{}, nameEnd, false, nil
	}

	paren, err := SkipTrivia(text, nameEnd, len(text))
	if err != nil || paren >= len(text) || text[paren] != '(' {
		return m.Block{}, nameEnd, false, nil
	}

	brace, err := SkipTrivia(text, paren+1, len(text))
	if err != nil || brace >= len(text) || text[brace] != '{' {
		return m.Block{}, paren + 1, false, nil
	}

	callEnd, err := Balanced(text, paren)
	if err != nil {
		return m.Block{}, 0, false, err
	}

	end, err := Balanced(text, brace)
	if err != nil {
		return m.Block{}, 0, false, err
	}

	block := m.Block{
		Kind:    sig.Kind,
		Name:    sig.Name,
		Start:   at,
		Open:    brace,
		End:     end,
		CallEnd: callEnd,
	}

	return block, paren + 1, true, nil
}

// Units groups the blocks of text into logical units. A block is joined with
// the block that directly follows its decorator call (only whitespace and
// comments in between) when its signature joins with that block's kind.
func (l *Locator) Units(text string) ([]m.Unit, error) {
	var blocks []m.Block

	for block, err := range l.Blocks(text) {
		if err != nil {
			return nil, err
		}

		blocks = append(blocks, block)
	}

	units := make([]m.Unit, 0, len(blocks))

	for i := 0; i < len(blocks); i++ {
		unit := m.Unit{Blocks: []m.Block{blocks[i]}}

		if i+1 < len(blocks) && l.joins(text, blocks[i], blocks[i+1]) {
			unit.Blocks = append(unit.Blocks, blocks[i+1])
			i++
		}

		units = append(units, unit)
	}

	return units, nil
}

func (l *Locator) joins(text string, first, next m.Block) bool {
	sig := l.signatures[first.Name]
	if sig.JoinsWith == "" || sig.JoinsWith != next.Kind {
		return false
	}

	if next.Start < first.CallEnd {
		return false
	}

	gap, err := SkipTrivia(text, first.CallEnd, next.Start)

	return err == nil && gap == next.Start
}
