// Package sourcemap applies replacement spans to a document and records a
// version 3 source map for the result.
package sourcemap

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf16"

	m "nginline.dev/pkg/nginline/internal/model"
)

// ErrOverlap is returned when replacement spans overlap or are out of order.
// It always indicates a bug in the caller.
var ErrOverlap = errors.New("overlapping replacement spans")

const mapVersion = 3

// Result is a rewritten document and its source map.
type Result struct {
	Text string
	Map  m.SourceMap
}

// Rewrite copies doc.Text, substituting every span, in a single pass. spans
// must be sorted by Start and must not overlap. file is the basename
// recorded in the map; when empty the document's basename is used.
func Rewrite(doc m.Document, file string, spans []m.ReplacementSpan) (Result, error) {
	if err := validate(doc.Text, spans); err != nil {
		return Result{}, err
	}

	if file == "" {
		file = filepath.Base(string(doc.Path))
	}

	b := newBuilder(doc.Text)
	pos := 0

	for _, span := range spans {
		b.copyRun(pos, span.Start)
		b.substitute(span.Text, span.Start)
		pos = span.End
	}

	b.copyRun(pos, len(doc.Text))

	return Result{
		Text: b.out.String(),
		Map: m.SourceMap{
			Version:        mapVersion,
			File:           file,
			Sources:        []string{string(doc.Path)},
			SourcesContent: []string{doc.Text},
			Names:          []string{},
			Mappings:       b.encode(),
		},
	}, nil
}

func validate(text string, spans []m.ReplacementSpan) error {
	prevEnd := 0

	for i, span := range spans {
		if span.Start > span.End || span.End > len(text) {
			return fmt.Errorf("%w: span %d [%d,%d) out of range", ErrOverlap, i, span.Start, span.End)
		}

		if span.Start < prevEnd {
			return fmt.Errorf("%w: span %d starts at %d before previous end %d", ErrOverlap, i, span.Start, prevEnd)
		}

		prevEnd = span.End
	}

	return nil
}

// Sort orders spans by start offset, keeping the relative order of equal starts.
func Sort(spans []m.ReplacementSpan) {
	sort.SliceStable(spans, func(i, j int) bool {
		return spans[i].Start < spans[j].Start
	})
}

// Marshal encodes the map as JSON.
func Marshal(sm m.SourceMap) ([]byte, error) {
	return json.Marshal(sm)
}

// Comment returns a sourceMappingURL comment pointing at url.
func Comment(url string) string {
	return "//# sourceMappingURL=" + url
}

// InlineComment returns a sourceMappingURL comment embedding the map as a data URL.
func InlineComment(sm m.SourceMap) (string, error) {
	data, err := Marshal(sm)
	if err != nil {
		return "", err
	}

	return Comment("data:application/json;charset=utf-8;base64," + base64.StdEncoding.EncodeToString(data)), nil
}

type segment struct {
	genCol  int
	srcLine int
	srcCol  int
}

type builder struct {
	src        string
	lineStarts []int
	out        strings.Builder
	genCol     int
	lines      [][]segment
}

func newBuilder(src string) *builder {
	starts := []int{0}

	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			starts = append(starts, i+1)
		}
	}

	b := &builder{src: src, lineStarts: starts, lines: [][]segment{nil}}
	b.out.Grow(len(src))

	return b
}

// position converts a byte offset of the source into a line and a UTF-16 column.
func (b *builder) position(offset int) (int, int) {
	line := sort.Search(len(b.lineStarts), func(i int) bool {
		return b.lineStarts[i] > offset
	}) - 1

	return line, utf16Len(b.src[b.lineStarts[line]:offset])
}

func (b *builder) mark(srcOffset int) {
	line, col := b.position(srcOffset)
	cur := len(b.lines) - 1

	if n := len(b.lines[cur]); n > 0 && b.lines[cur][n-1].genCol == b.genCol {
		b.lines[cur][n-1] = segment{genCol: b.genCol, srcLine: line, srcCol: col}
		return
	}

	b.lines[cur] = append(b.lines[cur], segment{genCol: b.genCol, srcLine: line, srcCol: col})
}

// copyRun copies src[start:end] verbatim, mapping the run start and every line start in it.
func (b *builder) copyRun(start, end int) {
	if start >= end {
		return
	}

	b.mark(start)
	b.out.WriteString(b.src[start:end])

	b.advance(b.src[start:end], func(rel int) {
		b.mark(start + rel)
	})
}

// substitute writes text in place of a span starting at srcOffset. Each line
// of the replacement maps back to the span start.
func (b *builder) substitute(text string, srcOffset int) {
	if text == "" {
		return
	}

	b.mark(srcOffset)
	b.out.WriteString(text)

	b.advance(text, func(int) {
		b.mark(srcOffset)
	})
}

// advance moves the generated position over s, calling lineStart with the
// offset in s of every new line that has content.
func (b *builder) advance(s string, lineStart func(rel int)) {
	for i, r := range s {
		if r != '\n' {
			b.genCol += utf16.RuneLen(r)
			continue
		}

		b.lines = append(b.lines, nil)
		b.genCol = 0

		if i+1 < len(s) {
			lineStart(i + 1)
		}
	}
}

func (b *builder) encode() string {
	var sb strings.Builder

	prevLine, prevCol := 0, 0

	for i, segments := range b.lines {
		if i > 0 {
			sb.WriteByte(';')
		}

		prevGen := 0

		for j, seg := range segments {
			if j > 0 {
				sb.WriteByte(',')
			}

			writeVLQ(&sb, seg.genCol-prevGen)
			writeVLQ(&sb, 0)
			writeVLQ(&sb, seg.srcLine-prevLine)
			writeVLQ(&sb, seg.srcCol-prevCol)

			prevGen, prevLine, prevCol = seg.genCol, seg.srcLine, seg.srcCol
		}
	}

	return sb.String()
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}

	return n
}

const base64Digits = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// writeVLQ appends v as a base64 variable-length quantity.
func writeVLQ(sb *strings.Builder, v int) {
	vlq := v << 1
	if v < 0 {
		vlq = (-v << 1) | 1
	}

	for {
		digit := vlq & 31
		vlq >>= 5

		if vlq > 0 {
			digit |= 32
		}

		sb.WriteByte(base64Digits[digit])

		if vlq == 0 {
			return
		}
	}
}
