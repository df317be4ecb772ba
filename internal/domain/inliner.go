// Package domain contains the inlining engine and the multi-document workflow.
package domain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"nginline.dev/pkg/nginline/internal/adapter"
	"nginline.dev/pkg/nginline/internal/domain/literal"
	"nginline.dev/pkg/nginline/internal/domain/sourcemap"
	"nginline.dev/pkg/nginline/internal/domain/syntax"
	m "nginline.dev/pkg/nginline/internal/model"
)

// Inliner rewrites reference properties of one document into inline content.
type Inliner interface {
	// Inline transforms doc. On error nothing is emitted for the document.
	Inline(ctx context.Context, doc m.Document) (m.Output, error)
	// References lists the reference properties of doc without resolving them.
	References(ctx context.Context, doc m.Document) ([]m.ReferenceInfo, error)
	// Dependencies returns the lookup paths of every file doc references.
	Dependencies(ctx context.Context, doc m.Document) ([]m.Path, error)
}

type inliner struct {
	opts      m.Options
	locator   *syntax.Locator
	extractor *syntax.Extractor
	resolver  *resolver
}

// NewInliner creates an Inliner reading referenced files through fsAdapter.
func NewInliner(fsAdapter adapter.SourceFSAdapter, opts m.Options) Inliner {
	opts = opts.WithDefaults()

	idProperty := ""
	if opts.RemoveReferenceIDProperty {
		idProperty = opts.ReferenceIDProperty
	}

	return &inliner{
		opts:      opts,
		locator:   syntax.NewLocator(opts.Signatures),
		extractor: syntax.NewExtractor(opts.Rules, idProperty),
		resolver:  &resolver{fs: fsAdapter, opts: opts},
	}
}

// job is one referenced file of one match.
type job struct {
	match int
	ref   string
}

func (in *inliner) Inline(ctx context.Context, doc m.Document) (m.Output, error) {
	out, err := in.inline(ctx, doc)
	if err != nil {
		slog.Debug("document transformation failed", "path", doc.Path, "stage", m.StageFailed, "error", err)
		return m.Output{}, err
	}

	slog.Debug("document transformed", "path", doc.Path, "stage", m.StageDone, "replacements", out.Replacements)

	return out, nil
}

func (in *inliner) inline(ctx context.Context, doc m.Document) (m.Output, error) {
	slog.Debug("transforming document", "path", doc.Path, "stage", m.StageScanning)

	extraction, err := in.extract(doc)
	if err != nil {
		return m.Output{}, err
	}

	slog.Debug("resolving references", "path", doc.Path, "stage", m.StageResolving, "matches", len(extraction.Matches))

	resolved, err := in.resolveAll(ctx, doc, extraction.Matches)
	if err != nil {
		return m.Output{}, err
	}

	slog.Debug("rewriting document", "path", doc.Path, "stage", m.StageRewriting)

	spans, replaced, skipped := in.replacements(doc.Text, extraction, resolved)

	result, err := sourcemap.Rewrite(doc, "", spans)
	if err != nil {
		return m.Output{}, err
	}

	return m.Output{
		Document:     doc,
		Text:         result.Text,
		Map:          result.Map,
		Replacements: replaced,
		Skipped:      skipped,
	}, nil
}

// extract locates every unit of doc and collects its reference properties in document order.
func (in *inliner) extract(doc m.Document) (syntax.Extraction, error) {
	units, err := in.locator.Units(doc.Text)
	if err != nil {
		return syntax.Extraction{}, err
	}

	slog.Debug("extracting properties", "path", doc.Path, "stage", m.StageExtracting, "units", len(units))

	var all syntax.Extraction

	for _, unit := range units {
		extraction, err := in.extractor.Extract(doc.Text, unit)
		if err != nil {
			return syntax.Extraction{}, err
		}

		all.Matches = append(all.Matches, extraction.Matches...)
		all.ReferenceIDs = append(all.ReferenceIDs, extraction.ReferenceIDs...)
	}

	return all, nil
}

// resolveAll resolves every referenced file concurrently and returns the
// results grouped per match, in discovery order.
func (in *inliner) resolveAll(ctx context.Context, doc m.Document, matches []m.PropertyMatch) ([][]m.ResolvedContent, error) {
	var jobs []job

	for i, match := range matches {
		for _, ref := range match.Paths {
			jobs = append(jobs, job{match: i, ref: ref})
		}
	}

	results := make([]m.ResolvedContent, len(jobs))

	group, groupCtx := errgroup.WithContext(ctx)
	if in.opts.ResolveParallelism > 0 {
		group.SetLimit(in.opts.ResolveParallelism)
	}

	for i, j := range jobs {
		kind := matches[j.match].Rule.Kind

		group.Go(func() error {
			resolved, err := in.resolver.resolve(groupCtx, doc, kind, j.ref)
			if err != nil {
				return err
			}

			results[i] = resolved

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	grouped := make([][]m.ResolvedContent, len(matches))
	for i, j := range jobs {
		grouped[j.match] = append(grouped[j.match], results[i])
	}

	return grouped, nil
}

// replacements builds the sorted span list for the document.
func (in *inliner) replacements(text string, extraction syntax.Extraction, resolved [][]m.ResolvedContent) ([]m.ReplacementSpan, int, []string) {
	var (
		spans    []m.ReplacementSpan
		replaced int
		skipped  []string
	)

	for i, match := range extraction.Matches {
		if missing := missingRefs(resolved[i]); len(missing) > 0 {
			skipped = append(skipped, missing...)
			continue
		}

		prop := match.Property
		spans = append(spans,
			m.ReplacementSpan{Start: prop.KeyStart, End: prop.KeyEnd, Text: quoteKey(match.Rule.Inline, prop.KeyQuote)},
			m.ReplacementSpan{Start: prop.ValueStart, End: prop.ValueEnd, Text: in.formatValue(text, match, resolved[i])},
		)
		replaced++
	}

	for _, id := range extraction.ReferenceIDs {
		spans = append(spans, removalSpan(text, id))
	}

	sourcemap.Sort(spans)

	return spans, replaced, skipped
}

func missingRefs(contents []m.ResolvedContent) []string {
	var missing []string

	for _, c := range contents {
		if c.Missing {
			missing = append(missing, c.Reference)
		}
	}

	return missing
}

func quoteKey(name string, quote byte) string {
	if quote == 0 {
		return name
	}

	return string(quote) + name + string(quote)
}

// formatValue renders the inline value for match.
func (in *inliner) formatValue(text string, match m.PropertyMatch, contents []m.ResolvedContent) string {
	indent := lineIndent(text, match.Property.KeyStart)

	if match.Rule.Shape != m.ShapeArray {
		return in.formatContent(contents[0].Processed, indent)
	}

	if in.opts.MergeStyles && match.Rule.Kind == m.ContentStyle && len(contents) > 1 {
		parts := make([]string, len(contents))
		for i, c := range contents {
			parts[i] = strings.TrimRight(c.Processed, "\r\n")
		}

		return literal.Array([]string{in.formatContent(strings.Join(parts, "\n"), indent)})
	}

	elements := make([]string, len(contents))
	for i, c := range contents {
		elements[i] = in.formatContent(c.Processed, indent)
	}

	return literal.Array(elements)
}

// formatContent compacts, re-indents and quotes one file's content.
func (in *inliner) formatContent(content, indent string) string {
	if in.opts.RemoveLineBreaks {
		content = literal.CollapseWhitespace(content)
	}

	if in.opts.Indent > 0 && in.opts.LiteralStyle == m.StyleTemplate && strings.Contains(strings.TrimRight(content, "\r\n"), "\n") {
		content = literal.Reindent(content, indent+strings.Repeat(" ", in.opts.Indent), indent)
	}

	return literal.Quote(content, in.opts.LiteralStyle)
}

// lineIndent returns the leading whitespace of the line containing offset.
func lineIndent(text string, offset int) string {
	start := strings.LastIndexByte(text[:offset], '\n') + 1

	end := start
	for end < len(text) && (text[end] == ' ' || text[end] == '\t') {
		end++
	}

	return text[start:end]
}

// removalSpan deletes a companion identifier property together with its
// separator. A property alone on its line takes the whole line with it.
func removalSpan(text string, id syntax.ReferenceID) m.ReplacementSpan {
	prop := id.Property

	if prop.Comma < 0 {
		if id.PrevComma >= 0 {
			return m.ReplacementSpan{Start: id.PrevComma, End: prop.ValueEnd}
		}

		return m.ReplacementSpan{Start: prop.KeyStart, End: prop.ValueEnd}
	}

	end := prop.Comma + 1
	for end < len(text) && (text[end] == ' ' || text[end] == '\t') {
		end++
	}

	lineStart := strings.LastIndexByte(text[:prop.KeyStart], '\n') + 1
	if strings.TrimSpace(text[lineStart:prop.KeyStart]) == "" && lineStart > id.Block.Open {
		switch {
		case strings.HasPrefix(text[end:], "\r\n"):
			return m.ReplacementSpan{Start: lineStart, End: end + 2}
		case strings.HasPrefix(text[end:], "\n"):
			return m.ReplacementSpan{Start: lineStart, End: end + 1}
		}
	}

	return m.ReplacementSpan{Start: prop.KeyStart, End: end}
}

func (in *inliner) References(_ context.Context, doc m.Document) ([]m.ReferenceInfo, error) {
	extraction, err := in.extract(doc)
	if err != nil {
		return nil, err
	}

	refs := make([]m.ReferenceInfo, 0, len(extraction.Matches))

	for _, match := range extraction.Matches {
		refs = append(refs, m.ReferenceInfo{
			Path:     doc.Path,
			Block:    match.Block.Kind,
			Line:     strings.Count(doc.Text[:match.Property.KeyStart], "\n") + 1,
			Property: match.Property.Key,
			Targets:  match.Paths,
		})
	}

	return refs, nil
}

func (in *inliner) Dependencies(ctx context.Context, doc m.Document) ([]m.Path, error) {
	extraction, err := in.extract(doc)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", doc.Path, err)
	}

	var deps []m.Path

	for _, match := range extraction.Matches {
		for _, ref := range match.Paths {
			deps = append(deps, in.resolver.lookupPath(ctx, doc, match.Rule.Kind, ref))
		}
	}

	return deps, nil
}
