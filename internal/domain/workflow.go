package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"nginline.dev/pkg/nginline/internal/adapter"
	"nginline.dev/pkg/nginline/internal/controller"
	"nginline.dev/pkg/nginline/internal/domain/sourcemap"
	m "nginline.dev/pkg/nginline/internal/model"
)

// SourceMapMode selects how source maps are emitted next to rewritten documents.
type SourceMapMode string

// Available SourceMapMode values.
const (
	SourceMapNone     SourceMapMode = "none"
	SourceMapExternal SourceMapMode = "external"
	SourceMapInline   SourceMapMode = "inline"
)

// ListArgs selects the documents of a run.
type ListArgs struct {
	Paths   []m.Path
	Include []string
	Exclude []string
}

// InlineArgs contains the arguments for rewriting documents.
type InlineArgs struct {
	ListArgs
	// Out is the output directory; empty rewrites documents in place.
	Out m.Path
	// Root is the directory whose layout is mirrored under Out.
	Root      m.Path
	Threads   int
	DryRun    bool
	SourceMap SourceMapMode
}

// WatchArgs contains the arguments for watch mode.
type WatchArgs struct {
	InlineArgs
}

// Workflow defines the multi-document operations of the CLI.
type Workflow interface {
	// Inline rewrites every selected document. Documents fail independently;
	// the returned error joins every per-document failure.
	Inline(ctx context.Context, args InlineArgs) ([]m.Report, error)
	// List displays the reference properties of the selected documents.
	List(ctx context.Context, args ListArgs) error
	// Watch runs Inline once and again whenever a document or a referenced file changes.
	Watch(ctx context.Context, args WatchArgs) error
}

type workflow struct {
	fs adapter.SourceFSAdapter
	adapter.OutputStore
	adapter.Watcher
	controller.UI
	DocumentFinder
	Inliner
}

// NewWorkflow creates a new Workflow instance with the provided dependencies.
func NewWorkflow(
	fsAdapter adapter.SourceFSAdapter,
	store adapter.OutputStore,
	watcher adapter.Watcher,
	ui controller.UI,
	inliner Inliner,
) Workflow {
	return &workflow{
		fs:             fsAdapter,
		OutputStore:    store,
		Watcher:        watcher,
		UI:             ui,
		DocumentFinder: NewDocumentFinder(fsAdapter),
		Inliner:        inliner,
	}
}

func (w *workflow) Inline(ctx context.Context, args InlineArgs) ([]m.Report, error) {
	docs, err := w.Find(ctx, args.Paths, args.Include, w.excludes(args))
	if err != nil {
		return nil, fmt.Errorf("find documents: %w", err)
	}

	return w.inlineDocuments(ctx, args, docs)
}

func (w *workflow) inlineDocuments(ctx context.Context, args InlineArgs, docs []m.Path) ([]m.Report, error) {
	threads := args.Threads
	if threads <= 0 {
		threads = 1
	}

	if err := w.Start(ctx, controller.WithInlineMode()); err != nil {
		slog.Error("Failed to start workflow UI", "error", err)
		return nil, err
	}

	w.DisplayRunInfo(ctx, docs, threads)

	reports := make([]m.Report, len(docs))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(threads)

	for i, path := range docs {
		group.Go(func() error {
			w.DisplayStartingDocument(groupCtx, path)

			reports[i] = w.inlineDocument(groupCtx, args, path)

			w.DisplayReport(groupCtx, reports[i])

			return nil
		})
	}

	_ = group.Wait()

	w.DisplaySummary(ctx, reports)
	w.Close(ctx)

	if err := ctx.Err(); err != nil {
		return reports, err
	}

	var errs []error

	for _, report := range reports {
		if report.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", report.Path, report.Err))
		}
	}

	return reports, errors.Join(errs...)
}

// inlineDocument transforms and emits one document. Its failure never affects other documents.
func (w *workflow) inlineDocument(ctx context.Context, args InlineArgs, path m.Path) m.Report {
	report := m.Report{Path: path, Status: m.Failed}

	doc, err := w.Load(ctx, path)
	if err != nil {
		report.Err = err
		return report
	}

	out, err := w.Inliner.Inline(ctx, doc)
	if err != nil {
		slog.Error("Failed to inline document", "path", path, "error", err)

		report.Err = err

		return report
	}

	if err := w.emit(ctx, args, out); err != nil {
		slog.Error("Failed to write document", "path", path, "error", err)

		report.Err = err

		return report
	}

	report.Status = m.Unchanged
	if out.Replacements > 0 {
		report.Status = m.Inlined
	}

	report.Replacements = out.Replacements
	report.Skipped = out.Skipped

	return report
}

// emit writes the rewritten document and its source map, or shows a diff on dry runs.
func (w *workflow) emit(ctx context.Context, args InlineArgs, out m.Output) error {
	if args.DryRun {
		diff, err := Diff(out)
		if err != nil {
			return fmt.Errorf("diff %s: %w", out.Document.Path, err)
		}

		w.DisplayDiff(ctx, out.Document.Path, diff)

		return nil
	}

	inPlace := args.Out == ""
	if inPlace && !out.Changed() {
		return nil
	}

	target, err := w.outputPath(ctx, args, out.Document.Path)
	if err != nil {
		return err
	}

	text := out.Text

	switch args.SourceMap {
	case SourceMapExternal:
		data, err := sourcemap.Marshal(out.Map)
		if err != nil {
			return fmt.Errorf("encode source map: %w", err)
		}

		mapPath := target + ".map"
		if _, err := w.Write(ctx, mapPath, data); err != nil {
			return fmt.Errorf("write source map: %w", err)
		}

		text = withTrailer(text, sourcemap.Comment(filepath.Base(string(mapPath))))

	case SourceMapInline:
		comment, err := sourcemap.InlineComment(out.Map)
		if err != nil {
			return fmt.Errorf("encode source map: %w", err)
		}

		text = withTrailer(text, comment)
	}

	written, err := w.Write(ctx, target, []byte(text))
	if err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}

	slog.Debug("Document emitted", "path", out.Document.Path, "target", target, "written", written)

	return nil
}

func withTrailer(text, comment string) string {
	if text != "" && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}

	return text + comment + "\n"
}

// outputPath mirrors path under args.Out relative to args.Root.
func (w *workflow) outputPath(ctx context.Context, args InlineArgs, path m.Path) (m.Path, error) {
	if args.Out == "" {
		return path, nil
	}

	root := args.Root
	if root == "" {
		root = "."
	}

	rel, err := w.fs.RelPath(ctx, root, path)
	if err != nil {
		return "", fmt.Errorf("relative path of %s: %w", path, err)
	}

	if rel == ".." || strings.HasPrefix(string(rel), ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("document %s is outside root %s", path, root)
	}

	return w.fs.JoinPath(ctx, string(args.Out), string(rel)), nil
}

// excludes keeps an output directory inside the scanned tree from being read back as input.
func (w *workflow) excludes(args InlineArgs) []string {
	if args.Out == "" {
		return args.Exclude
	}

	out := filepath.ToSlash(filepath.Clean(string(args.Out)))

	return append(args.Exclude[:len(args.Exclude):len(args.Exclude)], "^"+regexp.QuoteMeta(out)+"/")
}

func (w *workflow) List(ctx context.Context, args ListArgs) error {
	if err := w.Start(ctx, controller.WithListMode()); err != nil {
		slog.Error("Failed to start workflow UI", "error", err)
		return err
	}

	defer w.Close(ctx)

	docs, err := w.Find(ctx, args.Paths, args.Include, args.Exclude)
	if err != nil {
		return w.DisplayReferences(ctx, nil, fmt.Errorf("find documents: %w", err))
	}

	var (
		all  []m.ReferenceInfo
		errs []error
	)

	for _, path := range docs {
		doc, err := w.Load(ctx, path)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		refs, err := w.References(ctx, doc)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}

		all = append(all, refs...)
	}

	if err := w.DisplayReferences(ctx, all, nil); err != nil {
		return err
	}

	return errors.Join(errs...)
}

func (w *workflow) Watch(ctx context.Context, args WatchArgs) error {
	if err := w.Start(ctx, controller.WithWatchMode()); err != nil {
		return err
	}

	defer w.Close(ctx)

	docs, deps, err := w.watchSet(ctx, args.InlineArgs)
	if err != nil {
		return err
	}

	if _, err := w.inlineDocuments(ctx, args.InlineArgs, docs); err != nil && ctx.Err() == nil {
		slog.Warn("Initial run reported failures", "error", err)
	}

	roots := w.watchRoots(ctx, args.Paths, deps)

	return w.Watcher.Watch(ctx, roots, func(changed []m.Path) {
		affected := affectedDocuments(changed, docs, deps, args.Out)
		if len(affected) == 0 {
			return
		}

		w.DisplayWatchEvent(ctx, changed)

		if _, err := w.inlineDocuments(ctx, args.InlineArgs, affected); err != nil && ctx.Err() == nil {
			slog.Warn("Re-run reported failures", "error", err)
		}

		// Documents can gain or lose references between runs.
		if newDocs, newDeps, err := w.watchSet(ctx, args.InlineArgs); err == nil {
			docs, deps = newDocs, newDeps
		}
	})
}

// watchSet returns the documents of a run and, per document, the files it references.
func (w *workflow) watchSet(ctx context.Context, args InlineArgs) ([]m.Path, map[m.Path][]m.Path, error) {
	docs, err := w.Find(ctx, args.Paths, args.Include, w.excludes(args))
	if err != nil {
		return nil, nil, fmt.Errorf("find documents: %w", err)
	}

	deps := make(map[m.Path][]m.Path, len(docs))

	for _, path := range docs {
		doc, err := w.Load(ctx, path)
		if err != nil {
			continue
		}

		refs, err := w.Dependencies(ctx, doc)
		if err != nil {
			slog.Debug("Skipping dependencies of malformed document", "path", path, "error", err)
			continue
		}

		deps[path] = refs
	}

	return docs, deps, nil
}

// watchRoots lists the directories to watch: the roots of the path patterns
// plus the directories of referenced files living outside of them.
func (w *workflow) watchRoots(ctx context.Context, paths []m.Path, deps map[m.Path][]m.Path) []m.Path {
	if len(paths) == 0 {
		paths = []m.Path{"./..."}
	}

	var roots []m.Path

	covered := func(dir string) bool {
		for _, root := range roots {
			if isUnder(dir, string(root)) {
				return true
			}
		}

		return false
	}

	for _, p := range paths {
		root, _ := splitPattern(string(p))
		if info, err := w.fs.FileInfo(ctx, m.Path(root)); err == nil && !info.IsDir() {
			root = filepath.Dir(root)
		}

		if root = filepath.Clean(root); !covered(root) {
			roots = append(roots, m.Path(root))
		}
	}

	for _, refs := range deps {
		for _, ref := range refs {
			dir := filepath.Dir(filepath.Clean(string(ref)))
			if _, err := w.fs.FileInfo(ctx, m.Path(dir)); err == nil && !covered(dir) {
				roots = append(roots, m.Path(dir))
			}
		}
	}

	return roots
}

// affectedDocuments returns the documents that changed or reference a changed file.
func affectedDocuments(changed, docs []m.Path, deps map[m.Path][]m.Path, out m.Path) []m.Path {
	touched := make(map[string]bool, len(changed))

	for _, path := range changed {
		clean := filepath.Clean(string(path))
		if out != "" && isUnder(clean, filepath.Clean(string(out))) {
			continue
		}

		touched[clean] = true
	}

	var affected []m.Path

	for _, doc := range docs {
		if touched[filepath.Clean(string(doc))] {
			affected = append(affected, doc)
			continue
		}

		for _, dep := range deps[doc] {
			if touched[filepath.Clean(string(dep))] {
				affected = append(affected, doc)
				break
			}
		}
	}

	return affected
}

func isUnder(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}

	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
