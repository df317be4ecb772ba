package domain

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"nginline.dev/pkg/nginline/internal/adapter"
	m "nginline.dev/pkg/nginline/internal/model"
)

// resolver reads and processes referenced files. It keeps no state between calls.
type resolver struct {
	fs   adapter.SourceFSAdapter
	opts m.Options
}

// lookupPath computes where the file referenced as ref from doc lives.
func (r *resolver) lookupPath(ctx context.Context, doc m.Document, kind m.ContentKind, ref string) m.Path {
	if r.opts.CustomFilePath != nil {
		ref = r.opts.CustomFilePath(kind, ref)
	}

	ref = filepath.FromSlash(r.withExtension(kind, ref))

	switch {
	case r.opts.UseRelativePaths:
		return r.fs.JoinPath(ctx, filepath.Dir(string(doc.Path)), ref)
	case r.opts.BaseDirectory != "":
		return r.fs.JoinPath(ctx, string(r.opts.BaseDirectory), ref)
	default:
		return r.fs.JoinPath(ctx, string(r.opts.Root), ref)
	}
}

// withExtension appends the configured extension to extensionless references
// and swaps the default extension for an overridden one.
func (r *resolver) withExtension(kind m.ContentKind, ref string) string {
	override, fallback := normalizeExt(r.opts.TemplateExtension), m.DefaultTemplateExtension
	if kind == m.ContentStyle {
		override, fallback = normalizeExt(r.opts.StyleExtension), m.DefaultStyleExtension
	}

	if override == "" {
		override = fallback
	}

	switch ext := filepath.Ext(ref); {
	case ext == "":
		return ref + override
	case ext == fallback && override != fallback:
		return strings.TrimSuffix(ref, ext) + override
	default:
		return ref
	}
}

func normalizeExt(ext string) string {
	if ext == "" || strings.HasPrefix(ext, ".") {
		return ext
	}

	return "." + ext
}

func (r *resolver) processorFor(kind m.ContentKind, ext string) m.Processor {
	if proc, ok := r.opts.Processors[ext]; ok && proc != nil {
		return proc
	}

	if kind == m.ContentStyle {
		return r.opts.StyleProcessor
	}

	return r.opts.TemplateProcessor
}

// resolve reads the file referenced as ref and runs its processor.
func (r *resolver) resolve(ctx context.Context, doc m.Document, kind m.ContentKind, ref string) (m.ResolvedContent, error) {
	path := r.lookupPath(ctx, doc, kind, ref)
	resolved := m.ResolvedContent{Reference: ref, SourcePath: path}

	raw, err := r.fs.ReadFile(ctx, path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return resolved, fmt.Errorf("read %s: %w", path, err)
		}

		if r.opts.TolerateMissingFiles {
			slog.Debug("referenced file missing, leaving reference untouched", "document", doc.Path, "reference", ref, "path", path)

			resolved.Missing = true

			return resolved, nil
		}

		return resolved, fmt.Errorf("%w: %s (referenced as %q from %s)", ErrFileNotFound, path, ref, doc.Path)
	}

	resolved.Raw = raw
	resolved.Processed = string(raw)

	ext := filepath.Ext(string(path))

	proc := r.processorFor(kind, ext)
	if proc == nil {
		return resolved, nil
	}

	text, err := r.process(ctx, proc, path, ext, string(raw))
	if err != nil {
		return resolved, err
	}

	resolved.Processed = text

	return resolved, nil
}

func (r *resolver) process(ctx context.Context, proc m.Processor, path m.Path, ext, content string) (string, error) {
	fut := newFuture(string(path))

	go proc(ctx, string(path), ext, content, fut.complete)

	text, err := fut.await(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return "", err
		}

		slog.Error("processor failed", "path", path, "error", err)

		return "", &ProcessorError{Path: path, Message: err.Error()}
	}

	return text, nil
}
