package domain

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"nginline.dev/pkg/nginline/internal/adapter"
	m "nginline.dev/pkg/nginline/internal/model"
)

// DefaultInclude lists the file patterns treated as documents when none are configured.
var DefaultInclude = []string{"*.ts", "*.js"}

const recursiveSuffix = "..."

// DocumentFinder discovers and loads documents from Go-style path patterns.
type DocumentFinder interface {
	// Find returns the documents matched by paths, sorted by path.
	Find(ctx context.Context, paths []m.Path, include, exclude []string) ([]m.Path, error)
	// Load reads a document.
	Load(ctx context.Context, path m.Path) (m.Document, error)
}

type documentFinder struct {
	adapter.SourceFSAdapter
}

// NewDocumentFinder creates a DocumentFinder reading through fsAdapter.
func NewDocumentFinder(fsAdapter adapter.SourceFSAdapter) DocumentFinder {
	return &documentFinder{SourceFSAdapter: fsAdapter}
}

// Find expands paths. "dir/..." walks dir recursively, "dir" lists only its
// files and a file path is taken as is. An empty list means "./...".
func (d *documentFinder) Find(ctx context.Context, paths []m.Path, include, exclude []string) ([]m.Path, error) {
	if len(paths) == 0 {
		paths = []m.Path{"./..."}
	}

	if len(include) == 0 {
		include = DefaultInclude
	}

	excludes, err := compileExcludes(exclude)
	if err != nil {
		return nil, err
	}

	seen := make(map[m.Path]bool)

	var found []m.Path

	add := func(path string) {
		p := m.Path(filepath.Clean(path))
		if seen[p] || !matchesAny(include, filepath.Base(path)) || excluded(excludes, path) {
			return
		}

		seen[p] = true
		found = append(found, p)
	}

	for _, pattern := range paths {
		root, recursive := splitPattern(string(pattern))

		info, err := d.FileInfo(ctx, m.Path(root))
		if err != nil {
			return nil, fmt.Errorf("path %s: %w", pattern, err)
		}

		if !info.IsDir() {
			add(root)
			continue
		}

		err = d.Walk(ctx, m.Path(root), recursive, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}

			if !info.IsDir() {
				add(path)
			}

			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}

	sort.Slice(found, func(i, j int) bool { return found[i] < found[j] })

	return found, nil
}

func (d *documentFinder) Load(ctx context.Context, path m.Path) (m.Document, error) {
	content, err := d.ReadFile(ctx, path)
	if err != nil {
		return m.Document{}, fmt.Errorf("read document %s: %w", path, err)
	}

	return m.Document{Path: path, Text: string(content)}, nil
}

func splitPattern(pattern string) (string, bool) {
	if !strings.HasSuffix(pattern, recursiveSuffix) {
		return pattern, false
	}

	root := strings.TrimSuffix(pattern, recursiveSuffix)
	root = strings.TrimRight(root, `/\`)

	if root == "" {
		root = "."
	}

	return root, true
}

func compileExcludes(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))

	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}

		compiled = append(compiled, re)
	}

	return compiled, nil
}

func excluded(patterns []*regexp.Regexp, path string) bool {
	slashed := filepath.ToSlash(path)

	for _, re := range patterns {
		if re.MatchString(slashed) {
			return true
		}
	}

	return false
}

func matchesAny(globs []string, name string) bool {
	for _, glob := range globs {
		if ok, err := filepath.Match(glob, name); err == nil && ok {
			return true
		}
	}

	return false
}
