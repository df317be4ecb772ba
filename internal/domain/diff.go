package domain

import (
	"github.com/pmezard/go-difflib/difflib"

	m "nginline.dev/pkg/nginline/internal/model"
)

// Diff renders a unified diff between the original document and its rewrite.
// It returns an empty string for unchanged documents.
func Diff(out m.Output) (string, error) {
	if !out.Changed() {
		return "", nil
	}

	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(out.Document.Text),
		B:        difflib.SplitLines(out.Text),
		FromFile: string(out.Document.Path),
		ToFile:   string(out.Document.Path) + " (inlined)",
		Context:  3,
	})
}
