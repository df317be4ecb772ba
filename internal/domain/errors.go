package domain

import (
	"errors"

	"nginline.dev/pkg/nginline/internal/domain/sourcemap"
	"nginline.dev/pkg/nginline/internal/domain/syntax"
	m "nginline.dev/pkg/nginline/internal/model"
)

// Errors a document transformation can fail with. All of them are fatal for
// the document and leave other documents unaffected.
var (
	ErrMalformedSource    = syntax.ErrMalformedSource
	ErrPropertyExtraction = syntax.ErrPropertyExtraction
	ErrFileNotFound       = errors.New("referenced file not found")
	ErrProcessor          = errors.New("processor failed")
	ErrOverlap            = sourcemap.ErrOverlap
)

// ProcessorError carries the failure reported by a template or style
// processor. Its message is the processor's message, unchanged.
type ProcessorError struct {
	Path    m.Path
	Message string
}

func (e *ProcessorError) Error() string {
	return e.Message
}

// Is makes errors.Is(err, ErrProcessor) hold for every ProcessorError.
func (e *ProcessorError) Is(target error) bool {
	return target == ErrProcessor
}
