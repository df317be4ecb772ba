package model

// SourceMap is a version 3 source map for one rewritten document.
type SourceMap struct {
	Version        int      `json:"version"`
	File           string   `json:"file"`
	Sources        []string `json:"sources"`
	SourcesContent []string `json:"sourcesContent"`
	Names          []string `json:"names"`
	Mappings       string   `json:"mappings"`
}

// Output is a successfully transformed document.
type Output struct {
	Document     Document
	Text         string
	Map          SourceMap
	Replacements int
	// Skipped lists reference paths left untouched because their file is missing.
	Skipped []string
}

// Changed reports whether the rewrite altered the document.
func (o Output) Changed() bool {
	return o.Text != o.Document.Text
}

// Status is the outcome of processing one document in a run.
type Status int

const (
	// Inlined means at least one reference was replaced.
	Inlined Status = iota
	// Unchanged means no reference was found or all were skipped.
	Unchanged
	// Failed means the document was not emitted.
	Failed
)

func (s Status) String() string {
	switch s {
	case Inlined:
		return "inlined"
	case Unchanged:
		return "unchanged"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Report summarizes the processing of one document.
type Report struct {
	Path         Path
	Status       Status
	Replacements int
	Skipped      []string
	Err          error
}

// ReferenceInfo describes a reference property for listing.
type ReferenceInfo struct {
	Path     Path
	Block    BlockKind
	Line     int
	Property string
	Targets  []string
}
