package model

import "context"

// LiteralStyle selects the quoting convention of emitted content.
type LiteralStyle string

const (
	// StyleTemplate emits backtick template literals that may span lines.
	StyleTemplate LiteralStyle = "template"
	// StyleLegacy emits single-quoted, line-bound string literals.
	StyleLegacy LiteralStyle = "legacy"
)

// Continuation receives the outcome of a processor. It must be called exactly once.
type Continuation func(result string, err error)

// Processor transforms the raw content of a referenced file. ctx is canceled
// once the document no longer waits for the result.
type Processor func(ctx context.Context, path, ext, content string, done Continuation)

// Options configures a document transformation.
type Options struct {
	// Root is the lookup root when neither UseRelativePaths nor BaseDirectory applies.
	Root Path
	// BaseDirectory overrides Root for non-relative lookups.
	BaseDirectory Path
	// UseRelativePaths resolves references against the document's directory.
	UseRelativePaths bool

	RemoveLineBreaks bool
	LiteralStyle     LiteralStyle
	// Indent re-indents multi-line template literals; 0 keeps content verbatim.
	Indent int
	// MergeStyles concatenates every style file of an array into one element.
	MergeStyles bool

	TemplateExtension string
	StyleExtension    string

	TemplateProcessor Processor
	StyleProcessor    Processor
	// Processors are keyed by extension including the dot and win over the kind processors.
	Processors map[string]Processor

	// CustomFilePath rewrites a reference before it is resolved.
	CustomFilePath func(kind ContentKind, ref string) string

	RemoveReferenceIDProperty bool
	ReferenceIDProperty       string

	TolerateMissingFiles bool

	Signatures []Signature
	Rules      []PropertyRule

	// ResolveParallelism bounds concurrent file resolutions per document; <= 0 means unbounded.
	ResolveParallelism int
}

// Default extensions applied to extensionless references.
const (
	DefaultTemplateExtension   = ".html"
	DefaultStyleExtension      = ".css"
	DefaultReferenceIDProperty = "moduleId"
)

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Root:                ".",
		LiteralStyle:        StyleTemplate,
		TemplateExtension:   DefaultTemplateExtension,
		StyleExtension:      DefaultStyleExtension,
		ReferenceIDProperty: DefaultReferenceIDProperty,
		Signatures:          DefaultSignatures(),
		Rules:               DefaultRules(),
	}
}

// WithDefaults fills zero fields with their defaults.
func (o Options) WithDefaults() Options {
	d := DefaultOptions()

	if o.Root == "" {
		o.Root = d.Root
	}

	if o.LiteralStyle == "" {
		o.LiteralStyle = d.LiteralStyle
	}

	if o.TemplateExtension == "" {
		o.TemplateExtension = d.TemplateExtension
	}

	if o.StyleExtension == "" {
		o.StyleExtension = d.StyleExtension
	}

	if o.ReferenceIDProperty == "" {
		o.ReferenceIDProperty = d.ReferenceIDProperty
	}

	if len(o.Signatures) == 0 {
		o.Signatures = d.Signatures
	}

	if len(o.Rules) == 0 {
		o.Rules = d.Rules
	}

	return o
}
