package model

// Shape is the syntactic form of a reference property value.
type Shape string

const (
	// ShapeSingle is a single path string: templateUrl: './a.html'.
	ShapeSingle Shape = "single"
	// ShapeArray is an array of path strings: styleUrls: ['./a.css'].
	ShapeArray Shape = "array"
)

// ContentKind selects the default extension and processor for a reference.
type ContentKind string

const (
	// ContentTemplate is markup content.
	ContentTemplate ContentKind = "template"
	// ContentStyle is stylesheet content.
	ContentStyle ContentKind = "style"
)

// PropertyRule maps a reference property to the inline property replacing it.
type PropertyRule struct {
	Reference string
	Inline    string
	Shape     Shape
	Kind      ContentKind
}

// DefaultRules returns the templateUrl/styleUrls/styleUrl rules.
func DefaultRules() []PropertyRule {
	return []PropertyRule{
		{Reference: "templateUrl", Inline: "template", Shape: ShapeSingle, Kind: ContentTemplate},
		{Reference: "styleUrls", Inline: "styles", Shape: ShapeArray, Kind: ContentStyle},
		{Reference: "styleUrl", Inline: "styles", Shape: ShapeSingle, Kind: ContentStyle},
	}
}

// Property is one top-level key/value pair of an object literal.
// KeyStart..KeyEnd covers the key including quotes, ValueStart..ValueEnd the
// trimmed value expression. Comma is the offset of the trailing comma or -1.
type Property struct {
	Key        string
	KeyQuote   byte
	KeyStart   int
	KeyEnd     int
	ValueStart int
	ValueEnd   int
	Comma      int
}

// PropertyMatch is a reference property recognized inside a block.
type PropertyMatch struct {
	Rule     PropertyRule
	Property Property
	Block    Block
	Paths    []string
}

// ResolvedContent is the outcome of reading and processing one referenced file.
type ResolvedContent struct {
	Reference  string
	SourcePath Path
	Raw        []byte
	Processed  string
	Missing    bool
}

// ReplacementSpan replaces text[Start:End] with Text.
type ReplacementSpan struct {
	Start int
	End   int
	Text  string
}
