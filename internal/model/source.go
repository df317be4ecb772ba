// Package model defines the data structures shared by the inliner.
package model

// Path represents a file system path.
type Path string

// Document is a source file handed to the inliner. It is never modified.
type Document struct {
	Path Path
	Text string
}

// BlockKind identifies the decorator that introduced a metadata block.
type BlockKind string

const (
	// KindComponent marks an @Component({...}) block.
	KindComponent BlockKind = "component"
	// KindView marks an @View({...}) block.
	KindView BlockKind = "view"
)

// Signature describes a decorator-like marker recognized by the locator.
// When JoinsWith is set, a block of that kind directly following this one is
// treated as part of the same logical unit.
type Signature struct {
	Name      string
	Kind      BlockKind
	JoinsWith BlockKind
}

// DefaultSignatures returns the component/view pair.
func DefaultSignatures() []Signature {
	return []Signature{
		{Name: "Component", Kind: KindComponent, JoinsWith: KindView},
		{Name: "View", Kind: KindView},
	}
}

// Block is the argument object of a recognized decorator.
// Start points at the '@', [Open, End) spans the object literal braces.
type Block struct {
	Kind  BlockKind
	Name  string
	Start int
	Open  int
	End   int
	// CallEnd is one past the closing parenthesis of the decorator call.
	CallEnd int
}

// Contains reports whether [start, end) lies inside the block's object.
func (b Block) Contains(start, end int) bool {
	return start > b.Open && end < b.End
}

// Unit groups blocks that are processed as one logical component.
type Unit struct {
	Blocks []Block
}

// Stage is the per-document transformation state.
type Stage string

// Stages of a document transformation, in order.
const (
	StageScanning   Stage = "scanning"
	StageExtracting Stage = "extracting"
	StageResolving  Stage = "resolving"
	StageRewriting  Stage = "rewriting"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)
