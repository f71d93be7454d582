// Package query implements the composable boolean condition algebra that
// search operations are built from, and its evaluator.
package query

// Kind discriminates the Condition variants.
type Kind int

const (
	KindFilename Kind = iota
	KindFolder
	KindKeyword
	KindProperty
	KindAnd
	KindOr
)

// PropertyFilter is one property constraint. Operator is one of the store
// comparison operators; empty means equality.
type PropertyFilter struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Operator string `json:"operator,omitempty"`
}

// Condition is a tagged union over the query variants. Leaf conditions
// carry their patterns; And/Or carry children. A single recursive evaluator
// (Evaluator.Evaluate) interprets the tree.
type Condition struct {
	Kind       Kind
	Filenames  []string
	Folders    []string
	Keywords   []string
	Properties []PropertyFilter
	Children   []Condition
}

// Filename matches documents by file-name pattern.
func Filename(patterns ...string) Condition {
	return Condition{Kind: KindFilename, Filenames: patterns}
}

// Folder matches documents inside folders whose name or path contains any
// pattern, case-insensitively.
func Folder(patterns ...string) Condition {
	return Condition{Kind: KindFolder, Folders: patterns}
}

// Keyword matches documents by content keyword; quote-wrapped keywords are
// exact phrases.
func Keyword(keywords ...string) Condition {
	return Condition{Kind: KindKeyword, Keywords: keywords}
}

// Property matches documents carrying all the given property constraints.
func Property(filters ...PropertyFilter) Condition {
	return Condition{Kind: KindProperty, Properties: filters}
}

// And intersects child result sets.
func And(children ...Condition) Condition {
	return Condition{Kind: KindAnd, Children: children}
}

// Or unions child result sets, summing score contributions.
func Or(children ...Condition) Condition {
	return Condition{Kind: KindOr, Children: children}
}

// Builder accumulates top-level conditions. Added conditions combine by AND
// by default; Or escalates the root to an OR of the previous root and the
// new condition. The asymmetry is deliberate: AND is the default, OR must
// be requested.
type Builder struct {
	root *Condition
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// And adds a condition to the current AND group.
func (b *Builder) And(c Condition) *Builder {
	switch {
	case b.root == nil:
		b.root = &c
	case b.root.Kind == KindAnd:
		b.root.Children = append(b.root.Children, c)
	default:
		combined := And(*b.root, c)
		b.root = &combined
	}
	return b
}

// Or combines the current root with c under an OR.
func (b *Builder) Or(c Condition) *Builder {
	switch {
	case b.root == nil:
		b.root = &c
	case b.root.Kind == KindOr:
		b.root.Children = append(b.root.Children, c)
	default:
		combined := Or(*b.root, c)
		b.root = &combined
	}
	return b
}

// Build returns the accumulated condition tree. An empty builder yields a
// zero-child And, which evaluates to no matches.
func (b *Builder) Build() Condition {
	if b.root == nil {
		return And()
	}
	return *b.root
}
