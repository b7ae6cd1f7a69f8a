package tree

import "github.com/scpid/scpid/internal/access"

// Macro is a leaf whose Run substitutes arguments into Body and
// re-enters the parser (spec.md §4.4). internal/session owns the
// substitution/re-entry logic and wires it into Leaf.Run when the
// macro is defined; this package only holds the declarative shape.
type Macro struct {
	Leaf
	Body   string
	Inline bool // skip the child macro session; execute in caller's context
}

// NewMacro constructs a Macro leaf under parent. DEFine/REDEFine sets
// Body (and wires Run) separately; this just allocates the node.
func NewMacro(parent *Branch, name string, requiredAccess access.Level, body string, inline bool) *Macro {
	return &Macro{
		Leaf:   *NewLeaf(parent, name, requiredAccess),
		Body:   body,
		Inline: inline,
	}
}
