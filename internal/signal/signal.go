// Package signal models the control-flow events of spec.md §4.5 as a
// plain Go sum type instead of exceptions, per the component
// description's "modelled as a sum type in any re-implementation"
// note: `NextReply`, `NextCommand`, `ReturnValue`, `ReturnCall`,
// `Break`. A dispatcher returns a *Signal alongside (or instead of) an
// error from a leaf invocation and decides what to do with it
// according to the owning session's policy table (spec.md §4.5).
package signal

import "github.com/scpid/scpid/internal/tree"

// Kind discriminates which control-flow signal a Signal carries.
type Kind int

const (
	NextReply Kind = iota
	NextCommand
	ReturnValue
	ReturnCall
	Break
)

func (k Kind) String() string {
	switch k {
	case NextReply:
		return "NextReply"
	case NextCommand:
		return "NextCommand"
	case ReturnValue:
		return "ReturnValue"
	case ReturnCall:
		return "ReturnCall"
	case Break:
		return "Break"
	default:
		return "Unknown"
	}
}

// Signal is the non-error control-flow value a leaf's dispatch step
// can produce. Only the fields relevant to Kind are populated.
type Signal struct {
	Kind Kind

	// NextReply / ReturnCall
	Leaf   *tree.Leaf
	Method string
	Args   map[string]any

	// NextCommand
	// (Leaf above is reused)

	// ReturnValue
	Parts map[string]any

	// Break
	Levels int
}

// Policy is the per-session-type row of spec.md §4.5's table:
// what a session does when its block runner observes each signal
// kind.
type Policy struct {
	// EmitNext: true => emit a NEXT reply and continue; false => run
	// the continuation synchronously in the current worker.
	NextReplyEmitsNext bool
	// NextCommandReraises: true => propagate to the parent session
	// instead of handling locally.
	NextCommandReraises bool
	// CatchReturn: true => ReturnValue/ReturnCall/Break terminate this
	// session's current block instead of propagating further.
	CatchReturn bool
}

// Policies are the five session-type rows from spec.md §4.5.
var (
	Client = Policy{NextReplyEmitsNext: true, NextCommandReraises: false, CatchReturn: false}
	Macro  = Policy{NextReplyEmitsNext: true, NextCommandReraises: true, CatchReturn: true}
	Inline = Policy{NextReplyEmitsNext: false, NextCommandReraises: false, CatchReturn: true}
	Module = Policy{NextReplyEmitsNext: false, NextCommandReraises: true, CatchReturn: true}
	Detached = Policy{NextReplyEmitsNext: false, NextCommandReraises: false, CatchReturn: true}
)
