package param

import "github.com/scpid/scpid/internal/invariant"

// Partition is a leaf's parameter list split into the five bind-order
// buckets spec.md §4.3 step 1 describes.
type Partition struct {
	PositionalRequired []Parameter
	PositionalOptional []Parameter
	RepeatingPositional *Parameter
	Named               map[string]Parameter
	RepeatingNamed      *Parameter
}

// BuildPartition applies the §3 promotion invariant (an optional
// positional appearing before a required positional is promoted to
// named) and the at-most-one-repeating-per-kind invariant, then
// buckets params accordingly. leafName is used only for panic
// messages: a parameter list that violates one of these rules is a
// malformed leaf registration, a programmer error rather than
// something a client request could trigger, so it panics through
// internal/invariant instead of returning a wire-visible error
// (spec.md §7).
func BuildPartition(leafName string, params []Parameter) *Partition {
	p := &Partition{Named: map[string]Parameter{}}

	// First pass: find the last required positional index, so any
	// optional positional before it gets promoted.
	lastRequiredPositional := -1
	for i, prm := range params {
		if !prm.Named && prm.Required() && !prm.Repeating() {
			lastRequiredPositional = i
		}
	}

	sawRepeatingPositional := false
	sawRepeatingNamed := false

	for i, prm := range params {
		switch {
		case prm.Named:
			if prm.Repeating() {
				invariant.Invariant(!sawRepeatingNamed, "leaf %s: more than one repeating named parameter", leafName)
				sawRepeatingNamed = true
				cp := prm
				p.RepeatingNamed = &cp
				continue
			}
			p.Named[prm.Name] = prm

		case prm.Repeating():
			invariant.Invariant(!sawRepeatingPositional, "leaf %s: more than one repeating positional parameter", leafName)
			if i != len(params)-1 {
				// must be last of its kind among positionals; tolerate
				// named parameters declared after it.
				for _, later := range params[i+1:] {
					invariant.Invariant(later.Named, "leaf %s: repeating positional parameter must be last", leafName)
				}
			}
			sawRepeatingPositional = true
			cp := prm
			p.RepeatingPositional = &cp

		case !prm.Required():
			if i < lastRequiredPositional {
				// promotion: optional positional before a required
				// positional becomes named instead.
				p.Named[prm.Name] = prm
				continue
			}
			p.PositionalOptional = append(p.PositionalOptional, prm)

		default:
			p.PositionalRequired = append(p.PositionalRequired, prm)
		}
	}

	return p
}
