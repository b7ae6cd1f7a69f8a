package param

import (
	"sort"

	"github.com/scpid/scpid/internal/parser"
)

// FormatOutputs implements the inverse of binding (spec.md §4.3
// "Output formatting"): given a leaf's declared output parameters and
// the values it actually returned (by name, or positionally when the
// leaf returned a plain slice), produce the ordered (name, string)
// pairs for the OK reply.
//
// Undeclared names in values are appended positionally (no Option
// name, unlike the declared (name, string) pairs) after the declared
// outputs, as spec.md directs ("Undeclared outputs are appended
// positionally with a warning"); the warning itself is the caller's
// responsibility to log, since this package has no logger — the
// returned undeclared slice is what it logs from.
func FormatOutputs(declared []Parameter, values map[string]any) (pairs []parser.Part, undeclared []string) {
	seen := map[string]bool{}
	for _, p := range declared {
		v, ok := values[p.Name]
		if !ok {
			continue
		}
		seen[p.Name] = true
		pairs = append(pairs, parser.Part{Option: p.Name, Cooked: ToString(p, v)})
	}

	extra := make([]string, 0, len(values))
	for name := range values {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		undeclared = append(undeclared, name)
		pairs = append(pairs, parser.Part{Cooked: ToString(Parameter{}, values[name])})
	}
	return pairs, undeclared
}
