package tree

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/scpid/scpid/internal/scpierr"
)

// suggestionCap is the maximum number of "did you mean" suggestions
// attached to an UnknownCommand error.
const suggestionCap = 3

// suggestionBranchLimit caps the branch size a fuzzy scan is run
// against; beyond this, a full-branch rank pass is skipped rather than
// paying its cost for every typo on a large namespace.
const suggestionBranchLimit = 500

// Located is the result of a successful locate(): the resolved node,
// the path segments visited, and every visited node's Defaults merged
// into one map (later segments overriding earlier ones on key
// collision, spec.md §4.2 step 3).
type Located struct {
	Node     Node
	Segments []string
	Defaults map[string]string
}

// Locate resolves a dotted/colon-delimited command path starting from
// scope (spec.md §4.2). A leading empty segment (a path starting with
// ":") rewinds to root before resolving the rest.
func Locate(root, scope *Branch, path string) (*Located, error) {
	segments := strings.Split(path, ":")
	current := scope
	defaults := map[string]string{}
	visited := make([]string, 0, len(segments))

	var resolved Node = current
	for i, seg := range segments {
		if seg == "" {
			if i == 0 {
				current = root
				resolved = root
				continue
			}
			continue // a doubled "::"; tolerate as a no-op segment
		}

		b, ok := resolved.(*Branch)
		if !ok {
			return nil, scpierr.NewIncorrectNodeType(seg, "branch", "leaf")
		}

		n, found := b.lookup(seg)
		if !found {
			suggestions := suggest(b, seg)
			return nil, scpierr.NewUnknownCommand(b.Name(), seg, suggestions)
		}
		for k, v := range n.Defaults() {
			defaults[k] = v
		}
		resolved = n
		visited = append(visited, seg)
	}

	return &Located{Node: resolved, Segments: visited, Defaults: defaults}, nil
}

// suggest returns up to suggestionCap fuzzy-matched child names of b
// for an UnknownCommand error, skipping the scan entirely on branches
// too large for a cheap rank pass.
func suggest(b *Branch, typed string) []string {
	if b.ChildCount() > suggestionBranchLimit {
		return nil
	}
	children := b.Children()
	names := make([]string, 0, len(children))
	seen := map[string]bool{}
	for _, n := range children {
		if n.Hidden() {
			continue
		}
		if !seen[n.Name()] {
			seen[n.Name()] = true
			names = append(names, n.Name())
		}
	}
	sort.Strings(names)

	ranks := fuzzy.RankFindFold(typed, names)
	sort.Sort(ranks)
	out := make([]string, 0, suggestionCap)
	for _, r := range ranks {
		out = append(out, r.Target)
		if len(out) == suggestionCap {
			break
		}
	}
	return out
}
