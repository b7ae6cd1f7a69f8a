// Package tree implements the command namespace (spec.md §3, §4.2):
// branches and leaves keyed by case-insensitive aliases, resolved by
// dotted/colon-delimited path.
package tree

import (
	"strings"
	"sync"

	"github.com/scpid/scpid/internal/access"
)

// Node is the common shape of a Branch, Leaf, or Macro.
type Node interface {
	Name() string
	Parent() *Branch
	Defaults() map[string]string
	Hidden() bool
	RequiredAccess() access.Level
}

// base is embedded by every node kind.
type base struct {
	name     string
	parent   *Branch
	defaults map[string]string
	hidden   bool
	access   access.Level
}

func (b *base) Name() string                    { return b.name }
func (b *base) Parent() *Branch                  { return b.parent }
func (b *base) Defaults() map[string]string     { return b.defaults }
func (b *base) Hidden() bool                    { return b.hidden }
func (b *base) RequiredAccess() access.Level    { return b.access }

// Factory lazily instantiates a class-mapped child the first time it
// is resolved (spec.md §4.2: "A class-map hit instantiates the child
// (lazy incarnation) and adds it to the instance map").
type Factory func(parent *Branch) Node

// Branch is an interior node: a case-insensitive child-instance map, a
// lazy child-class map, and a branch-scoped variable map (spec.md §3).
type Branch struct {
	base

	mu           sync.RWMutex
	instances    map[string]Node    // alias (lowercased) -> node
	classes      map[string]Factory // alias (lowercased) -> factory
	data         map[string]string  // branch-scoped variables
	modifyAccess access.Level       // level required to add/remove a dynamic child
}

// NewRoot creates the root branch of a command tree. The root has no
// parent and requires only Guest access to traverse.
func NewRoot() *Branch {
	return &Branch{
		base: base{name: "", defaults: map[string]string{}},
		instances: map[string]Node{},
		classes:   map[string]Factory{},
		data:      map[string]string{},
	}
}

// NewBranch constructs a child branch under parent. It does not
// register the branch as a child; call AddInstance or AddClass on
// parent to do that.
func NewBranch(parent *Branch, name string, requiredAccess access.Level) *Branch {
	return &Branch{
		base: base{
			name:     name,
			parent:   parent,
			defaults: map[string]string{},
			access:   requiredAccess,
		},
		instances: map[string]Node{},
		classes:   map[string]Factory{},
		data:      map[string]string{},
	}
}

// ModifyAccess reports the access level required to add, redefine, or
// remove a dynamic child of b (spec.md §4.2).
func (b *Branch) ModifyAccess() access.Level { return b.modifyAccess }

// SetModifyAccess sets the level required to mutate b's dynamic
// children.
func (b *Branch) SetModifyAccess(l access.Level) { b.modifyAccess = l }

// DataGet reads a branch-scoped variable (spec.md §4.5's "enclosing
// branch's data map").
func (b *Branch) DataGet(name string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.data[name]
	return v, ok
}

// DataSet writes a branch-scoped variable.
func (b *Branch) DataSet(name, value string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[name] = value
}

// AddClass registers a factory for name under all three of its
// aliases (spec.md §4.2/§1). It returns NoUpperCaseLetters if name has
// no uppercase letters (its fully-abbreviated alias would be empty),
// and DuplicateShortName if any alias collides with an existing,
// unrelated registration.
func (b *Branch) AddClass(name string, requiredAccess access.Level, f Factory) error {
	full, vowel, short := Aliases(name)
	if short == "" {
		return errNoUpperCaseLetters(name)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, alias := range []string{full, vowel, short} {
		key := strings.ToLower(alias)
		if _, exists := b.classes[key]; exists {
			return errDuplicateShortName(name, alias)
		}
		if _, exists := b.instances[key]; exists {
			return errDuplicateShortName(name, alias)
		}
	}
	for _, alias := range []string{full, vowel, short} {
		b.classes[strings.ToLower(alias)] = f
	}
	_ = requiredAccess // stored by the factory's own Node on instantiation
	return nil
}

// AddInstance registers an already-constructed node as an immediate
// child of b under all three of its name's aliases. replaceExisting
// must be true to overwrite a name already mapped (spec.md §4.2).
func (b *Branch) AddInstance(n Node, replaceExisting bool) error {
	full, vowel, short := Aliases(n.Name())
	if short == "" {
		return errNoUpperCaseLetters(n.Name())
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, alias := range []string{full, vowel, short} {
		key := strings.ToLower(alias)
		if existing, exists := b.instances[key]; exists && !replaceExisting && existing != n {
			return errDuplicateShortName(n.Name(), alias)
		}
	}
	for _, alias := range []string{full, vowel, short} {
		b.instances[strings.ToLower(alias)] = n
	}
	return nil
}

// RemoveInstance removes every alias of the child registered under
// name, guarded by b's ModifyAccess level (the caller checks the
// session's access before calling this).
func (b *Branch) RemoveInstance(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	full, vowel, short := Aliases(name)
	for _, alias := range []string{full, vowel, short} {
		delete(b.instances, strings.ToLower(alias))
	}
}

// lookup resolves one path segment against b's instance map, then its
// class map (instantiating lazily on a class hit), case-insensitively.
// A segment that carries a class-style suffix/prefix (spec.md §3's
// Set/Add/.../Common <-> =/+/.../* table) is also tried under its
// translated spelling, so a leaf registered as e.g. "FrequencySet" can
// be addressed as "Frequency=" and back.
func (b *Branch) lookup(segment string) (Node, bool) {
	key := strings.ToLower(segment)

	b.mu.RLock()
	n, ok := b.instances[key]
	if !ok {
		if alt, translated := TranslateSuffix(segment); translated {
			n, ok = b.instances[strings.ToLower(alt)]
		}
	}
	if ok {
		b.mu.RUnlock()
		return n, true
	}
	f, ok := b.classes[key]
	if !ok {
		if alt, translated := TranslateSuffix(segment); translated {
			f, ok = b.classes[strings.ToLower(alt)]
		}
	}
	b.mu.RUnlock()
	if !ok {
		return nil, false
	}

	n := f(b)
	b.mu.Lock()
	b.instances[strings.ToLower(n.Name())] = n
	full, vowel, short := Aliases(n.Name())
	for _, alias := range []string{full, vowel, short} {
		b.instances[strings.ToLower(alias)] = n
	}
	b.mu.Unlock()
	return n, true
}

// Children returns the set of distinct nodes reachable directly from
// b, for enumeration commands and fuzzy-suggestion scanning. Hidden
// nodes are included; callers filter as needed.
func (b *Branch) Children() []Node {
	b.mu.RLock()
	defer b.mu.RUnlock()
	seen := map[Node]bool{}
	out := make([]Node, 0, len(b.instances))
	for _, n := range b.instances {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

// ChildCount returns the number of distinct children, used to gate
// fuzzy-match suggestions (spec.md-adjacent heuristic: only suggest
// when the branch is small enough that a scan is cheap).
func (b *Branch) ChildCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	seen := map[Node]bool{}
	for _, n := range b.instances {
		seen[n] = true
	}
	return len(seen)
}
