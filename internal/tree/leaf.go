package tree

import (
	"sync"

	"github.com/scpid/scpid/internal/access"
	"github.com/scpid/scpid/internal/param"
)

// Handler is the function a leaf ultimately calls once its arguments
// are bound. It receives typed, bound input values keyed by parameter
// name and returns output values keyed by parameter name (spec.md
// §4.3 step 5 / "Output formatting").
type Handler func(in map[string]any) (map[string]any, error)

// Leaf is a terminal node: an ordered input parameter list, an
// ordered output parameter list, and the prerun/run/postrun hooks of
// spec.md §4.4. Outputs is a slice rather than a map because §4.3's
// output formatting renders them in declaration order (scenario 1:
// `VERSion?` replies `-Version=1.0.0 -Build=42`, not alphabetically).
// The capability mix-ins (Asynchronous, Background, Singleton) are
// plain boolean flags here; internal/session's dispatcher interprets
// them to decide when to raise a NextReply control signal and when to
// guard run with Mutex.
type Leaf struct {
	base

	Inputs  []param.Parameter
	Outputs []param.Parameter

	PreRun  Handler // may be nil
	Run     Handler
	PostRun Handler // may be nil

	Asynchronous bool
	Background   bool
	Singleton    bool

	// Returns and Breaks mark the two built-in control-flow leaves
	// (RETurn, BREak): internal/session's dispatcher recognizes them and
	// produces a ReturnValue/Break signal directly from the bound
	// arguments instead of calling Run at all.
	Returns bool
	Breaks  bool

	mu sync.Mutex // guards Run when Singleton is set
}

// NewLeaf constructs a Leaf under parent with the given name.
func NewLeaf(parent *Branch, name string, requiredAccess access.Level) *Leaf {
	return &Leaf{
		base: base{name: name, parent: parent, defaults: map[string]string{}, access: requiredAccess},
	}
}

// TryLock acquires the singleton guard. It always succeeds (returns
// true) for a non-Singleton leaf; for a Singleton leaf it returns
// false if another invocation is already running, which the session
// dispatcher turns into SingletonRunning.
func (l *Leaf) TryLock() bool {
	if !l.Singleton {
		return true
	}
	return l.mu.TryLock()
}

// Unlock releases the singleton guard acquired by TryLock. Safe to
// call unconditionally; it is a no-op for a non-Singleton leaf.
func (l *Leaf) Unlock() {
	if l.Singleton {
		l.mu.Unlock()
	}
}
