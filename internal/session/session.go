package session

import (
	"log/slog"
	"sync"

	"github.com/scpid/scpid/internal/access"
	"github.com/scpid/scpid/internal/reply"
	"github.com/scpid/scpid/internal/scrub"
	"github.com/scpid/scpid/internal/signal"
	"github.com/scpid/scpid/internal/tree"
)

// Kind identifies which row of spec.md §4.5's control-flow policy
// table a session follows.
type Kind int

const (
	KindClient Kind = iota
	KindMacro
	KindInlineMacro
	KindModule
	KindDetached
)

func (k Kind) Policy() signal.Policy {
	switch k {
	case KindClient:
		return signal.Client
	case KindMacro:
		return signal.Macro
	case KindInlineMacro:
		return signal.Inline
	case KindModule:
		return signal.Module
	case KindDetached:
		return signal.Detached
	default:
		return signal.Client
	}
}

// Job is one active invocation tracked in a session's job list
// (spec.md §4.5 "Job tracking").
type Job struct {
	CommandIndex  *int
	Leaf          *tree.Leaf
	Synchronous   bool
	Cancel        func()
	done          chan struct{}
}

// Session is one connection's (or macro/module/detached invocation's)
// runtime state (spec.md §3).
type Session struct {
	ID   string
	Kind Kind

	Registry *Registry
	Parent   *Session

	mu          sync.RWMutex
	level       access.Level
	accessLimit access.Level // interface cap
	authLimit   access.Level // credential cap
	Exclusive   bool
	Stealth     bool

	locals map[string]any // session-local variables

	jobs   []*Job
	jobsMu sync.Mutex

	Scope *tree.Branch // current namespace root for path resolution

	Reply  *reply.Writer
	Logger *slog.Logger

	// Scrub is the redacting writer backing Logger's sink, if the
	// caller built one (spec.md §4.1's secret-typed parameters); nil
	// means no redaction pass runs on this session's log lines.
	Scrub *scrub.Writer

	closed bool
}

// SetScrub attaches the redacting writer backing this session's log
// sink, so runLeaf can register secret-typed argument values with it
// as they're bound.
func (s *Session) SetScrub(w *scrub.Writer) { s.Scrub = w }

// New constructs a session of kind attached to reg, rooted at scope,
// writing replies through w. accessLimit is the interface cap (spec.md
// §3); sessions start at Guest.
func New(reg *Registry, kind Kind, scope *tree.Branch, w *reply.Writer, accessLimit, authLimit access.Level, logger *slog.Logger) *Session {
	s := &Session{
		ID:          reg.nextSessionID(),
		Kind:        kind,
		Registry:    reg,
		level:       access.Guest,
		accessLimit: accessLimit,
		authLimit:   authLimit,
		locals:      map[string]any{},
		Scope:       scope,
		Reply:       w,
		Logger:      logger,
	}
	reg.register(s)
	return s
}

// NewChild creates a nested session (macro, inline macro, module,
// detached invocation) sharing parent's registry and reply writer,
// inheriting parent's current level as its starting level and access
// limit (spec.md §4.4's macro-session note).
func NewChild(parent *Session, kind Kind, scope *tree.Branch) *Session {
	parent.mu.RLock()
	level := parent.level
	limit := parent.accessLimit
	parent.mu.RUnlock()

	s := &Session{
		ID:          parent.Registry.nextSessionID(),
		Kind:        kind,
		Registry:    parent.Registry,
		Parent:      parent,
		level:       level,
		accessLimit: limit,
		authLimit:   parent.authLimit,
		locals:      map[string]any{},
		Scope:       scope,
		Reply:       parent.Reply,
		Logger:      parent.Logger,
		Scrub:       parent.Scrub,
	}
	parent.Registry.register(s)
	return s
}

// rawLevel returns the session's level without consulting the
// exclusive-access ceiling. Used by Registry.TryAcquireExclusive,
// which already holds the registry lock Level() would otherwise
// re-enter via ExclusiveCeiling.
func (s *Session) rawLevel() access.Level {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.level
}

// Level returns the session's current access level, clamped by any
// exclusive-access ceiling currently in effect (spec.md §3/§5).
func (s *Session) Level() access.Level {
	lvl := s.rawLevel()
	if ceiling, capped := s.Registry.ExclusiveCeiling(s); capped && lvl > ceiling {
		return ceiling
	}
	return lvl
}

// SetLevel changes the session's level, enforcing the accessLimit cap
// (spec.md §6: "ACCess <level> ... changes level up to the session's
// accessLimit").
func (s *Session) SetLevel(requested access.Level) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if requested > s.accessLimit {
		return levelExceeded(requested, s.accessLimit)
	}
	s.level = requested
	return nil
}

// AccessLimit returns the session's interface cap.
func (s *Session) AccessLimit() access.Level {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessLimit
}

// Close tears the session down: unregisters it, releases any held
// exclusive slot, and removes its bus subscriptions (spec.md §4.5/§4.6
// teardown rules). Any asynchronous jobs are left to complete; any
// still-synchronous job is cancelled.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.Registry.ReleaseExclusive(s)

	s.jobsMu.Lock()
	for _, j := range s.jobs {
		if j.Synchronous && j.Cancel != nil {
			j.Cancel()
		}
	}
	s.jobsMu.Unlock()

	s.Registry.Unregister(s)
}

// addJob records a newly-started invocation in the session's job
// list.
func (s *Session) addJob(j *Job) {
	s.jobsMu.Lock()
	s.jobs = append(s.jobs, j)
	s.jobsMu.Unlock()
}

// removeJob drops a completed invocation from the job list.
func (s *Session) removeJob(j *Job) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	for i, other := range s.jobs {
		if other == j {
			s.jobs = append(s.jobs[:i], s.jobs[i+1:]...)
			return
		}
	}
}
