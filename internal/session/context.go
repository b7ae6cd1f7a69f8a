package session

import (
	"fmt"
	"strings"

	"github.com/scpid/scpid/internal/access"
	"github.com/scpid/scpid/internal/parser"
	"github.com/scpid/scpid/internal/scpierr"
	"github.com/scpid/scpid/internal/tree"
)

// Context is the per-command execution record of spec.md §3: the
// owning session, the current scope, a local variable map, the raw
// command text, its index, the resolved leaf, its raw outputs, and any
// exception. Cloned on nested invocation (macro/command/expression
// substitution, a macro call, a module run).
type Context struct {
	Session *Session
	Scope   *tree.Branch
	Locals  map[string]any

	RawText string
	Index   *int

	Command *parser.Command
	Leaf    tree.Node

	Outputs   []string // ordered previous-command outputs, for $N/$@
	Exception error
}

// NewContext starts a fresh top-level context for s.
func NewContext(s *Session) *Context {
	return &Context{
		Session: s,
		Scope:   s.Scope,
		Locals:  map[string]any{},
	}
}

// Clone produces a nested context sharing the same session but with
// its own local map seeded from the parent's (spec.md §3: "Cloned on
// nested invocation").
func (ctx *Context) Clone() *Context {
	locals := make(map[string]any, len(ctx.Locals))
	for k, v := range ctx.Locals {
		locals[k] = v
	}
	return &Context{
		Session: ctx.Session,
		Scope:   ctx.Scope,
		Locals:  locals,
		Outputs: ctx.Outputs,
	}
}

// --- parser.Resolver implementation: the tokenizer calls back into
// the owning context to evaluate substitutions in place. ---

var _ parser.Resolver = (*Context)(nil)

// Variable implements parser.Resolver.Variable via the three-scope
// lookup of variables.go.
func (ctx *Context) Variable(name string) (parser.Value, bool) {
	v, ok := ctx.lookupVariable(name)
	if !ok {
		return nil, false
	}
	return toParserValue(v), true
}

func toParserValue(v any) parser.Value {
	switch t := v.(type) {
	case string, []string, map[string]string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

// RunCommand implements parser.Resolver.RunCommand: it tokenizes and
// dispatches text as a nested command in the same scope, collapsing
// its outputs into one string (space-joined, spec.md §4.1).
func (ctx *Context) RunCommand(text string) (string, error) {
	child := ctx.Clone()
	reader := &singleLineReader{line: text}
	tok := parser.New(reader, child)
	cmd, err := tok.Next()
	if err != nil {
		return "", err
	}
	if cmd == nil {
		return "", nil
	}
	result, err := Dispatch(child, cmd)
	if err != nil {
		return "", err
	}
	return strings.Join(result.Collapsed, " "), nil
}

// Eval implements parser.Resolver.Eval: an admin-gated arithmetic/
// string expression evaluator (spec.md §4.1's "$[...]" form).
func (ctx *Context) Eval(expr string) (string, error) {
	if ctx.Session.Level() < access.Administrator {
		return "", insufficientAccess(access.Administrator, ctx.Session.Level())
	}
	return evalExpression(expr, ctx)
}

// PreviousOutputs implements parser.Resolver.PreviousOutputs.
func (ctx *Context) PreviousOutputs() []string {
	return ctx.Outputs
}

// singleLineReader is a parser.LineReader that hands out one line and
// then reports EOF; used for commands synthesized in-process ($(...)
// substitutions) that never need to pull a heredoc continuation from a
// live transport.
type singleLineReader struct {
	line string
	done bool
}

func (r *singleLineReader) ReadLine() (string, bool, error) {
	if r.done {
		return "", false, nil
	}
	r.done = true
	return r.line, true, nil
}

// raiseParseError wraps a tokenizer error so dispatch can format it
// uniformly alongside every other scpierr.Error.
func raiseParseError(text string, err error) error {
	if _, ok := err.(*scpierr.Error); ok {
		return err
	}
	return scpierr.NewParseError(text, 0, err.Error(), "", err)
}
