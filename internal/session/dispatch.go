package session

import (
	"log/slog"

	"github.com/scpid/scpid/internal/invariant"
	"github.com/scpid/scpid/internal/param"
	"github.com/scpid/scpid/internal/parser"
	"github.com/scpid/scpid/internal/reply"
	"github.com/scpid/scpid/internal/scpierr"
	"github.com/scpid/scpid/internal/secret"
	"github.com/scpid/scpid/internal/signal"
	"github.com/scpid/scpid/internal/tree"
)

// synchronousParam is the hidden `-synchronous` input every
// Asynchronous leaf implicitly accepts (spec.md §4.4), injected into
// its parameter list at bind time rather than stored on tree.Leaf
// itself.
var synchronousParam = param.Parameter{
	Name: "synchronous", Named: true, Type: param.TypeBoolean,
	HasDefault: true, Default: "false", Hidden: true,
}

// Result is what Dispatch produces for one command: its formatted
// output values (for the OK line and for $(...) collapsing), and,
// when the leaf raised a control-flow signal instead of returning
// normally, that Signal for the caller's block runner to interpret per
// spec.md §4.5's policy table.
type Result struct {
	Values    []reply.Value
	Collapsed []string // ToString'd output values, in OK order, for $(...)
	Signal    *signal.Signal
}

// Dispatch runs the five steps of spec.md §4.5 for one already-
// tokenized command against ctx's session/scope, and writes the
// resulting reply line through the session's reply.Writer unless
// asked not to (RunCommand substitution calls Dispatch directly and
// handles the result itself, bypassing reply emission).
func Dispatch(ctx *Context, cmd *parser.Command) (*Result, error) {
	ctx.Command = cmd

	located, err := tree.Locate(ctx.Session.Registry.Root, ctx.Scope, cmd.Name)
	if err != nil {
		return nil, err
	}
	ctx.Leaf = located.Node

	if ctx.Session.Level() < located.Node.RequiredAccess() {
		return nil, insufficientAccess(located.Node.RequiredAccess(), ctx.Session.Level())
	}

	leaf, ok := leafOf(located.Node)
	if !ok {
		return nil, scpierr.NewIncorrectNodeType(located.Node.Name(), "leaf", "branch")
	}

	return dispatchLeaf(ctx, leaf, cmd, located.Defaults)
}

// leafOf extracts the underlying *tree.Leaf a resolved node dispatches
// through: a plain Leaf directly, or a Macro's embedded Leaf (Macro
// shares Leaf's Inputs/Run/Returns/Breaks machinery, it only adds Body
// and Inline on top, per spec.md §4.4).
func leafOf(n tree.Node) (*tree.Leaf, bool) {
	switch t := n.(type) {
	case *tree.Leaf:
		return t, true
	case *tree.Macro:
		return &t.Leaf, true
	default:
		return nil, false
	}
}

// dispatchLeaf implements the binding/invocation/formatting steps for
// a resolved leaf (spec.md §4.3/§4.4).
func dispatchLeaf(ctx *Context, leaf *tree.Leaf, cmd *parser.Command, defaults map[string]string) (*Result, error) {
	inputs := leaf.Inputs
	if leaf.Asynchronous {
		inputs = append(append([]param.Parameter{}, inputs...), synchronousParam)
	}
	partition := param.BuildPartition(leaf.Name(), inputs)
	partition = applyDefaults(partition, defaults)

	bound, err := param.Bind(leaf.Name(), partition, cmd.Parts)
	if err != nil {
		return nil, err
	}

	args, err := valuesOf(ctx, bound)
	if err != nil {
		return nil, err
	}

	synchronous, _ := args["synchronous"].(bool)
	delete(args, "synchronous")

	if leaf.Returns {
		return &Result{Signal: &signal.Signal{Kind: signal.ReturnValue, Parts: args}}, nil
	}
	if leaf.Breaks {
		levels := 1
		if n, ok := args["levels"].(int64); ok && n > 0 {
			levels = int(n)
		}
		return &Result{Signal: &signal.Signal{Kind: signal.Break, Levels: levels}}, nil
	}

	if leaf.Asynchronous && !synchronous {
		return &Result{Signal: &signal.Signal{Kind: signal.NextReply, Leaf: leaf, Method: "run", Args: args}}, nil
	}

	return runLeaf(ctx, leaf, args)
}

// runLeaf executes prerun/run/postrun (spec.md §4.4): prerun may abort
// (postrun then does not run); postrun always runs otherwise. Handles
// the Singleton mutex and the Background mix-in's chained next() call.
func runLeaf(ctx *Context, leaf *tree.Leaf, args map[string]any) (*Result, error) {
	if !leaf.TryLock() {
		return nil, scpierr.NewSingletonRunning(leaf.Name())
	}
	defer leaf.Unlock()

	job := &Job{Leaf: leaf, CommandIndex: ctx.Index, Synchronous: true}
	ctx.Session.addJob(job)
	defer ctx.Session.removeJob(job)

	if leaf.PreRun != nil {
		if _, err := leaf.PreRun(args); err != nil {
			return nil, err
		}
	}

	args["__ctx"] = ctx
	out, runErr := leaf.Run(args)
	if runErr == nil && leaf.PostRun != nil {
		out, runErr = leaf.PostRun(out)
	} else if runErr != nil {
		// postrun is skipped on a failing run per spec.md §4.4's
		// prerun-abort rule, extended symmetrically to run errors: a
		// leaf that fails mid-invocation has nothing well-formed to
		// hand postrun.
		return nil, runErr
	}

	if leaf.Background {
		return &Result{Signal: &signal.Signal{Kind: signal.NextReply, Leaf: leaf, Method: "next", Args: out}}, nil
	}

	return formatResult(leaf, out)
}

func formatResult(leaf *tree.Leaf, out map[string]any) (*Result, error) {
	for _, p := range leaf.Outputs {
		invariant.Invariant(!p.Named, "leaf %s: declared output %q must not be Named (Named applies to input binding only)", leaf.Name(), p.Name)
	}

	pairs, _ := param.FormatOutputs(leaf.Outputs, out)
	values := make([]reply.Value, 0, len(pairs))
	collapsed := make([]string, 0, len(pairs))
	for _, p := range pairs {
		values = append(values, reply.Value{Name: p.Option, Text: p.Cooked})
		collapsed = append(collapsed, p.Cooked)
	}
	return &Result{Values: values, Collapsed: collapsed}, nil
}

// valuesOf converts every bound parameter to its typed Go value
// (spec.md §4.3 step 5, "object" form); repeating parameters become a
// slice of values. A parameter declared Secret is wrapped in a
// secret.Handle instead of its plain cooked value, and its raw text is
// registered with the session's scrub writer (if any) so a leaf that
// accidentally echoes it back never leaks it to a log sink (spec.md
// §4.1's secret-typed parameter note).
func valuesOf(ctx *Context, bound param.Bound) (map[string]any, error) {
	args := map[string]any{}
	for name, bindings := range bound {
		if len(bindings) == 1 && !bindings[0].Param.Repeating() {
			v, err := valueOf(ctx, bindings[0])
			if err != nil {
				return nil, err
			}
			args[name] = v
			continue
		}
		vs := make([]any, 0, len(bindings))
		for _, b := range bindings {
			v, err := valueOf(ctx, b)
			if err != nil {
				return nil, err
			}
			vs = append(vs, v)
		}
		args[name] = vs
	}
	return args, nil
}

func valueOf(ctx *Context, b param.Binding) (any, error) {
	if !b.Param.Secret {
		return param.ToValue(b)
	}
	h := secret.New(b.Cooked)
	if sw := ctx.Session.Scrub; sw != nil {
		sw.Register(b.Cooked, "[secret:"+h.Fingerprint(sw.RunKey())[:16]+"]")
	}
	return h, nil
}

// applyDefaults returns a copy of partition with each positional-
// optional/named parameter's Default overridden by the tree-path-
// merged defaults map, when present (spec.md §4.2 step 3's merged
// defaults take priority over a parameter's own static default; an
// explicit argument in the command still wins since Bind only
// consults Default for a name left unbound by the walk).
func applyDefaults(p *param.Partition, defaults map[string]string) *param.Partition {
	if len(defaults) == 0 {
		return p
	}
	cp := &param.Partition{
		PositionalRequired:  p.PositionalRequired,
		RepeatingPositional: p.RepeatingPositional,
		RepeatingNamed:      p.RepeatingNamed,
		Named:               make(map[string]param.Parameter, len(p.Named)),
	}
	cp.PositionalOptional = make([]param.Parameter, len(p.PositionalOptional))
	for i, prm := range p.PositionalOptional {
		if v, ok := defaults[prm.Name]; ok {
			prm.HasDefault = true
			prm.Default = v
		}
		cp.PositionalOptional[i] = prm
	}
	for name, prm := range p.Named {
		if v, ok := defaults[name]; ok {
			prm.HasDefault = true
			prm.Default = v
		}
		cp.Named[name] = prm
	}
	return cp
}

// ApplySignal runs the control-flow policy of spec.md §4.5's table for
// sig in the context of session s, deciding whether to emit NEXT and
// run on a new worker, run synchronously, re-raise to the parent, or
// pass through. spawn is called to hand off asynchronous work (a
// goroutine in the real dispatcher; tests can substitute a
// synchronous stand-in).
func ApplySignal(ctx *Context, sig *signal.Signal, logger *slog.Logger, spawn func(func())) (*Result, error) {
	policy := ctx.Session.Kind.Policy()

	switch sig.Kind {
	case signal.NextReply:
		if policy.NextReplyEmitsNext {
			spawn(func() {
				res, err := runLeaf(ctx, sig.Leaf, sig.Args)
				emitAsync(ctx, res, err)
			})
			return &Result{Signal: sig}, nil
		}
		return runLeaf(ctx, sig.Leaf, sig.Args)

	case signal.NextCommand:
		if policy.NextCommandReraises && ctx.Session.Parent != nil {
			return nil, nil // caller re-dispatches against the parent session
		}
		return runLeaf(ctx, sig.Leaf, sig.Args)

	case signal.ReturnValue, signal.ReturnCall, signal.Break:
		if policy.CatchReturn {
			return &Result{Signal: sig}, nil
		}
		return nil, nil

	default:
		return nil, scpierr.NewInternal(nil, "dispatch: unknown signal kind")
	}
}

// emitAsync writes the deferred OK/ERRor reply for a command that
// earlier returned NEXT (spec.md §5: "the later OK/ERR from its
// completion may interleave with replies to subsequent commands").
func emitAsync(ctx *Context, res *Result, err error) {
	if ctx.Session.Reply == nil {
		return
	}
	if err != nil {
		_ = ctx.Session.Reply.Err(ctx.Index, ctx.RawText, err)
		return
	}
	_ = ctx.Session.Reply.OK(ctx.Index, ctx.RawText, res.Values)
}
