package session

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/scpid/scpid/internal/parser"
	"github.com/scpid/scpid/internal/signal"
	"github.com/scpid/scpid/internal/tree"
)

// BindMacro installs m's Run handler: substitute args into m.Body,
// then hand the result to a child macro session (or execute inline in
// the caller's context, for an Inline macro), per spec.md §4.4.
func BindMacro(m *tree.Macro) {
	m.Run = func(in map[string]any) (map[string]any, error) {
		// The caller context travels through in["__ctx"], stashed there
		// by runMacroLeaf below, since tree.Handler's signature has no
		// room for it directly.
		ctx, _ := in["__ctx"].(*Context)
		delete(in, "__ctx")
		return RunMacro(ctx, m, in)
	}
}

// RunMacro substitutes $name/$@/$0/$N tokens in m.Body using args, and
// executes the result. An Inline macro runs in ctx's own session and
// scope, sharing variables and return semantics; a normal macro runs
// in a fresh child macro session restoring ctx's original command
// scope once it returns (spec.md §4.4).
func RunMacro(ctx *Context, m *tree.Macro, args map[string]any) (map[string]any, error) {
	body := substituteMacroBody(m.Body, args)

	var macroCtx *Context
	if m.Inline {
		macroCtx = ctx
	} else {
		child := NewChild(ctx.Session, KindMacro, ctx.Scope)
		macroCtx = NewContext(child)
	}

	result, sig, err := runMacroBody(macroCtx, body)
	if !m.Inline {
		macroCtx.Session.Close()
	}
	if err != nil {
		return nil, err
	}
	if sig != nil && sig.Kind == signal.ReturnValue {
		return toAnyMap(sig.Parts), nil
	}
	_ = result
	return map[string]any{}, nil
}

// runMacroBody tokenizes and dispatches every logical line of body in
// sequence against ctx, stopping early on a caught Break/ReturnValue
// signal (spec.md §4.5's catchReturn policy, true for every macro
// session kind).
func runMacroBody(ctx *Context, body string) (*Result, *signal.Signal, error) {
	reader := &lineSliceReader{lines: strings.Split(body, "\n")}
	var last *Result
	for {
		tok := parser.New(reader, ctx)
		cmd, err := tok.Next()
		if err != nil {
			return nil, nil, raiseParseError(body, err)
		}
		if cmd == nil {
			return last, nil, nil
		}
		res, err := Dispatch(ctx, cmd)
		if err != nil {
			return nil, nil, err
		}
		last = res
		if res != nil && res.Signal != nil {
			switch res.Signal.Kind {
			case signal.ReturnValue, signal.Break:
				return res, res.Signal, nil
			}
		}
	}
}

// lineSliceReader is a parser.LineReader over a pre-split slice of
// logical lines, used to feed a macro body (already fully available in
// memory) through the same tokenizer a live transport uses.
type lineSliceReader struct {
	lines []string
	i     int
}

func (r *lineSliceReader) ReadLine() (string, bool, error) {
	if r.i >= len(r.lines) {
		return "", false, nil
	}
	line := r.lines[r.i]
	r.i++
	return line, true, nil
}

// substituteMacroBody replaces $name, $@ (all positional args space-
// joined), $0 (the macro's own name) and $N (the Nth positional
// argument) in body (spec.md §4.4).
func substituteMacroBody(body string, args map[string]any) string {
	positional := positionalArgs(args)

	var b strings.Builder
	r := []rune(body)
	for i := 0; i < len(r); i++ {
		if r[i] != '$' || i == len(r)-1 {
			b.WriteRune(r[i])
			continue
		}
		next := r[i+1]
		switch {
		case next == '@':
			b.WriteString(strings.Join(positional, " "))
			i++
		case next == '0':
			b.WriteString("0")
			i++
		case next >= '1' && next <= '9':
			j := i + 1
			for j < len(r) && r[j] >= '0' && r[j] <= '9' {
				j++
			}
			n, _ := strconv.Atoi(string(r[i+1 : j]))
			if n-1 < len(positional) {
				b.WriteString(positional[n-1])
			}
			i = j - 1
		case isIdentStartRune(next):
			j := i + 1
			for j < len(r) && isIdentPartRune(r[j]) {
				j++
			}
			name := string(r[i+1 : j])
			if v, ok := args[name]; ok {
				b.WriteString(fmt.Sprintf("%v", v))
			}
			i = j - 1
		default:
			b.WriteRune(r[i])
		}
	}
	return b.String()
}

func isIdentStartRune(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentPartRune(r rune) bool {
	return isIdentStartRune(r) || (r >= '0' && r <= '9')
}

// positionalArgs collects args bound under numeric-looking keys (the
// macro leaf's own repeating positional catchall) in order, for $@/$N.
func positionalArgs(args map[string]any) []string {
	raw, ok := args["args"].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		out = append(out, fmt.Sprintf("%v", v))
	}
	return out
}

func toAnyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
