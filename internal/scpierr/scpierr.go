// Package scpierr implements the error representation described in
// spec.md §7: a qualified identifier, an ordered set of named
// attributes substituted into a message template, and a context
// stack of sub-expression strings prepended as the error unwinds
// through nested sessions, macros and modules.
package scpierr

import (
	"fmt"
	"runtime"
	"strings"
)

// Kind classifies an Error into one of the categories spec.md §7 names.
// Kind does not appear on the wire; it only drives how the session
// runtime reacts (e.g. Access errors never advance a macro's program
// counter past the failing line; Internal errors get a traceback).
type Kind int

const (
	KindParse Kind = iota
	KindLookup
	KindBinding
	KindAccess
	KindRun
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "Parse"
	case KindLookup:
		return "Lookup"
	case KindBinding:
		return "Binding"
	case KindAccess:
		return "Access"
	case KindRun:
		return "Run"
	case KindInternal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// Attr is one named attribute substituted into the message template.
// A slice, not a map, because attribute order is part of the wire
// contract (§4.7's `-attr=value` sequence must be stable).
type Attr struct {
	Name  string
	Value string
}

// Error is the qualified, wire-formattable error representation.
type Error struct {
	App      string // always "App" in this server; kept as a field so embedders can rename it
	Category string // e.g. "Core", "Args", "Access"
	Name     string // e.g. "UnknownCommand"
	Kind     Kind
	Template string  // message template, attr names in {braces}
	Attrs    []Attr  // substituted into Template in order
	Context  []string
	Trace    []string // populated only for KindInternal
	Cause    error
}

// New builds an Error. template may reference attrs by {name}.
func New(kind Kind, category, name, template string, attrs ...Attr) *Error {
	e := &Error{
		App:      "App",
		Category: category,
		Name:     name,
		Kind:     kind,
		Template: template,
		Attrs:    attrs,
	}
	if kind == KindInternal {
		e.Trace = captureTrace()
	}
	return e
}

// QualifiedID returns "App.Category.Name" as used in the wire's
// bracketed error identifier.
func (e *Error) QualifiedID() string {
	return fmt.Sprintf("%s.%s.%s", e.App, e.Category, e.Name)
}

// WithContext prepends a sub-expression string to the context stack,
// called once per frame as the error unwinds through a nested
// session, macro or module.
func (e *Error) WithContext(frame string) *Error {
	e.Context = append([]string{frame}, e.Context...)
	return e
}

// Message renders Template with Attrs substituted in.
func (e *Error) Message() string {
	msg := e.Template
	for _, a := range e.Attrs {
		msg = strings.ReplaceAll(msg, "{"+a.Name+"}", a.Value)
	}
	return msg
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] ", e.QualifiedID()))
	b.WriteString(e.Message())
	if len(e.Context) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(e.Context, " <- "))
		b.WriteString(")")
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

func captureTrace() []string {
	pc := make([]uintptr, 16)
	n := runtime.Callers(3, pc)
	frames := runtime.CallersFrames(pc[:n])
	var trace []string
	for {
		frame, more := frames.Next()
		trace = append(trace, fmt.Sprintf("%s:%d %s", frame.File, frame.Line, frame.Function))
		if !more {
			break
		}
	}
	return trace
}

// --- Constructors for the named errors spec.md enumerates. ---

func NewParseError(expression string, pos int, reason string, subexpression string, cause error) *Error {
	e := New(KindParse, "Parse", "ParseError",
		"error at position {pos}: {reason}",
		Attr{"pos", fmt.Sprintf("%d", pos)},
		Attr{"reason", reason},
		Attr{"expression", expression},
	)
	if subexpression != "" {
		e.WithContext(subexpression)
	}
	e.Cause = cause
	return e
}

func NewUnknownCommand(branch, command string, suggest []string) *Error {
	e := New(KindLookup, "Core", "UnknownCommand",
		"{command} <-- Unknown Command",
		Attr{"branch", branch},
		Attr{"command", command},
	)
	if len(suggest) > 0 {
		e.Attrs = append(e.Attrs, Attr{"suggest", strings.Join(suggest, ",")})
	}
	return e
}

func NewNoUpperCaseLetters(name string) *Error {
	return New(KindLookup, "Core", "NoUpperCaseLetters",
		"command {name} has no all-lowercase alias form",
		Attr{"name", name})
}

func NewDuplicateShortName(name, existing string) *Error {
	return New(KindLookup, "Core", "DuplicateShortName",
		"short name {name} already resolves to {existing}",
		Attr{"name", name}, Attr{"existing", existing})
}

func NewDuplicateInstanceName(name string) *Error {
	return New(KindLookup, "Core", "DuplicateInstanceName",
		"instance {name} already exists; use replaceExisting to overwrite",
		Attr{"name", name})
}

func NewIncorrectNodeType(name, wanted, got string) *Error {
	return New(KindLookup, "Core", "IncorrectNodeType",
		"{name} is a {got}, expected {wanted}",
		Attr{"name", name}, Attr{"wanted", wanted}, Attr{"got", got})
}

func NewNoSuchCommandOption(leaf, option string) *Error {
	return New(KindBinding, "Args", "NoSuchCommandOption",
		"{leaf} has no option -{option}",
		Attr{"leaf", leaf}, Attr{"option", option})
}

func NewExtraArgument(leaf, value string) *Error {
	return New(KindBinding, "Args", "ExtraArgument",
		"{leaf} does not accept extra argument {value}",
		Attr{"leaf", leaf}, Attr{"value", value})
}

func NewMissingArgument(leaf, param string) *Error {
	return New(KindBinding, "Args", "MissingArgument",
		"{leaf} requires argument {param}",
		Attr{"leaf", leaf}, Attr{"param", param})
}

func NewTooFewRepeats(param string, got, min int) *Error {
	return New(KindBinding, "Args", "TooFewRepeats",
		"{param} requires at least {min} repeats, got {got}",
		Attr{"param", param}, Attr{"got", fmt.Sprintf("%d", got)}, Attr{"min", fmt.Sprintf("%d", min)})
}

func NewTooManyRepeats(param string, got, max int) *Error {
	return New(KindBinding, "Args", "TooManyRepeats",
		"{param} allows at most {max} repeats, got {got}",
		Attr{"param", param}, Attr{"got", fmt.Sprintf("%d", got)}, Attr{"max", fmt.Sprintf("%d", max)})
}

func NewRangeViolation(param, value string, min, max string) *Error {
	return New(KindBinding, "Args", "RangeViolation",
		"{param}={value} outside range [{min},{max}]",
		Attr{"param", param}, Attr{"value", value}, Attr{"min", min}, Attr{"max", max})
}

func NewEnumViolation(param, value string, allowed []string) *Error {
	return New(KindBinding, "Args", "EnumViolation",
		"{param}={value} not one of {allowed}",
		Attr{"param", param}, Attr{"value", value}, Attr{"allowed", strings.Join(allowed, "|")})
}

func NewFormatViolation(param, value, reason string) *Error {
	return New(KindBinding, "Args", "FormatViolation",
		"{param}={value} invalid: {reason}",
		Attr{"param", param}, Attr{"value", value}, Attr{"reason", reason})
}

func NewInsufficientAccess(required, current string) *Error {
	return New(KindAccess, "Core", "InsufficientAccess",
		"requires {requiredAccess}, session is {currentAccess}",
		Attr{"requiredAccess", required}, Attr{"currentAccess", current})
}

func NewAccessLevelExceeded(requested, limit string) *Error {
	return New(KindAccess, "Core", "AccessLevelExceeded",
		"requested {requested} exceeds session limit {limit}",
		Attr{"requested", requested}, Attr{"limit", limit})
}

func NewExclusiveHeld(holder string) *Error {
	return New(KindAccess, "Core", "ExclusiveAccessHeld",
		"exclusive access is held by {holder}",
		Attr{"holder", holder})
}

func NewSingletonRunning(leaf string) *Error {
	return New(KindRun, "Core", "SingletonRunning",
		"{leaf} is already running",
		Attr{"leaf", leaf})
}

func NewSCPIDisconnected(session string) *Error {
	return New(KindRun, "Core", "SCPIDisconnected",
		"session {session} disconnected",
		Attr{"session", session})
}

func NewInternal(cause error, where string) *Error {
	e := New(KindInternal, "Core", "InternalError",
		"unexpected internal error in {where}: {cause}",
		Attr{"where", where}, Attr{"cause", fmt.Sprintf("%v", cause)})
	e.Cause = cause
	return e
}
