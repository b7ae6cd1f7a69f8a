package parser

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/scpid/scpid/internal/scpierr"
	"github.com/scpid/scpid/internal/wire"
)

// Tokenizer reads logical commands from a LineReader, resolving
// substitutions through a Resolver as it scans (spec.md §4.1).
type Tokenizer struct {
	lines    LineReader
	resolver Resolver

	buf []rune
	pos int
}

// New returns a Tokenizer reading physical lines from lines and
// resolving variable/command/expression substitutions through r.
func New(lines LineReader, r Resolver) *Tokenizer {
	return &Tokenizer{lines: lines, resolver: r}
}

// Next reads and tokenizes the next logical command. It returns
// io.EOF when the underlying LineReader is exhausted.
func (t *Tokenizer) Next() (*Command, error) {
	for {
		line, ok, err := t.lines.ReadLine()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, io.EOF
		}
		trimmed := strings.TrimLeft(line, " \t")
		if strings.HasPrefix(trimmed, "#") {
			continue // whole-line comment, discard and read the next line
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		t.buf = []rune(line)
		t.pos = 0
		return t.scanCommand(line)
	}
}

func (t *Tokenizer) scanCommand(originalFirstLine string) (*Command, error) {
	cmd := &Command{}
	t.skipSpaces()

	// Optional leading numeric index (spec.md §6: "42 VERSion?").
	start := t.pos
	for t.pos < len(t.buf) && t.buf[t.pos] >= '0' && t.buf[t.pos] <= '9' {
		t.pos++
	}
	if t.pos > start && (t.pos >= len(t.buf) || t.buf[t.pos] == ' ' || t.buf[t.pos] == '\t') {
		n, _ := strconv.Atoi(string(t.buf[start:t.pos]))
		cmd.Index = &n
		t.skipSpaces()
	} else {
		t.pos = start
	}

	// Command path: contiguous non-whitespace up to the next gap.
	nameStart := t.pos
	for t.pos < len(t.buf) && t.buf[t.pos] != ' ' && t.buf[t.pos] != '\t' {
		t.pos++
	}
	cmd.Name = string(t.buf[nameStart:t.pos])
	if cmd.Name == "" {
		return nil, scpierr.NewParseError(originalFirstLine, t.pos, "empty command", "", nil)
	}

	parts, raw, err := t.scanParts()
	if err != nil {
		return nil, err
	}
	cmd.Parts = parts
	cmd.Text = originalFirstLine + raw
	return cmd, nil
}

// scanParts tokenizes the remainder of the command into parts,
// pulling additional physical lines for unterminated quotes/heredocs
// or backslash continuations. It returns the parts plus any extra raw
// text consumed past the first physical line (for Command.Text).
func (t *Tokenizer) scanParts() ([]Part, string, error) {
	var parts []Part
	var extraLines strings.Builder
	lastEnd := t.pos

	for {
		t.skipSpaces()
		if t.pos >= len(t.buf) {
			break // end of the logical command: no open quote/heredoc pending
		}
		if t.buf[t.pos] == '#' && (t.pos == 0 || t.buf[t.pos-1] == ' ' || t.buf[t.pos-1] == '\t') {
			t.pos = len(t.buf) // inline comment: discard rest of line
			continue
		}
		if t.buf[t.pos] == '\\' && t.pos == len(t.buf)-1 {
			// backslash-newline continuation
			t.pos++
			if !t.pullLine(&extraLines) {
				break
			}
			t.pos++ // drop the joining newline
			continue
		}

		option := ""
		if t.buf[t.pos] == '-' && t.looksLikeOption() {
			t.pos++
			nameStart := t.pos
			for t.pos < len(t.buf) && t.buf[t.pos] != '=' && t.buf[t.pos] != ' ' && t.buf[t.pos] != '\t' {
				t.pos++
			}
			option = string(t.buf[nameStart:t.pos])
			if t.pos < len(t.buf) && t.buf[t.pos] == '=' {
				t.pos++
			} else {
				// bare option flag with no value (boolean-style)
				raw := string(t.buf[lastEnd:t.pos])
				parts = append(parts, Part{Option: option, Cooked: "true", Raw: raw})
				lastEnd = t.pos
				continue
			}
		}

		cooked, hidden, err := t.scanWord(&extraLines)
		if err != nil {
			return nil, extraLines.String(), err
		}
		raw := string(t.buf[lastEnd:t.pos])
		if hidden {
			raw = strings.Repeat("*", len([]rune(raw)))
		}
		parts = append(parts, Part{Option: option, Cooked: cooked, Raw: raw, Hidden: hidden})
		lastEnd = t.pos
	}
	return parts, extraLines.String(), nil
}

// looksLikeOption reports whether the '-' at t.pos introduces a named
// option rather than a negative number or a bare literal argument.
func (t *Tokenizer) looksLikeOption() bool {
	if t.pos+1 >= len(t.buf) {
		return false
	}
	c := t.buf[t.pos+1]
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// scanWord scans one whitespace-delimited word, handling quotes,
// heredocs and substitutions, and returns its cooked value.
func (t *Tokenizer) scanWord(extra *strings.Builder) (string, bool, error) {
	var cooked strings.Builder
	hiddenAny := false

	for t.pos < len(t.buf) {
		c := t.buf[t.pos]
		switch {
		case c == ' ' || c == '\t':
			return cooked.String(), hiddenAny, nil
		case c == '\\' && t.pos == len(t.buf)-1:
			t.pos++
			if !t.pullLine(extra) {
				return cooked.String(), hiddenAny, nil
			}
			t.pos++ // drop the joining newline: continuation elides it
		case c == '\'':
			s, err := t.scanSingleQuoted(extra)
			if err != nil {
				return "", false, err
			}
			cooked.WriteString(s)
		case c == '"':
			s, err := t.scanDoubleQuoted(extra)
			if err != nil {
				return "", false, err
			}
			cooked.WriteString(s)
		case c == '<' && t.peekHeredocTag():
			s, err := t.scanTaggedHeredoc(extra)
			if err != nil {
				return "", false, err
			}
			cooked.WriteString(s)
		case c == '<' && t.peekTripleLT():
			s, err := t.scanTripleHeredoc(extra)
			if err != nil {
				return "", false, err
			}
			cooked.WriteString(s)
		case c == '$':
			s, hidden, err := t.scanSubstitution()
			if err != nil {
				return "", false, err
			}
			hiddenAny = hiddenAny || hidden
			cooked.WriteString(s)
		default:
			cooked.WriteRune(c)
			t.pos++
		}
	}
	return cooked.String(), hiddenAny, nil
}

func (t *Tokenizer) skipSpaces() {
	for t.pos < len(t.buf) && (t.buf[t.pos] == ' ' || t.buf[t.pos] == '\t') {
		t.pos++
	}
}

// pullLine appends the next physical line onto t.buf (and extra, for
// Command.Text reconstruction) so scanning can continue across a
// heredoc/continuation boundary. Returns false at end of stream.
func (t *Tokenizer) pullLine(extra *strings.Builder) bool {
	line, ok, err := t.lines.ReadLine()
	if err != nil || !ok {
		return false
	}
	extra.WriteString("\n")
	extra.WriteString(line)
	t.buf = append(t.buf, '\n')
	t.buf = append(t.buf, []rune(line)...)
	return true
}

func (t *Tokenizer) scanSingleQuoted(extra *strings.Builder) (string, error) {
	t.pos++ // opening quote
	start := t.pos
	for {
		if t.pos >= len(t.buf) {
			if !t.pullLine(extra) {
				return "", scpierr.NewParseError(string(t.buf), t.pos, "unterminated single-quoted string", "", nil)
			}
			continue
		}
		if t.buf[t.pos] == '\'' {
			s := string(t.buf[start:t.pos])
			t.pos++
			return s, nil
		}
		t.pos++
	}
}

func (t *Tokenizer) scanDoubleQuoted(extra *strings.Builder) (string, error) {
	t.pos++ // opening quote
	var raw strings.Builder
	for {
		if t.pos >= len(t.buf) {
			if !t.pullLine(extra) {
				return "", scpierr.NewParseError(string(t.buf), t.pos, "unterminated double-quoted string", "", nil)
			}
			continue
		}
		c := t.buf[t.pos]
		if c == '"' {
			t.pos++
			break
		}
		if c == '\\' && t.pos+1 < len(t.buf) {
			raw.WriteRune(c)
			raw.WriteRune(t.buf[t.pos+1])
			t.pos += 2
			continue
		}
		if c == '$' {
			s, _, err := t.scanSubstitution()
			if err != nil {
				return "", err
			}
			raw.WriteString(wire.Escape(s))
			continue
		}
		raw.WriteRune(c)
		t.pos++
	}
	cooked, err := wire.Unescape(raw.String())
	if err != nil {
		return "", scpierr.NewParseError(raw.String(), 0, err.Error(), "", err)
	}
	return cooked, nil
}

func (t *Tokenizer) peekTripleLT() bool {
	return t.pos+2 < len(t.buf) && t.buf[t.pos+1] == '<' && t.buf[t.pos+2] == '<'
}

func (t *Tokenizer) scanTripleHeredoc(extra *strings.Builder) (string, error) {
	t.pos += 3
	depth := 1
	var body strings.Builder
	for depth > 0 {
		if t.pos >= len(t.buf) {
			if !t.pullLine(extra) {
				return "", scpierr.NewParseError("", t.pos, "unterminated <<< heredoc", "", nil)
			}
			continue
		}
		if t.pos+2 < len(t.buf) && t.buf[t.pos] == '<' && t.buf[t.pos+1] == '<' && t.buf[t.pos+2] == '<' {
			depth++
			body.WriteString("<<<")
			t.pos += 3
			continue
		}
		if t.pos+2 < len(t.buf) && t.buf[t.pos] == '>' && t.buf[t.pos+1] == '>' && t.buf[t.pos+2] == '>' {
			depth--
			t.pos += 3
			if depth == 0 {
				break
			}
			body.WriteString(">>>")
			continue
		}
		body.WriteRune(t.buf[t.pos])
		t.pos++
	}
	return body.String(), nil
}

// peekHeredocTag reports whether the '<' at t.pos introduces a tagged
// heredoc `<tag>...</tag>` rather than a bare option/arg-ref token.
func (t *Tokenizer) peekHeredocTag() bool {
	if t.pos+1 >= len(t.buf) {
		return false
	}
	i := t.pos + 1
	if !isIdentStart(t.buf[i]) {
		return false
	}
	for i < len(t.buf) && isIdentPart(t.buf[i]) {
		i++
	}
	return i < len(t.buf) && t.buf[i] == '>' && i > t.pos+1
}

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
func isIdentPart(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9')
}

func (t *Tokenizer) scanTaggedHeredoc(extra *strings.Builder) (string, error) {
	t.pos++ // '<'
	tagStart := t.pos
	for t.pos < len(t.buf) && isIdentPart(t.buf[t.pos]) {
		t.pos++
	}
	tag := string(t.buf[tagStart:t.pos])
	t.pos++ // '>'

	open := "<" + tag + ">"
	closeTag := "</" + tag + ">"
	depth := 1
	var body strings.Builder
	for depth > 0 {
		if t.pos >= len(t.buf) {
			if !t.pullLine(extra) {
				return "", scpierr.NewParseError("", t.pos, fmt.Sprintf("unterminated <%s> heredoc", tag), "", nil)
			}
			continue
		}
		rest := string(t.buf[t.pos:])
		if strings.HasPrefix(rest, open) {
			depth++
			body.WriteString(open)
			t.pos += len([]rune(open))
			continue
		}
		if strings.HasPrefix(rest, closeTag) {
			depth--
			t.pos += len([]rune(closeTag))
			if depth == 0 {
				break
			}
			body.WriteString(closeTag)
			continue
		}
		body.WriteRune(t.buf[t.pos])
		t.pos++
	}
	return body.String(), nil
}

// scanSubstitution parses one `$...` occurrence at t.pos (t.buf[t.pos]
// == '$') and returns its cooked value.
func (t *Tokenizer) scanSubstitution() (string, bool, error) {
	t.pos++ // '$'
	if t.pos >= len(t.buf) {
		return "", false, scpierr.NewParseError("", t.pos, "dangling '$' at end of line", "", nil)
	}
	switch t.buf[t.pos] {
	case '{':
		return t.scanVariableSub()
	case '(':
		inner, err := t.scanBalanced('(', ')')
		if err != nil {
			return "", false, err
		}
		out, err := t.resolver.RunCommand(inner)
		if err != nil {
			return "", false, scpierr.NewParseError(inner, t.pos, err.Error(), "$(...)", err)
		}
		return out, false, nil
	case '[':
		inner, err := t.scanBalanced('[', ']')
		if err != nil {
			return "", false, err
		}
		out, err := t.resolver.Eval(inner)
		if err != nil {
			return "", false, scpierr.NewParseError(inner, t.pos, err.Error(), "$[...]", err)
		}
		return out, false, nil
	case '<':
		inner, err := t.scanBalanced('<', '>')
		if err != nil {
			return "", false, err
		}
		cooked, err := t.resolveInnerArg(inner)
		if err != nil {
			return "", false, err
		}
		return cooked, true, nil
	case '@':
		t.pos++
		return strings.Join(t.resolver.PreviousOutputs(), " "), false, nil
	case '/':
		sepStart := t.pos + 1
		end := -1
		for i := sepStart; i < len(t.buf); i++ {
			if t.buf[i] == '/' {
				end = i
				break
			}
		}
		if end < 0 {
			return "", false, scpierr.NewParseError("", t.pos, "unterminated $/sep/", "", nil)
		}
		sep := string(t.buf[sepStart:end])
		t.pos = end + 1
		return strings.Join(t.resolver.PreviousOutputs(), sep), false, nil
	default:
		if t.buf[t.pos] >= '0' && t.buf[t.pos] <= '9' {
			start := t.pos
			for t.pos < len(t.buf) && t.buf[t.pos] >= '0' && t.buf[t.pos] <= '9' {
				t.pos++
			}
			n, _ := strconv.Atoi(string(t.buf[start:t.pos]))
			outs := t.resolver.PreviousOutputs()
			if n < 0 || n >= len(outs) {
				return "", false, scpierr.NewParseError("", start, fmt.Sprintf("no such previous output $%d", n), "", nil)
			}
			return outs[n], false, nil
		}
		return "", false, scpierr.NewParseError("", t.pos, fmt.Sprintf("unrecognized substitution '$%c'", t.buf[t.pos]), "", nil)
	}
}

// resolveInnerArg cooks the text inside a `$<...>` hidden form by
// recursively tokenizing it as a single nested argument word.
func (t *Tokenizer) resolveInnerArg(inner string) (string, error) {
	sub := &Tokenizer{buf: []rune(inner), pos: 0, resolver: t.resolver, lines: emptyLines{}}
	cooked, _, err := sub.scanWord(&strings.Builder{})
	if err != nil {
		return "", err
	}
	return cooked, nil
}

// scanBalanced consumes text from t.pos (positioned at open) through
// the matching close, counting nested occurrences, and returns the
// inner text (not including the delimiters).
func (t *Tokenizer) scanBalanced(open, close rune) (string, error) {
	t.pos++ // consume open
	start := t.pos
	depth := 1
	for t.pos < len(t.buf) {
		switch t.buf[t.pos] {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				s := string(t.buf[start:t.pos])
				t.pos++
				return s, nil
			}
		}
		t.pos++
	}
	return "", scpierr.NewParseError("", start, fmt.Sprintf("unterminated %q...%q", open, close), "", nil)
}

func (t *Tokenizer) scanVariableSub() (string, bool, error) {
	body, err := t.scanBalanced('{', '}')
	if err != nil {
		return "", false, err
	}
	ve, err := compileVarExpr(body)
	if err != nil {
		return "", false, scpierr.NewParseError(body, t.pos, err.Error(), "${...}", err)
	}
	val, ok := t.resolver.Variable(ve.name)
	out, err := ve.Eval(val, ok)
	if err != nil {
		return "", false, scpierr.NewParseError(body, t.pos, err.Error(), "${...}", err)
	}
	return out, false, nil
}

// emptyLines is a LineReader that never supplies more input, used for
// recursively tokenizing a bounded inner string (e.g. a $<...> body)
// that must not itself pull further physical lines.
type emptyLines struct{}

func (emptyLines) ReadLine() (string, bool, error) { return "", false, nil }
