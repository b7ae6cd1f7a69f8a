package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scpid/scpid/internal/wire"
)

type sliceLines struct {
	lines []string
	pos   int
}

func (s *sliceLines) ReadLine() (string, bool, error) {
	if s.pos >= len(s.lines) {
		return "", false, nil
	}
	l := s.lines[s.pos]
	s.pos++
	return l, true, nil
}

type fakeResolver struct {
	vars    map[string]Value
	outputs []string
	runErr  error
	runOut  string
	evalOut string
	evalErr error
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{vars: map[string]Value{}}
}

func (f *fakeResolver) Variable(name string) (Value, bool) {
	v, ok := f.vars[name]
	return v, ok
}

func (f *fakeResolver) RunCommand(text string) (string, error) {
	if f.runErr != nil {
		return "", f.runErr
	}
	return f.runOut, nil
}

func (f *fakeResolver) Eval(expr string) (string, error) {
	if f.evalErr != nil {
		return "", f.evalErr
	}
	return f.evalOut, nil
}

func (f *fakeResolver) PreviousOutputs() []string {
	return f.outputs
}

func TestTokenizer_SimpleCommand(t *testing.T) {
	lines := &sliceLines{lines: []string{`LASer:POWer:SETTing 42.0 -unit=mW`}}
	tok := New(lines, newFakeResolver())

	cmd, err := tok.Next()
	require.NoError(t, err)
	assert.Equal(t, "LASer:POWer:SETTing", cmd.Name)
	require.Len(t, cmd.Parts, 2)
	assert.Equal(t, "42.0", cmd.Parts[0].Cooked)
	assert.Equal(t, "", cmd.Parts[0].Option)
	assert.Equal(t, "unit", cmd.Parts[1].Option)
	assert.Equal(t, "mW", cmd.Parts[1].Cooked)
}

func TestTokenizer_LeadingIndex(t *testing.T) {
	lines := &sliceLines{lines: []string{`42 VERSion?`}}
	tok := New(lines, newFakeResolver())

	cmd, err := tok.Next()
	require.NoError(t, err)
	require.NotNil(t, cmd.Index)
	assert.Equal(t, 42, *cmd.Index)
	assert.Equal(t, "VERSion?", cmd.Name)
}

func TestTokenizer_CommentLine(t *testing.T) {
	lines := &sliceLines{lines: []string{`# just a comment`, `VERSion?`}}
	tok := New(lines, newFakeResolver())

	cmd, err := tok.Next()
	require.NoError(t, err)
	assert.Equal(t, "VERSion?", cmd.Name)
}

func TestTokenizer_InlineComment(t *testing.T) {
	lines := &sliceLines{lines: []string{`ECHO hello # trailing comment`}}
	tok := New(lines, newFakeResolver())

	cmd, err := tok.Next()
	require.NoError(t, err)
	require.Len(t, cmd.Parts, 1)
	assert.Equal(t, "hello", cmd.Parts[0].Cooked)
}

func TestTokenizer_SingleQuoteDisablesSubstitution(t *testing.T) {
	lines := &sliceLines{lines: []string{`ECHO '${x} literal'`}}
	tok := New(lines, newFakeResolver())

	cmd, err := tok.Next()
	require.NoError(t, err)
	require.Len(t, cmd.Parts, 1)
	assert.Equal(t, "${x} literal", cmd.Parts[0].Cooked)
}

func TestTokenizer_DoubleQuoteEscapesAndSubstitutes(t *testing.T) {
	r := newFakeResolver()
	r.vars["x"] = "world"
	lines := &sliceLines{lines: []string{`ECHO "hello\tthere ${x}"`}}
	tok := New(lines, r)

	cmd, err := tok.Next()
	require.NoError(t, err)
	require.Len(t, cmd.Parts, 1)
	assert.Equal(t, "hello\tthere world", cmd.Parts[0].Cooked)
}

func TestTokenizer_VariableSubstitution(t *testing.T) {
	r := newFakeResolver()
	r.vars["x"] = "foo"
	lines := &sliceLines{lines: []string{`ECHO ${x}`}}
	tok := New(lines, r)

	cmd, err := tok.Next()
	require.NoError(t, err)
	assert.Equal(t, "foo", cmd.Parts[0].Cooked)
}

func TestTokenizer_CommandSubstitution(t *testing.T) {
	r := newFakeResolver()
	r.runOut = "3.14"
	lines := &sliceLines{lines: []string{`ECHO $(READ:VALue?)`}}
	tok := New(lines, r)

	cmd, err := tok.Next()
	require.NoError(t, err)
	assert.Equal(t, "3.14", cmd.Parts[0].Cooked)
}

func TestTokenizer_CommandSubstitutionError(t *testing.T) {
	r := newFakeResolver()
	r.runErr = errors.New("boom")
	lines := &sliceLines{lines: []string{`ECHO $(FAIL?)`}}
	tok := New(lines, r)

	_, err := tok.Next()
	require.Error(t, err)
}

func TestTokenizer_ExpressionSubstitution(t *testing.T) {
	r := newFakeResolver()
	r.evalOut = "7"
	lines := &sliceLines{lines: []string{`ECHO $[1+6]`}}
	tok := New(lines, r)

	cmd, err := tok.Next()
	require.NoError(t, err)
	assert.Equal(t, "7", cmd.Parts[0].Cooked)
}

func TestTokenizer_ArgRefs(t *testing.T) {
	r := newFakeResolver()
	r.outputs = []string{"a", "b", "c"}
	lines := &sliceLines{lines: []string{`ECHO $0 $@ $/,/`}}
	tok := New(lines, r)

	cmd, err := tok.Next()
	require.NoError(t, err)
	require.Len(t, cmd.Parts, 3)
	assert.Equal(t, "a", cmd.Parts[0].Cooked)
	assert.Equal(t, "a b c", cmd.Parts[1].Cooked)
	assert.Equal(t, "a,b,c", cmd.Parts[2].Cooked)
}

func TestTokenizer_HiddenArgMasksRaw(t *testing.T) {
	r := newFakeResolver()
	lines := &sliceLines{lines: []string{`LOGIN -pass=$<secretvalue>`}}
	tok := New(lines, r)

	cmd, err := tok.Next()
	require.NoError(t, err)
	require.Len(t, cmd.Parts, 1)
	assert.True(t, cmd.Parts[0].Hidden)
	assert.Equal(t, "secretvalue", cmd.Parts[0].Cooked)
	assert.NotContains(t, cmd.Parts[0].Raw, "secretvalue")
}

func TestTokenizer_TripleHeredoc(t *testing.T) {
	lines := &sliceLines{lines: []string{
		`SCRipt:LOAD <<<`,
		`line one`,
		`line two`,
		`>>>`,
	}}
	tok := New(lines, newFakeResolver())

	cmd, err := tok.Next()
	require.NoError(t, err)
	require.Len(t, cmd.Parts, 1)
	assert.Equal(t, "\nline one\nline two\n", cmd.Parts[0].Cooked)
}

func TestTokenizer_TaggedHeredoc(t *testing.T) {
	lines := &sliceLines{lines: []string{
		`SCRipt:LOAD <body>`,
		`inner content`,
		`</body>`,
	}}
	tok := New(lines, newFakeResolver())

	cmd, err := tok.Next()
	require.NoError(t, err)
	require.Len(t, cmd.Parts, 1)
	assert.Equal(t, "\ninner content\n", cmd.Parts[0].Cooked)
}

func TestTokenizer_TaggedHeredocNested(t *testing.T) {
	lines := &sliceLines{lines: []string{
		`SCRipt:LOAD <body>`,
		`outer`,
		`<body>`,
		`inner`,
		`</body>`,
		`</body>`,
	}}
	tok := New(lines, newFakeResolver())

	cmd, err := tok.Next()
	require.NoError(t, err)
	require.Len(t, cmd.Parts, 1)
	assert.Contains(t, cmd.Parts[0].Cooked, "inner")
}

func TestTokenizer_BackslashContinuation(t *testing.T) {
	lines := &sliceLines{lines: []string{
		`ECHO one\`,
		`two`,
	}}
	tok := New(lines, newFakeResolver())

	cmd, err := tok.Next()
	require.NoError(t, err)
	require.Len(t, cmd.Parts, 1)
	assert.Equal(t, "onetwo", cmd.Parts[0].Cooked)
}

func TestTokenizer_MultipleCommandsSequential(t *testing.T) {
	lines := &sliceLines{lines: []string{`VERSion?`, `*RST`}}
	tok := New(lines, newFakeResolver())

	c1, err := tok.Next()
	require.NoError(t, err)
	assert.Equal(t, "VERSion?", c1.Name)

	c2, err := tok.Next()
	require.NoError(t, err)
	assert.Equal(t, "*RST", c2.Name)
}

func TestTokenizer_EOF(t *testing.T) {
	lines := &sliceLines{lines: []string{}}
	tok := New(lines, newFakeResolver())

	_, err := tok.Next()
	assert.Error(t, err)
}

// TestEscapeUnescapeClosure checks the invariant spec.md §8 calls out:
// unescape(escape(s)) == s for arbitrary strings, including control
// bytes and non-ASCII text.
func TestEscapeUnescapeClosure(t *testing.T) {
	cases := []string{
		"",
		"plain text",
		"line1\nline2\ttabbed",
		`quote " and backslash \ and dollar $`,
		"emoji \U0001F600 and accents café",
		"\x01\x02\x1f control bytes",
	}
	for _, s := range cases {
		got, err := wire.Unescape(wire.Escape(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
}
