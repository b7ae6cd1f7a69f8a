package session

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scpid/scpid/internal/access"
	"github.com/scpid/scpid/internal/param"
	"github.com/scpid/scpid/internal/parser"
	"github.com/scpid/scpid/internal/reply"
	"github.com/scpid/scpid/internal/scrub"
	"github.com/scpid/scpid/internal/secret"
	"github.com/scpid/scpid/internal/tree"
)

func TestSecretInput_BoundAsHandleNotRawString(t *testing.T) {
	reg, root := newTestRegistry()
	var captured *secret.Handle

	leaf := tree.NewLeaf(root, "PASSword", access.Guest)
	leaf.Inputs = []param.Parameter{{Name: "value", Type: param.TypeString, Secret: true}}
	leaf.Run = func(in map[string]any) (map[string]any, error) {
		h, ok := in["value"].(*secret.Handle)
		require.True(t, ok)
		captured = h
		return map[string]any{}, nil
	}
	require.NoError(t, root.AddInstance(leaf, false))

	s, _ := newTestSession(reg, root)
	ctx := NewContext(s)

	_, err := Dispatch(ctx, &parser.Command{Name: "PASSword", Parts: []parser.Part{{Cooked: "hunter2"}}})
	require.NoError(t, err)
	require.NotNil(t, captured)
	assert.Equal(t, "hunter2", captured.Reveal())
	assert.NotContains(t, captured.String(), "hunter2")
}

func TestSecretOutput_FormattedAsDisplayIDNotRawValue(t *testing.T) {
	reg, root := newTestRegistry()

	leaf := tree.NewLeaf(root, "PASSword", access.Guest)
	leaf.Inputs = []param.Parameter{{Name: "value", Type: param.TypeString, Secret: true}}
	leaf.Outputs = []param.Parameter{{Name: "echo", Type: param.TypeString}}
	leaf.Run = func(in map[string]any) (map[string]any, error) {
		h := in["value"].(*secret.Handle)
		return map[string]any{"echo": h}, nil
	}
	require.NoError(t, root.AddInstance(leaf, false))

	s, _ := newTestSession(reg, root)
	ctx := NewContext(s)

	res, err := Dispatch(ctx, &parser.Command{Name: "PASSword", Parts: []parser.Part{{Cooked: "hunter2"}}})
	require.NoError(t, err)
	require.Len(t, res.Values, 1)
	assert.NotContains(t, res.Values[0].Text, "hunter2")
	assert.True(t, strings.HasPrefix(res.Values[0].Text, "sec:"))
}

func TestSecretInput_RegisteredWithSessionScrubWriter(t *testing.T) {
	reg, root := newTestRegistry()

	leaf := tree.NewLeaf(root, "PASSword", access.Guest)
	leaf.Inputs = []param.Parameter{{Name: "value", Type: param.TypeString, Secret: true}}
	leaf.Run = func(in map[string]any) (map[string]any, error) { return map[string]any{}, nil }
	require.NoError(t, root.AddInstance(leaf, false))

	var buf bytes.Buffer
	sink := scrub.New(&buf)
	s := New(reg, KindClient, root, reply.New(&bytes.Buffer{}), access.Full, access.Full, slog.Default())
	s.SetScrub(sink)
	ctx := NewContext(s)

	_, err := Dispatch(ctx, &parser.Command{Name: "PASSword", Parts: []parser.Part{{Cooked: "hunter2"}}})
	require.NoError(t, err)

	_, werr := sink.Write([]byte("leaked hunter2 into the log\n"))
	require.NoError(t, werr)
	require.NoError(t, sink.Flush())
	assert.NotContains(t, buf.String(), "hunter2")
	assert.Contains(t, buf.String(), "[secret:")
}
