package session

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scpid/scpid/internal/access"
	"github.com/scpid/scpid/internal/param"
	"github.com/scpid/scpid/internal/tree"
)

func TestServe_DispatchesSequentialCommandsAndWritesOK(t *testing.T) {
	reg, root := newTestRegistry()
	s, buf := newTestSession(reg, root)

	leaf := tree.NewLeaf(root, "VERSion", access.Guest)
	leaf.Outputs = []param.Parameter{
		{Name: "Version", Type: param.TypeString},
		{Name: "Build", Type: param.TypeString},
	}
	leaf.Run = func(in map[string]any) (map[string]any, error) {
		return map[string]any{"Version": "1.0.0", "Build": "42"}, nil
	}
	require.NoError(t, root.AddInstance(leaf, false))

	in := strings.NewReader("1 VERSion\r\n2 VERSion\r\n")
	require.NoError(t, Serve(s, in))

	lines := strings.Split(strings.TrimRight(buf.String(), "\r\n"), "\r\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "OK 1 -Version=1.0.0 -Build=42", lines[0])
	assert.Equal(t, "OK 2 -Version=1.0.0 -Build=42", lines[1])
}

func TestServe_WritesErrOnUnknownCommand(t *testing.T) {
	reg, root := newTestRegistry()
	s, buf := newTestSession(reg, root)

	in := strings.NewReader("9 NoSuchCommand\r\n")
	require.NoError(t, Serve(s, in))

	assert.Contains(t, buf.String(), "ERRor 9")
}

func TestServe_AsynchronousLeafWritesNext(t *testing.T) {
	reg, root := newTestRegistry()
	s, buf := newTestSession(reg, root)

	leaf := tree.NewLeaf(root, "SWEep", access.Guest)
	leaf.Asynchronous = true
	release := make(chan struct{})
	leaf.Run = func(in map[string]any) (map[string]any, error) {
		<-release // keep the background invocation pending until after the assertion
		return map[string]any{}, nil
	}
	require.NoError(t, root.AddInstance(leaf, false))

	in := strings.NewReader("5 SWEep\r\n")
	require.NoError(t, Serve(s, in))

	assert.Contains(t, buf.String(), "NEXT 5")
	close(release)
}
