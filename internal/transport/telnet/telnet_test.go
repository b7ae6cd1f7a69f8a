package telnet

import (
	"bufio"
	"log/slog"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scpid/scpid/internal/access"
	"github.com/scpid/scpid/internal/param"
	"github.com/scpid/scpid/internal/pubsub"
	"github.com/scpid/scpid/internal/session"
	"github.com/scpid/scpid/internal/tree"
)

func TestListener_NegotiatesThenDispatches(t *testing.T) {
	root := tree.NewRoot()
	leaf := tree.NewLeaf(root, "VERSion", access.Guest)
	leaf.Outputs = []param.Parameter{{Name: "version", Type: param.TypeString}}
	leaf.Run = func(in map[string]any) (map[string]any, error) {
		return map[string]any{"version": "1.0"}, nil
	}
	require.NoError(t, root.AddInstance(leaf, false))

	reg := session.NewRegistry(root, pubsub.New())
	l, err := Listen("127.0.0.1:0", reg, access.Full, access.Full, slog.Default())
	require.NoError(t, err)
	defer l.Close()

	go func() { _ = l.Serve() }()

	conn, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	br := bufio.NewReader(conn)

	// Drain the server's initial IAC offers (WILL ECHO, WILL SGA, DO
	// NAWS, DO TTYPE = 4 three-byte sequences = 12 bytes) before typing.
	offers := make([]byte, 12)
	_, err = br.Read(offers)
	require.NoError(t, err)
	assert.Equal(t, byte(iac), offers[0])

	_, err = conn.Write([]byte("1 VERSion\r\n"))
	require.NoError(t, err)

	// Echo of the typed characters comes back first; scan past it to
	// the OK reply line.
	for {
		line, err := br.ReadString('\n')
		require.NoError(t, err)
		if len(line) >= 2 && line[0:2] == "OK" {
			assert.Equal(t, "OK 1 -version=1.0\r\n", line)
			return
		}
	}
}

func TestLineEditor_BackspaceRemovesLastRune(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	n := newNegotiator(server)
	e := newLineEditor(n)

	go func() {
		_, _ = client.Write([]byte("ab\x7fc\r\n"))
	}()

	buf := make([]byte, 64)
	nread, err := e.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ac\r\n", string(buf[:nread]))
}

func TestLineEditor_HistoryRecallsPreviousLine(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	n := newNegotiator(server)
	e := newLineEditor(n)

	go func() { _, _ = client.Write([]byte("first\r\n")) }()
	buf := make([]byte, 64)
	nread, err := e.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "first\r\n", string(buf[:nread]))

	go func() { _, _ = client.Write([]byte("\x1b[A\r\n")) }()
	nread, err = e.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "first\r\n", string(buf[:nread]))
}
