package tcp

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

func TestListener_ServesOneSessionPerConnection(t *testing.T) {
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
	ready, err := br.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "READy\r\n", ready)

	_, err = conn.Write([]byte("1 VERSion\r\n"))
	require.NoError(t, err)

	line, err := br.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "OK 1 -version=1.0\r\n", line)
}
