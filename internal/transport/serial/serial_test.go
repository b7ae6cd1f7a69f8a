package serial

import (
	"bufio"
	"io"
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

// pipeDevice adapts a net.Conn half of a net.Pipe into an
// io.ReadWriteCloser, standing in for an already-opened serial device.
type pipeDevice struct {
	net.Conn
}

func TestPort_ServeDispatchesOneSession(t *testing.T) {
	root := tree.NewRoot()
	leaf := tree.NewLeaf(root, "VERSion", access.Guest)
	leaf.Outputs = []param.Parameter{{Name: "version", Type: param.TypeString}}
	leaf.Run = func(in map[string]any) (map[string]any, error) {
		return map[string]any{"version": "1.0"}, nil
	}
	require.NoError(t, root.AddInstance(leaf, false))

	reg := session.NewRegistry(root, pubsub.New())
	p := &Port{Registry: reg, AccessLimit: access.Full, AuthLimit: access.Full, Logger: slog.Default(), Mode: LineMode{RemoteEcho: true}}

	host, dev := net.Pipe()
	done := make(chan error, 1)
	go func() { done <- p.Serve(&pipeDevice{dev}) }()

	br := bufio.NewReader(host)
	ready, err := br.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "READy\r\n", ready)

	_, err = host.Write([]byte("1 VERSion\r\n"))
	require.NoError(t, err)

	line, err := br.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "OK 1 -version=1.0\r\n", line)

	host.Close()
	<-done
}

var _ io.ReadWriteCloser = (*pipeDevice)(nil)
