// Package tcp implements the plain-TCP listener of spec.md §6: no
// framing beyond CRLF, default port 7000. Every accepted connection
// gets its own Client-kind session and runs internal/session.Serve
// directly against the raw socket — grounded on the teacher's
// SSHTestServer accept loop (core/decorator/ssh_test_server.go), the
// only net.Listener pattern anywhere in the retrieved pack.
package tcp

import (
	"errors"
	"log/slog"
	"net"

	"github.com/scpid/scpid/internal/access"
	"github.com/scpid/scpid/internal/reply"
	"github.com/scpid/scpid/internal/scrub"
	"github.com/scpid/scpid/internal/session"
)

// DefaultAddr is the bind address used when --bind is not given.
const DefaultAddr = ":7000"

// Listener accepts plain-TCP connections and serves one session per
// connection against reg.
type Listener struct {
	Registry    *session.Registry
	AccessLimit access.Level
	AuthLimit   access.Level
	Logger      *slog.Logger

	// Scrub, if set, is attached to every session so secret-typed
	// argument values are redacted from the log sink (spec.md §4.1).
	Scrub *scrub.Writer

	ln net.Listener
}

// Listen binds addr (":7000"-style) and returns a Listener ready to
// Serve. Binding is separated from Serve so the caller can report a
// startup failure (exit code 2, spec.md §6) before forking or daemonizing.
func Listen(addr string, reg *session.Registry, accessLimit, authLimit access.Level, logger *slog.Logger) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Listener{Registry: reg, AccessLimit: accessLimit, AuthLimit: authLimit, Logger: logger, ln: ln}, nil
}

// Addr returns the bound address, useful when addr was ":0" in tests.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Serve accepts connections until the listener is closed, handling
// each in its own goroutine. It returns the Accept error that stopped
// the loop (nil on a clean Close).
func (l *Listener) Serve() error {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go l.handle(conn)
	}
}

// Close stops accepting new connections.
func (l *Listener) Close() error {
	return l.ln.Close()
}

func (l *Listener) handle(conn net.Conn) {
	defer conn.Close()

	w := reply.New(conn)
	logger := l.Logger
	s := session.New(l.Registry, session.KindClient, l.Registry.Root, w, l.AccessLimit, l.AuthLimit, logger)
	s.SetScrub(l.Scrub)
	defer s.Close()

	if err := w.Ready(nil); err != nil {
		s.Logger.Warn("tcp handshake failed", slog.String("remote", conn.RemoteAddr().String()), slog.Any("error", err))
		return
	}

	if err := session.Serve(s, conn); err != nil {
		s.Logger.Warn("tcp session ended", slog.String("remote", conn.RemoteAddr().String()), slog.Any("error", err))
	}
}
