// Package serial implements the serial-line transport of spec.md §6:
// "device path + line-mode options supplied by the transport layer".
// Opening the actual device (baud rate, parity, flow control) is an
// external collaborator's job per spec.md §1's scope note; this
// package only adapts an already-opened io.ReadWriteCloser into a
// Client-kind session the same way internal/transport/tcp adapts a
// net.Conn.
package serial

import (
	"io"
	"log/slog"

	"github.com/scpid/scpid/internal/access"
	"github.com/scpid/scpid/internal/reply"
	"github.com/scpid/scpid/internal/scrub"
	"github.com/scpid/scpid/internal/session"
)

// LineMode carries the transport-facing line-discipline option spec.md
// §6 mentions alongside the device path: whether the far end already
// does its own character echo. Bare-LF vs. CRLF framing needs no flag
// here since internal/session's stream reader trims either.
type LineMode struct {
	RemoteEcho bool
}

// Port adapts one already-open serial device into a single Client-kind
// session. Unlike tcp/telnet there is no accept loop: a serial line
// has exactly one peer for its lifetime.
type Port struct {
	Registry    *session.Registry
	AccessLimit access.Level
	AuthLimit   access.Level
	Logger      *slog.Logger
	Mode        LineMode

	// Scrub, if set, is attached to the session so secret-typed
	// argument values are redacted from the log sink (spec.md §4.1).
	Scrub *scrub.Writer
}

// Serve runs one session against dev until it closes or errors. dev is
// expected to already be configured (baud/parity/flow control) by the
// caller; this function only reads/writes lines through it.
func (p *Port) Serve(dev io.ReadWriteCloser) error {
	defer dev.Close()

	w := reply.New(dev)
	s := session.New(p.Registry, session.KindClient, p.Registry.Root, w, p.AccessLimit, p.AuthLimit, p.Logger)
	s.SetScrub(p.Scrub)
	defer s.Close()

	if err := w.Ready(nil); err != nil {
		return err
	}

	var r io.Reader = dev
	if !p.Mode.RemoteEcho {
		r = &echoingReader{r: dev, w: dev}
	}

	return session.Serve(s, r)
}

// echoingReader writes back every byte it reads, for a dumb serial
// peer that does not echo its own keystrokes.
type echoingReader struct {
	r io.Reader
	w io.Writer
}

func (e *echoingReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if n > 0 {
		_, _ = e.w.Write(p[:n])
	}
	return n, err
}
