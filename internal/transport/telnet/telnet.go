// Package telnet implements the telnet listener of spec.md §6: IAC
// option negotiation (ECHO, SGA, NAWS, TTYPE) plus a per-session line
// editor with history and a kill-ring, feeding the same unmodified
// core protocol internal/session.Serve drives for internal/transport/tcp.
//
// No pack repo implements server-side telnet IAC negotiation or a
// from-scratch line editor driving a remote socket — the pack's only
// line-editing libraries (e.g. chzyer/readline, reachable through the
// wider manifest pool) assume a local terminal/pty, not bytes arriving
// over a plain net.Conn, so this stays on raw byte handling rather than
// force-fitting a local-terminal library onto a wire protocol.
package telnet

import (
	"bufio"
	"errors"
	"log/slog"
	"net"

	"github.com/scpid/scpid/internal/access"
	"github.com/scpid/scpid/internal/reply"
	"github.com/scpid/scpid/internal/scrub"
	"github.com/scpid/scpid/internal/session"
)

// DefaultAddr is the bind address used when --telnet is not given.
const DefaultAddr = ":2323"

// Telnet protocol bytes (RFC 854 / RFC 855).
const (
	iac  = 255
	will = 251
	wont = 252
	do   = 253
	dont = 254
	sb   = 250
	se   = 240

	optEcho  = 1
	optSGA   = 3
	optTTYPE = 24
	optNAWS  = 31
)

// HistorySize is the number of accepted command lines a session keeps
// for the telnet line editor's up/down history (spec.md §4.5's
// transport-facing ring, default 50).
const HistorySize = 50

// Listener accepts telnet connections and serves one session per
// connection against reg, after negotiating line-editing options.
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

// Listen binds addr and returns a Listener ready to Serve.
func Listen(addr string, reg *session.Registry, accessLimit, authLimit access.Level, logger *slog.Logger) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Listener{Registry: reg, AccessLimit: accessLimit, AuthLimit: authLimit, Logger: logger, ln: ln}, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Serve accepts connections until the listener is closed.
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

	neg := newNegotiator(conn)
	if err := neg.start(); err != nil {
		l.Logger.Warn("telnet negotiation failed", slog.Any("error", err))
		return
	}

	editor := newLineEditor(neg)
	w := reply.New(conn)
	s := session.New(l.Registry, session.KindClient, l.Registry.Root, w, l.AccessLimit, l.AuthLimit, l.Logger)
	s.SetScrub(l.Scrub)
	defer s.Close()

	if err := w.Ready(nil); err != nil {
		l.Logger.Warn("telnet handshake failed", slog.Any("error", err))
		return
	}

	if err := session.Serve(s, editor); err != nil {
		s.Logger.Warn("telnet session ended", slog.String("remote", conn.RemoteAddr().String()), slog.Any("error", err))
	}
}

// negotiator owns the raw connection, stripping/answering IAC
// sequences as it reads and exposing a plain byte stream to the line
// editor above it.
type negotiator struct {
	conn net.Conn
	br   *bufio.Reader

	width, height int
	terminalType  string
}

func newNegotiator(conn net.Conn) *negotiator {
	return &negotiator{conn: conn, br: bufio.NewReader(conn)}
}

// start sends the server's initial option offers: WILL ECHO, WILL SGA
// (server edits the line and suppresses local echo of it), DO NAWS, DO
// TTYPE.
func (n *negotiator) start() error {
	_, err := n.conn.Write([]byte{iac, will, optEcho, iac, will, optSGA, iac, do, optNAWS, iac, do, optTTYPE})
	return err
}

// readByte returns the next application byte, transparently consuming
// and answering any IAC sequence encountered along the way.
func (n *negotiator) readByte() (byte, error) {
	for {
		b, err := n.br.ReadByte()
		if err != nil {
			return 0, err
		}
		if b != iac {
			return b, nil
		}
		if err := n.handleIAC(); err != nil {
			return 0, err
		}
	}
}

func (n *negotiator) handleIAC() error {
	cmd, err := n.br.ReadByte()
	if err != nil {
		return err
	}
	switch cmd {
	case iac:
		return nil // escaped 0xFF literal, nothing further to negotiate
	case will, wont, do, dont:
		opt, err := n.br.ReadByte()
		if err != nil {
			return err
		}
		return n.reply(cmd, opt)
	case sb:
		return n.readSubnegotiation()
	default:
		return nil // NOP/DM/BRK/IP/AO/AYT/EC/EL/GA carry no option byte
	}
}

// reply answers a WILL/WONT/DO/DONT the way the options this server
// actually offers (ECHO, SGA, NAWS, TTYPE) expect; anything else is
// refused.
func (n *negotiator) reply(cmd, opt byte) error {
	switch opt {
	case optEcho, optSGA:
		if cmd == do || cmd == will {
			return nil // already offered/accepted at start()
		}
	case optNAWS, optTTYPE:
		if cmd == will {
			return nil // client will send the subnegotiation itself
		}
	}
	if cmd == do || cmd == will {
		_, err := n.conn.Write([]byte{iac, wont, opt})
		return err
	}
	return nil
}

func (n *negotiator) readSubnegotiation() error {
	var opt byte
	var data []byte
	first := true
	for {
		b, err := n.br.ReadByte()
		if err != nil {
			return err
		}
		if first {
			opt = b
			first = false
			continue
		}
		if b == iac {
			peek, err := n.br.ReadByte()
			if err != nil {
				return err
			}
			if peek == se {
				break
			}
			data = append(data, b, peek)
			continue
		}
		data = append(data, b)
	}
	switch opt {
	case optNAWS:
		if len(data) >= 4 {
			n.width = int(data[0])<<8 | int(data[1])
			n.height = int(data[2])<<8 | int(data[3])
		}
	case optTTYPE:
		if len(data) > 1 {
			n.terminalType = string(data[1:])
		}
	}
	return nil
}
