package session

import (
	"bufio"
	"errors"
	"io"
	"strings"

	"github.com/scpid/scpid/internal/parser"
	"github.com/scpid/scpid/internal/signal"
)

// streamLineReader adapts a line-oriented connection into a
// parser.LineReader that outlives a single command: transports hand
// Serve one of these per connection, and the same reader feeds every
// command the session receives, including any heredoc continuation
// lines a command pulls mid-scan.
type streamLineReader struct {
	br *bufio.Reader
}

func (r *streamLineReader) ReadLine() (string, bool, error) {
	line, err := r.br.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			if line == "" {
				return "", false, nil
			}
			return strings.TrimRight(line, "\r\n"), true, nil
		}
		return "", false, err
	}
	return strings.TrimRight(line, "\r\n"), true, nil
}

// Serve runs the command loop of spec.md §4.1/§4.5 for one Client-kind
// session: tokenize a logical command, dispatch it, interpret any
// control-flow signal per the session's policy, and write the
// resulting reply line. It returns when the connection reaches EOF or
// a read error occurs; the caller is responsible for closing sess.
func Serve(sess *Session, r io.Reader) error {
	lr := &streamLineReader{br: bufio.NewReader(r)}
	ctx := NewContext(sess)
	tok := parser.New(lr, ctx)

	for {
		cmd, err := tok.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			_ = sess.Reply.Err(nil, "", raiseParseError("", err))
			continue
		}

		ctx.Command = cmd
		ctx.RawText = cmd.Text
		ctx.Index = cmd.Index

		result, err := Dispatch(ctx, cmd)
		if err != nil {
			_ = sess.Reply.Err(cmd.Index, cmd.Text, err)
			continue
		}

		if result.Signal != nil {
			result, err = ApplySignal(ctx, result.Signal, sess.Logger, func(f func()) { go f() })
			if err != nil {
				_ = sess.Reply.Err(cmd.Index, cmd.Text, err)
				continue
			}
			if result == nil {
				continue // signal absorbed (e.g. a stray RETurn/BREak at top level)
			}
			if result.Signal != nil && result.Signal.Kind == signal.NextReply {
				_ = sess.Reply.Next(cmd.Index, cmd.Text)
				continue
			}
		}

		ctx.Outputs = result.Collapsed
		_ = sess.Reply.OK(cmd.Index, cmd.Text, result.Values)
	}
}
