package main

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/scpid/scpid/internal/access"
	"github.com/scpid/scpid/internal/obs"
	"github.com/scpid/scpid/internal/parser"
	"github.com/scpid/scpid/internal/reply"
	"github.com/scpid/scpid/internal/scpierr"
	"github.com/scpid/scpid/internal/session"
	"github.com/scpid/scpid/internal/signal"
	"github.com/scpid/scpid/internal/snapshot"
)

// fileLineReader adapts an *os.File into a parser.LineReader, the same
// shape internal/session.Serve builds over a live connection.
type fileLineReader struct {
	br *bufio.Reader
}

func (r *fileLineReader) ReadLine() (string, bool, error) {
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

// runModuleCBOR dispatches path's commands the same way
// internal/session.Serve does, but instead of writing wire-format
// lines it encodes each result as a deterministic snapshot.Reply and
// appends its canonical CBOR bytes to out (--output-format cbor).
func runModuleCBOR(reg *session.Registry, logger *slog.Logger, path string, out io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	s := session.New(reg, session.KindModule, reg.Root, reply.New(io.Discard), access.Full, access.Full, obs.Session(logger, "module"))
	defer s.Close()

	lr := &fileLineReader{br: bufio.NewReader(f)}
	ctx := session.NewContext(s)
	tok := parser.New(lr, ctx)

	for {
		cmd, err := tok.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return writeSnapshot(out, snapshot.FromErr("", "App.Parse.ParseError", map[string]string{"reason": err.Error()}))
		}

		ctx.Command = cmd
		ctx.RawText = cmd.Text
		ctx.Index = cmd.Index

		result, err := session.Dispatch(ctx, cmd)
		if err != nil {
			if err := writeSnapshot(out, snapshotErr(cmd.Text, err)); err != nil {
				return err
			}
			continue
		}

		if result.Signal != nil {
			result, err = session.ApplySignal(ctx, result.Signal, logger, func(f func()) { go f() })
			if err != nil {
				if err := writeSnapshot(out, snapshotErr(cmd.Text, err)); err != nil {
					return err
				}
				continue
			}
			if result == nil || (result.Signal != nil && result.Signal.Kind == signal.NextReply) {
				continue
			}
		}

		ctx.Outputs = result.Collapsed
		if err := writeSnapshot(out, snapshot.FromOK(cmd.Text, result.Values)); err != nil {
			return err
		}
	}
}

func snapshotErr(index string, err error) *snapshot.Reply {
	se, ok := err.(*scpierr.Error)
	if !ok {
		se = scpierr.NewInternal(err, "batch")
	}
	attrs := make(map[string]string, len(se.Attrs))
	for _, a := range se.Attrs {
		attrs[a.Name] = a.Value
	}
	return snapshot.FromErr(index, se.QualifiedID(), attrs)
}

func writeSnapshot(out io.Writer, r *snapshot.Reply) error {
	b, err := r.MarshalBinary()
	if err != nil {
		return err
	}
	_, err = out.Write(b)
	return err
}
