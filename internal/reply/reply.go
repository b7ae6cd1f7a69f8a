// Package reply implements the wire response grammar of spec.md §4.7:
// OK/NEXT/ERRor/MESSage/READy lines, value protection (quoting or
// heredoc wrapping) via internal/wire, and the streamed
// <quote.output>...</quote.output> segment a ReturnCall emits.
package reply

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/scpid/scpid/internal/scpierr"
	"github.com/scpid/scpid/internal/wire"
)

// Writer serializes reply lines to a session's write stream. A single
// Writer instance also backs the CLI's --output recording mode (every
// line written to the transport is tee'd into the recorder when one is
// attached).
type Writer struct {
	mu  sync.Mutex
	out io.Writer
	tee io.Writer // optional --output recorder, nil if unset
}

// New wraps out. Use SetRecorder to attach a --output sink later.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// SetRecorder attaches w as a secondary sink every line is also
// written to, or clears it when w is nil.
func (r *Writer) SetRecorder(w io.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tee = w
}

func (r *Writer) writeLine(line string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := []byte(line + "\r\n")
	if _, err := r.out.Write(b); err != nil {
		return err
	}
	if r.tee != nil {
		_, _ = r.tee.Write(b)
	}
	return nil
}

// Value is one OK-line positional or named output.
type Value struct {
	Name string // empty for a positional value
	Text string
}

// indexToken renders the reply's leading index: the numeric index if
// the client supplied one, otherwise the raw command text (spec.md
// §4.7's "<idx> echoes the client-supplied numeric index ... or the
// raw command text otherwise").
func indexToken(idx *int, rawText string) string {
	if idx != nil {
		return fmt.Sprintf("%d", *idx)
	}
	return rawText
}

// OK writes a successful reply line.
func (r *Writer) OK(idx *int, rawText string, values []Value) error {
	var b strings.Builder
	b.WriteString("OK ")
	b.WriteString(indexToken(idx, rawText))
	for _, v := range values {
		b.WriteByte(' ')
		b.WriteString(protect(v))
	}
	return r.writeLine(b.String())
}

// Next writes a NEXT reply, signalling that the command's real
// OK/ERRor reply will arrive later from an asynchronous worker.
func (r *Writer) Next(idx *int, rawText string) error {
	return r.writeLine("NEXT " + indexToken(idx, rawText))
}

// Err writes an ERRor reply for err, which is expected to be (or
// wrap) a *scpierr.Error; a plain error is wrapped as an internal
// error so every ERR line still carries a qualified id.
func (r *Writer) Err(idx *int, rawText string, err error) error {
	se, ok := err.(*scpierr.Error)
	if !ok {
		se = scpierr.NewInternal(err, "dispatch")
	}

	var b strings.Builder
	b.WriteString("ERRor ")
	b.WriteString(indexToken(idx, rawText))
	b.WriteByte(' ')
	b.WriteString(se.QualifiedID())
	for _, a := range se.Attrs {
		b.WriteString(fmt.Sprintf(" -%s=%s", a.Name, protectString(a.Value)))
	}
	b.WriteString(" --> ")
	b.WriteString(se.Message())
	return r.writeLine(b.String())
}

// Message writes an asynchronous publication line.
func (r *Writer) Message(topic string, timestamp int64, level int, parts []Value) error {
	var b strings.Builder
	b.WriteString("MESSage ")
	b.WriteString(topic)
	b.WriteString(fmt.Sprintf(" %d %d", timestamp, level))
	for _, p := range parts {
		b.WriteByte(' ')
		b.WriteString(protect(p))
	}
	return r.writeLine(b.String())
}

// Ready writes the initial handshake line.
func (r *Writer) Ready(kv map[string]string) error {
	var b strings.Builder
	b.WriteString("READy")
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(fmt.Sprintf(" -%s=%s", k, protectString(kv[k])))
	}
	return r.writeLine(b.String())
}

// QuoteOutput writes the streamed segment a ReturnCall emits
// immediately after its OK line (spec.md §4.7).
func (r *Writer) QuoteOutput(text string) error {
	return r.writeLine("<quote.output>" + text + "</quote.output>")
}

// protect renders one OK/MESSage value, quoting or heredoc-wrapping it
// per spec.md §4.7, with its -name= prefix when named.
func protect(v Value) string {
	body := protectString(v.Text)
	if v.Name == "" {
		return body
	}
	return fmt.Sprintf("-%s=%s", v.Name, body)
}

// protectString applies the quote/heredoc decision to a bare string
// value (used for both OK/MESSage values and ERRor attrs).
func protectString(s string) string {
	if !wire.NeedsQuoting(s) {
		return s
	}
	if wire.NeedsHeredoc(s) {
		return heredocWrap(s)
	}
	return `"` + wire.Escape(s) + `"`
}

// heredocWrap picks a tag guaranteed not to collide with s's content
// and wraps s in a tagged heredoc.
func heredocWrap(s string) string {
	var tag string
	for {
		tag = randomTag()
		if !strings.Contains(s, "<"+tag+">") && !strings.Contains(s, "</"+tag+">") {
			break
		}
	}
	return fmt.Sprintf("<%s>%s</%s>", tag, s, tag)
}

func randomTag() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return "t" + hex.EncodeToString(b)
}
