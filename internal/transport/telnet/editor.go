package telnet

// lineEditor implements io.Reader over a negotiator, turning raw
// keystrokes into completed, CRLF-terminated command lines the way
// spec.md §4.5 describes for the telnet transport: echo (since the
// server offered WILL ECHO), a small history ring, and a kill-ring for
// Ctrl-U/Ctrl-K/Ctrl-Y.
type lineEditor struct {
	n *negotiator

	history    []string
	histCursor int

	killRing string

	pending []byte // completed line bytes not yet handed to Read
}

func newLineEditor(n *negotiator) *lineEditor {
	return &lineEditor{n: n}
}

// Read implements io.Reader: it edits one line to completion (blocking
// on the underlying connection as needed) and hands it back CRLF-
// terminated, copying across calls if p is smaller than the line.
func (e *lineEditor) Read(p []byte) (int, error) {
	if len(e.pending) == 0 {
		line, err := e.editLine()
		if err != nil {
			return 0, err
		}
		e.pending = append([]byte(line), '\r', '\n')
	}
	n := copy(p, e.pending)
	e.pending = e.pending[n:]
	return n, nil
}

// editLine collects keystrokes until Enter, applying the line-editing
// commands below, and returns the finished line (without its
// terminator) with an entry appended to history.
func (e *lineEditor) editLine() (string, error) {
	buf := []rune{}
	cursor := 0
	e.histCursor = len(e.history)

	echo := func(s string) { _, _ = e.n.conn.Write([]byte(s)) }
	redrawTail := func() {
		echo(string(buf[cursor:]))
		echo(" ")
		for range buf[cursor:] {
			echo("\b")
		}
		echo("\b")
	}

	for {
		b, err := e.n.readByte()
		if err != nil {
			return "", err
		}

		switch {
		case b == '\r' || b == '\n':
			echo("\r\n")
			line := string(buf)
			e.pushHistory(line)
			return line, nil

		case b == 0x7f || b == 0x08: // backspace/DEL
			if cursor > 0 {
				buf = append(buf[:cursor-1], buf[cursor:]...)
				cursor--
				echo("\b")
				redrawTail()
			}

		case b == 0x15: // Ctrl-U: kill whole line
			e.killRing = string(buf)
			for i := 0; i < cursor; i++ {
				echo("\b")
			}
			buf = nil
			cursor = 0
			redrawTail()

		case b == 0x0b: // Ctrl-K: kill to end of line
			e.killRing = string(buf[cursor:])
			buf = buf[:cursor]
			redrawTail()

		case b == 0x19: // Ctrl-Y: yank
			if e.killRing != "" {
				ins := []rune(e.killRing)
				buf = append(buf[:cursor], append(append([]rune{}, ins...), buf[cursor:]...)...)
				echo(e.killRing)
				cursor += len(ins)
				redrawTail()
			}

		case b == 0x1b: // ESC: arrow-key sequences for history
			b2, err := e.n.readByte()
			if err != nil {
				return "", err
			}
			if b2 != '[' {
				continue
			}
			b3, err := e.n.readByte()
			if err != nil {
				return "", err
			}
			switch b3 {
			case 'A': // up
				if e.histCursor > 0 {
					e.histCursor--
					buf, cursor = e.replaceLine(buf, cursor, e.history[e.histCursor], echo)
				}
			case 'B': // down
				if e.histCursor < len(e.history)-1 {
					e.histCursor++
					buf, cursor = e.replaceLine(buf, cursor, e.history[e.histCursor], echo)
				} else {
					e.histCursor = len(e.history)
					buf, cursor = e.replaceLine(buf, cursor, "", echo)
				}
			}

		default:
			if b >= 0x20 && b < 0x7f {
				r := rune(b)
				buf = append(buf[:cursor], append([]rune{r}, buf[cursor:]...)...)
				cursor++
				echo(string(r))
				if cursor < len(buf) {
					redrawTail()
				}
			}
		}
	}
}

// replaceLine clears the currently-displayed line (length len(buf),
// cursor at cursor) and redraws it as newText, returning the new
// buffer/cursor.
func (e *lineEditor) replaceLine(buf []rune, cursor int, newText string, echo func(string)) ([]rune, int) {
	for i := 0; i < cursor; i++ {
		echo("\b")
	}
	for range buf {
		echo(" ")
	}
	for range buf {
		echo("\b")
	}
	replaced := []rune(newText)
	echo(newText)
	return replaced, len(replaced)
}

// pushHistory records line in the ring, dropping the oldest entry once
// HistorySize is exceeded.
func (e *lineEditor) pushHistory(line string) {
	if line == "" {
		return
	}
	e.history = append(e.history, line)
	if len(e.history) > HistorySize {
		e.history = e.history[len(e.history)-HistorySize:]
	}
}
