package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

type StreamMode string

const (
	StreamInstant    StreamMode = "instant"
	StreamTypewriter StreamMode = "typewriter"
	StreamQuiet      StreamMode = "quiet"
)

// StreamWriter prints generation fragments to stdout. Quiet mode holds
// everything back until Finish; raw mode escapes control characters so
// token boundaries stay visible.
type StreamWriter struct {
	mode StreamMode
	raw  bool
	out  *bufio.Writer

	held strings.Builder
}

func NewStreamWriter(mode StreamMode, raw bool) *StreamWriter {
	return newStreamWriter(os.Stdout, mode, raw)
}

func newStreamWriter(w io.Writer, mode StreamMode, raw bool) *StreamWriter {
	switch mode {
	case StreamInstant, StreamTypewriter, StreamQuiet:
	default:
		mode = StreamInstant
	}
	return &StreamWriter{
		mode: mode,
		raw:  raw,
		out:  bufio.NewWriterSize(w, 4096),
	}
}

func (w *StreamWriter) Write(fragment string) {
	switch w.mode {
	case StreamQuiet:
		w.held.WriteString(fragment)
	case StreamTypewriter:
		for _, r := range fragment {
			w.writeString(string(r))
			_ = w.out.Flush()
		}
	default:
		w.writeString(fragment)
		_ = w.out.Flush()
	}
}

// Finish drains held output and returns everything written.
func (w *StreamWriter) Finish() string {
	if w.mode == StreamQuiet {
		w.writeString(w.held.String())
	}
	_ = w.out.Flush()
	return w.held.String()
}

func (w *StreamWriter) writeString(s string) {
	if w.mode != StreamQuiet {
		w.held.WriteString(s)
	}
	if w.raw {
		s = escapeRaw(s)
	}
	_, _ = w.out.WriteString(s)
}

func escapeRaw(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\\':
			b.WriteString(`\\`)
		default:
			if strconv.IsPrint(r) {
				b.WriteRune(r)
			} else {
				fmt.Fprintf(&b, `\u%04x`, r)
			}
		}
	}
	return b.String()
}
