package token

import (
	"strings"
	"unicode/utf8"
)

// StreamDecoder incrementally decodes a byte stream into UTF-8 text.
// Token boundaries do not align with character boundaries, so a trailing
// incomplete rune is held back and consumed by the next Decode call.
// The pending buffer persists for the whole generation session; callers
// must Flush once at session end so held-back bytes are never dropped.
type StreamDecoder struct {
	pending []byte
}

// Decode appends p to the pending bytes and returns the fully decodable
// prefix, possibly empty. Invalid sequences in the complete portion are
// replaced with U+FFFD; an incomplete trailing rune is retained.
func (d *StreamDecoder) Decode(p []byte) string {
	d.pending = append(d.pending, p...)

	cut := len(d.pending)
	// Walk back over at most one rune's worth of bytes looking for a
	// start byte that opens an incomplete sequence.
	for back := 1; back <= utf8.UTFMax && back <= len(d.pending); back++ {
		b := d.pending[len(d.pending)-back]
		if !utf8.RuneStart(b) {
			continue
		}
		if runeLen(b) > back {
			cut = len(d.pending) - back
		}
		break
	}

	if cut == 0 {
		return ""
	}
	out := strings.ToValidUTF8(string(d.pending[:cut]), string(utf8.RuneError))
	d.pending = append(d.pending[:0], d.pending[cut:]...)
	return out
}

// Flush resolves any held-back bytes, substituting the replacement
// character for sequences that never completed, and resets the decoder.
func (d *StreamDecoder) Flush() string {
	if len(d.pending) == 0 {
		return ""
	}
	out := strings.ToValidUTF8(string(d.pending), string(utf8.RuneError))
	d.pending = d.pending[:0]
	return out
}

// Pending reports how many bytes are held back awaiting completion.
func (d *StreamDecoder) Pending() int {
	return len(d.pending)
}

// runeLen returns the encoded length implied by a UTF-8 start byte,
// or 0 for a byte that cannot start a sequence.
func runeLen(b byte) int {
	switch {
	case b < 0x80:
		return 1
	case b&0xE0 == 0xC0:
		return 2
	case b&0xF0 == 0xE0:
		return 3
	case b&0xF8 == 0xF0:
		return 4
	default:
		return 0
	}
}
