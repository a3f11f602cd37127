package toy

import (
	"errors"
	"testing"

	"github.com/samcharles93/loom/internal/batch"
	"github.com/samcharles93/loom/internal/engine"
	"github.com/samcharles93/loom/internal/token"
)

func TestTokenizeRoundTrip(t *testing.T) {
	e := New(1)
	text := "hi é"

	toks, err := e.Tokenize(text, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(toks) != len([]byte(text)) {
		t.Fatalf("token count = %d, want %d", len(toks), len([]byte(text)))
	}

	var dec token.StreamDecoder
	buf := make([]byte, 16)
	var got string
	for _, tok := range toks {
		n, err := e.TokenBytes(tok, buf, true)
		if err != nil {
			t.Fatal(err)
		}
		got += dec.Decode(buf[:n])
	}
	got += dec.Flush()
	if got != text {
		t.Fatalf("round trip = %q, want %q", got, text)
	}
}

func TestTokenizeAddBOS(t *testing.T) {
	e := New(1)
	toks, err := e.Tokenize("a", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(toks) != 2 || toks[0] != e.BOSToken() {
		t.Fatalf("got %v, want BOS prefix", toks)
	}
}

func TestTokenBytesSizeHint(t *testing.T) {
	e := New(1)
	small := make([]byte, 8)

	_, err := e.TokenBytes(e.EOTToken(), small, true)
	var sz *token.SizeError
	if !errors.As(err, &sz) {
		t.Fatalf("err = %v, want *token.SizeError", err)
	}
	if sz.Required != len(eotPiece) {
		t.Fatalf("Required = %d, want %d", sz.Required, len(eotPiece))
	}

	exact := make([]byte, sz.Required)
	n, err := e.TokenBytes(e.EOTToken(), exact, true)
	if err != nil {
		t.Fatal(err)
	}
	if string(exact[:n]) != eotPiece {
		t.Fatalf("got %q", exact[:n])
	}
}

func TestTokenBytesControlNotSpecial(t *testing.T) {
	e := New(1)
	buf := make([]byte, 16)
	n, err := e.TokenBytes(e.EOSToken(), buf, false)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("control piece rendered %q without special", buf[:n])
	}
}

func TestDecodeAndLogits(t *testing.T) {
	e := New(7)
	b := batch.New(4)
	for i, tok := range []token.Token{'h', 'i', '!'} {
		if err := b.Add(tok, i, []int{0}, i == 2); err != nil {
			t.Fatal(err)
		}
	}
	if err := e.Decode(b); err != nil {
		t.Fatal(err)
	}
	if e.Logits(0) != nil {
		t.Fatal("entry 0 did not request logits")
	}
	got := e.Logits(2)
	if len(got) != e.VocabSize() {
		t.Fatalf("logit length = %d, want %d", len(got), e.VocabSize())
	}

	// Deterministic across engines built from the same seed.
	e2 := New(7)
	if err := e2.Decode(b); err != nil {
		t.Fatal(err)
	}
	other := e2.Logits(2)
	for i := range got {
		if got[i] != other[i] {
			t.Fatalf("logit %d differs: %f vs %f", i, got[i], other[i])
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	e := NewSized(8, 4, 1)

	empty := batch.New(2)
	if err := e.Decode(empty); !errors.Is(err, engine.ErrDecode) {
		t.Fatalf("empty batch err = %v", err)
	}

	past := batch.New(2)
	if err := past.Add('a', 4, []int{0}, true); err != nil {
		t.Fatal(err)
	}
	if err := e.Decode(past); !errors.Is(err, engine.ErrDecode) {
		t.Fatalf("past-context err = %v", err)
	}
}

func TestIsEOG(t *testing.T) {
	e := New(1)
	if !e.IsEOG(e.EOSToken()) || !e.IsEOG(e.EOTToken()) {
		t.Fatal("control stop pieces must classify as EOG")
	}
	if e.IsEOG('a') {
		t.Fatal("byte token classified as EOG")
	}
}
