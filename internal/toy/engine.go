// Package toy implements a minimal deterministic inference engine used for
// testing, benchmarking and the example driver. It is byte-level: the
// vocabulary is the 256 single-byte tokens plus a few control pieces, and
// logits come from an embedding matrix and a projection matrix filled with
// seeded random values. It is deliberately simplistic; it exists to
// exercise the session machinery, not to produce sensible text.
package toy

import (
	"fmt"

	"github.com/samcharles93/loom/internal/batch"
	"github.com/samcharles93/loom/internal/engine"
	"github.com/samcharles93/loom/internal/tensor"
	"github.com/samcharles93/loom/internal/token"
)

const (
	byteTokens = 256

	// DefaultHidden is the hidden dimension used by New.
	DefaultHidden = 32
	// DefaultSeqLen is the context window used by New.
	DefaultSeqLen = 512
)

// Pieces of the control tokens. EOT is deliberately longer than the
// codec's first-attempt scratch buffer.
const (
	bosPiece = "<s>"
	eosPiece = "</s>"
	eotPiece = "<|endoftext|>"
)

// Engine is a deterministic byte-level engine satisfying engine.Engine.
type Engine struct {
	pieces []string
	bos    token.Token
	eos    token.Token
	eot    token.Token

	emb    tensor.Mat // [vocab x hidden]
	proj   tensor.Mat // [hidden x vocab]
	hidden []float32
	seqLen int

	logits [][]float32 // per entry of the last decoded batch
}

var _ engine.Engine = (*Engine)(nil)

// New constructs an engine with the default hidden size and context window.
func New(seed int64) *Engine {
	return NewSized(DefaultHidden, DefaultSeqLen, seed)
}

// NewSized constructs an engine with explicit hidden size and context
// window. The same seed always yields identical weights.
func NewSized(hidden, seqLen int, seed int64) *Engine {
	pieces := make([]string, 0, byteTokens+3)
	for b := 0; b < byteTokens; b++ {
		pieces = append(pieces, string([]byte{byte(b)}))
	}
	bos := token.Token(len(pieces))
	pieces = append(pieces, bosPiece)
	eos := token.Token(len(pieces))
	pieces = append(pieces, eosPiece)
	eot := token.Token(len(pieces))
	pieces = append(pieces, eotPiece)

	vocab := len(pieces)
	e := &Engine{
		pieces: pieces,
		bos:    bos,
		eos:    eos,
		eot:    eot,
		emb:    tensor.NewMat(vocab, hidden),
		proj:   tensor.NewMat(hidden, vocab),
		hidden: make([]float32, hidden),
		seqLen: seqLen,
	}
	tensor.FillRand(&e.emb, seed+11)
	tensor.FillRand(&e.proj, seed+23)
	return e
}

// Decode computes logits for every batch entry that requested them.
// Positions outside the context window and tokens outside the vocabulary
// fail the whole step.
func (e *Engine) Decode(b *batch.Batch) error {
	n := b.NumTokens()
	if n == 0 {
		return fmt.Errorf("%w: empty batch", engine.ErrDecode)
	}
	logits := make([][]float32, n)
	for i := 0; i < n; i++ {
		pos := b.Position(i)
		if pos < 0 || pos >= e.seqLen {
			return fmt.Errorf("%w: position %d outside context window %d", engine.ErrDecode, pos, e.seqLen)
		}
		tok := b.Token(i)
		if tok < 0 || int(tok) >= len(e.pieces) {
			return fmt.Errorf("%w: token %d outside vocabulary", engine.ErrDecode, tok)
		}
		if b.WantLogits(i) {
			logits[i] = e.forward(tok)
		}
	}
	e.logits = logits
	return nil
}

// Logits returns the logit vector for entry i of the last decoded batch,
// or nil if that entry did not request output.
func (e *Engine) Logits(i int) []float32 {
	if i < 0 || i >= len(e.logits) {
		return nil
	}
	return e.logits[i]
}

// Tokenize maps text to byte tokens, optionally prefixed with BOS.
func (e *Engine) Tokenize(text string, addBOS bool) ([]token.Token, error) {
	raw := []byte(text)
	toks := make([]token.Token, 0, len(raw)+1)
	if addBOS {
		toks = append(toks, e.bos)
	}
	for _, b := range raw {
		toks = append(toks, token.Token(b))
	}
	return toks, nil
}

// TokenBytes writes the piece of tok into buf. Control pieces render empty
// unless special is set. A too-small buf yields a *token.SizeError with
// the exact required size.
func (e *Engine) TokenBytes(tok token.Token, buf []byte, special bool) (int, error) {
	if tok < 0 || int(tok) >= len(e.pieces) {
		return 0, fmt.Errorf("token %d outside vocabulary", tok)
	}
	if !special && tok >= byteTokens {
		return 0, nil
	}
	piece := e.pieces[tok]
	if len(buf) < len(piece) {
		return 0, &token.SizeError{Required: len(piece)}
	}
	return copy(buf, piece), nil
}

// IsEOG classifies the control stop pieces as end-of-generation.
func (e *Engine) IsEOG(tok token.Token) bool {
	return tok == e.eos || tok == e.eot
}

// EOSToken returns the canonical end-of-sequence token.
func (e *Engine) EOSToken() token.Token { return e.eos }

// BOSToken returns the beginning-of-sequence token.
func (e *Engine) BOSToken() token.Token { return e.bos }

// EOTToken returns the end-of-text control token.
func (e *Engine) EOTToken() token.Token { return e.eot }

// VocabSize returns the number of tokens in the vocabulary.
func (e *Engine) VocabSize() int { return len(e.pieces) }

// SeqLen returns the context window length.
func (e *Engine) SeqLen() int { return e.seqLen }

func (e *Engine) forward(tok token.Token) []float32 {
	copy(e.hidden, e.emb.Row(int(tok)))
	out := make([]float32, len(e.pieces))
	e.proj.MatVec(out, e.hidden)
	return out
}
