// Package engine defines the boundary to the native inference engine.
// Model loading, tensor math and the decode kernel live behind this
// interface; the generation session only sees the operations below.
package engine

import (
	"errors"

	"github.com/samcharles93/loom/internal/batch"
	"github.com/samcharles93/loom/internal/token"
)

// ErrDecode categorizes engine decode failures. A failed decode leaves
// the engine's internal state unspecified; sessions must stop rather
// than retry.
var ErrDecode = errors.New("engine decode failed")

// Engine is one loaded model plus its decoding context. Implementations
// are not required to be reentrant; a session owns its engine exclusively
// for the whole run, and concurrent use needs external synchronization.
type Engine interface {
	// Decode advances the engine's attention/KV state for every entry in
	// the batch. Errors wrap ErrDecode.
	Decode(b *batch.Batch) error

	// Logits returns the logit vector produced for batch entry i by the
	// most recent Decode. Only entries that requested logits are valid.
	Logits(i int) []float32

	// Tokenize converts text into vocabulary tokens.
	Tokenize(text string, addBOS bool) ([]token.Token, error)

	// TokenBytes writes the raw byte representation of tok into buf and
	// returns the byte count. When buf is too small it returns a
	// *token.SizeError carrying the exact required size. special controls
	// whether control pieces render their text.
	TokenBytes(tok token.Token, buf []byte, special bool) (int, error)

	// IsEOG reports whether the engine classifies tok as end-of-generation.
	IsEOG(tok token.Token) bool

	// EOSToken returns the vocabulary's canonical end-of-sequence token.
	EOSToken() token.Token

	// VocabSize returns the number of tokens in the vocabulary.
	VocabSize() int
}
