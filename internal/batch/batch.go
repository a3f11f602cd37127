// Package batch implements the reusable token batch submitted to an
// inference engine for one decode step.
package batch

import (
	"errors"
	"fmt"

	"github.com/samcharles93/loom/internal/token"
)

// ErrCapacityExceeded reports an Add past the batch's fixed capacity.
// This is a caller bug; it is never retried.
var ErrCapacityExceeded = errors.New("batch capacity exceeded")

// Batch is an ordered collection of pending token positions. Capacity is
// fixed at construction; Add past capacity fails cleanly. A batch is owned
// by a single generation session and reused across decode steps via Clear.
type Batch struct {
	tokens     []token.Token
	positions  []int
	seqIDs     [][]int
	wantLogits []bool
	n          int
}

// New returns an empty batch holding at most capacity entries.
func New(capacity int) *Batch {
	if capacity <= 0 {
		capacity = 1
	}
	return &Batch{
		tokens:     make([]token.Token, capacity),
		positions:  make([]int, capacity),
		seqIDs:     make([][]int, capacity),
		wantLogits: make([]bool, capacity),
	}
}

// Add appends one entry. wantLogits marks entries whose logits the engine
// must expose after decoding.
func (b *Batch) Add(tok token.Token, pos int, seqIDs []int, wantLogits bool) error {
	if b.n >= len(b.tokens) {
		return fmt.Errorf("%w: capacity %d", ErrCapacityExceeded, len(b.tokens))
	}
	b.tokens[b.n] = tok
	b.positions[b.n] = pos
	b.seqIDs[b.n] = seqIDs
	b.wantLogits[b.n] = wantLogits
	b.n++
	return nil
}

// Clear drops all entries. O(1); capacity is unchanged.
func (b *Batch) Clear() {
	b.n = 0
}

// NumTokens returns the current entry count.
func (b *Batch) NumTokens() int {
	return b.n
}

// Capacity returns the fixed entry capacity.
func (b *Batch) Capacity() int {
	return len(b.tokens)
}

// Token returns the token of entry i.
func (b *Batch) Token(i int) token.Token {
	return b.tokens[i]
}

// Position returns the sequence position of entry i.
func (b *Batch) Position(i int) int {
	return b.positions[i]
}

// SeqIDs returns the sequence id set of entry i.
func (b *Batch) SeqIDs(i int) []int {
	return b.seqIDs[i]
}

// WantLogits reports whether entry i requested logit output.
func (b *Batch) WantLogits(i int) bool {
	return b.wantLogits[i]
}
