package token

import (
	"errors"
	"fmt"
)

// scratchSize is the first-attempt buffer size for token byte lookups.
// Most vocabulary pieces fit; longer ones trigger a single sized retry.
const scratchSize = 8

// ErrInvalidToken reports a token id outside the vocabulary range.
var ErrInvalidToken = errors.New("token id outside vocabulary range")

// SizeError is returned by a ByteSource when the destination buffer cannot
// hold the token's byte representation. Required is the exact size needed.
// It replaces the negative-count convention used by native engines; bindings
// must translate negative counts into a SizeError at the boundary.
type SizeError struct {
	Required int
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("buffer too small, %d bytes required", e.Required)
}

// ByteSource is the slice of an engine the codec needs: raw token bytes
// plus enough vocabulary metadata to validate ids and recognize EOS.
type ByteSource interface {
	TokenBytes(tok Token, buf []byte, special bool) (int, error)
	EOSToken() Token
	VocabSize() int
}

// Codec converts tokens to their raw byte representation.
//
// A Codec reuses an internal scratch buffer, so the slice returned by
// TokenBytes is only valid until the next call. It is not safe for
// concurrent use; construct one per generation session.
type Codec struct {
	src     ByteSource
	scratch []byte

	// NewlineForEOS substitutes a single newline for the canonical EOS
	// token when the detector has classified it as end-of-generation,
	// keeping engine-internal sentinel text out of the output stream.
	NewlineForEOS bool
}

// NewCodec returns a codec reading token bytes from src.
func NewCodec(src ByteSource) *Codec {
	return &Codec{
		src:           src,
		scratch:       make([]byte, scratchSize),
		NewlineForEOS: true,
	}
}

// TokenBytes converts tok to its raw byte representation. eog reports
// whether the stop detector classified tok as end-of-generation; the EOS
// token is substituted with a newline in that case (see NewlineForEOS).
//
// The lookup first tries the small scratch buffer. If the source reports
// the exact required size, it retries exactly once with a buffer of that
// size; a second failure is fatal for the token.
func (c *Codec) TokenBytes(tok Token, eog bool) ([]byte, error) {
	if tok < 0 || int(tok) >= c.src.VocabSize() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidToken, tok)
	}

	if c.NewlineForEOS && eog && tok == c.src.EOSToken() {
		return []byte{'\n'}, nil
	}

	n, err := c.src.TokenBytes(tok, c.scratch, true)
	if err == nil {
		return c.scratch[:n], nil
	}

	var sz *SizeError
	if !errors.As(err, &sz) {
		return nil, fmt.Errorf("token %d to bytes: %w", tok, err)
	}
	buf := make([]byte, sz.Required)
	n, err = c.src.TokenBytes(tok, buf, true)
	if err != nil {
		return nil, fmt.Errorf("token %d to bytes after sized retry (%d bytes): %w", tok, sz.Required, err)
	}
	return buf[:n], nil
}
