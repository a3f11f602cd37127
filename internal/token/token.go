// Package token holds the token identifier type and the conversion layer
// between opaque token ids and their UTF-8 textual representation.
package token

import "fmt"

// Token is an opaque identifier into a model vocabulary. It carries no
// intrinsic text without a vocabulary lookup.
type Token int32

// None marks "no token", e.g. the detector's initial last-seen state.
const None Token = -1

func (t Token) String() string {
	return fmt.Sprintf("token(%d)", int32(t))
}
