// Package stop implements end-of-generation detection: the model's
// intrinsic end-of-sequence signal, the engine's end-of-generation
// classifier, and a consecutive-repeat heuristic, reported separately so
// callers can branch on why generation stopped.
package stop

import "github.com/samcharles93/loom/internal/token"

// DefaultRepeatThreshold stops generation on the third consecutive
// identical token.
const DefaultRepeatThreshold = 3

// Signal identifies which stop condition fired, if any.
type Signal int

const (
	SignalNone Signal = iota
	// SignalEOS: the token is the vocabulary's canonical end-of-sequence.
	SignalEOS
	// SignalEngineEOG: the engine's own classifier flags the token as
	// end-of-generation (end of turn, end of message, ...).
	SignalEngineEOG
	// SignalRepeatLoop: the repeat threshold was reached.
	SignalRepeatLoop
)

func (s Signal) String() string {
	switch s {
	case SignalNone:
		return "none"
	case SignalEOS:
		return "eos"
	case SignalEngineEOG:
		return "engine_eog"
	case SignalRepeatLoop:
		return "repeat_loop"
	default:
		return "unknown"
	}
}

// Classifier is the slice of an engine the detector needs.
type Classifier interface {
	IsEOG(tok token.Token) bool
	EOSToken() token.Token
}

// Detector is a stateful stop predicate. The last-seen token and repeat
// streak are explicit per-instance fields; construct a fresh Detector for
// every generation session, never share one across sessions.
type Detector struct {
	cls       Classifier
	threshold int

	last   token.Token
	streak int
}

// NewDetector returns a detector with the default repeat threshold.
func NewDetector(cls Classifier) *Detector {
	return NewDetectorThreshold(cls, DefaultRepeatThreshold)
}

// NewDetectorThreshold returns a detector stopping after threshold
// consecutive identical tokens.
func NewDetectorThreshold(cls Classifier, threshold int) *Detector {
	if threshold < 2 {
		threshold = 2
	}
	return &Detector{cls: cls, threshold: threshold, last: token.None}
}

// Observe feeds one sampled token through the detector and returns the
// stop signal that fired, if any. Observe mutates the repeat state on
// every call; it is not idempotent, so call it exactly once per sampled
// token. EOS wins over the engine classifier, which wins over the repeat
// heuristic.
func (d *Detector) Observe(tok token.Token) Signal {
	if tok == d.last {
		d.streak++
	} else {
		d.streak = 1
	}
	d.last = tok

	switch {
	case tok == d.cls.EOSToken():
		return SignalEOS
	case d.cls.IsEOG(tok):
		return SignalEngineEOG
	case d.streak >= d.threshold:
		return SignalRepeatLoop
	}
	return SignalNone
}

// Repeats returns the current consecutive-repeat count (0 when the last
// token broke a streak or nothing has been observed).
func (d *Detector) Repeats() int {
	if d.streak == 0 {
		return 0
	}
	return d.streak - 1
}
