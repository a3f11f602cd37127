// Package session drives the generation loop: prime the batch with a
// prompt, then repeatedly decode, sample, detect stop conditions, and
// stream decoded text fragments until the session ends.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samcharles93/loom/internal/batch"
	"github.com/samcharles93/loom/internal/engine"
	"github.com/samcharles93/loom/internal/logger"
	"github.com/samcharles93/loom/internal/metrics"
	"github.com/samcharles93/loom/internal/stop"
	"github.com/samcharles93/loom/internal/token"
)

// DefaultBatchCapacity bounds a single decode submission.
const DefaultBatchCapacity = 512

// ErrConsumed reports a second Run on the same session. Stop-detection
// state is per-session; construct a new Session instead of reusing one.
var ErrConsumed = errors.New("session already consumed")

// Sampler picks the next token from a logit vector. recent is the token
// history (prompt plus generated) for repetition-aware policies.
type Sampler interface {
	Sample(logits []float32, recent []token.Token) token.Token
}

// Config assembles a generation session.
type Config struct {
	Engine  engine.Engine
	Sampler Sampler
	Logger  logger.Logger

	// BatchCapacity caps one decode submission; the prompt must fit.
	// Defaults to DefaultBatchCapacity.
	BatchCapacity int

	// RepeatThreshold overrides the consecutive-repeat stop threshold.
	RepeatThreshold int

	// EmitEOSText disables the newline substitution and streams the EOS
	// token's literal piece instead.
	EmitEOSText bool
}

// Session owns the engine, batch, codec and stop detector for one
// generation run. Sessions are single-use and single-threaded; the engine
// must not be shared while Run is in flight.
type Session struct {
	eng     engine.Engine
	sampler Sampler
	log     logger.Logger

	codec *token.Codec
	det   *stop.Detector
	dec   token.StreamDecoder
	b     *batch.Batch

	ran bool
}

// New builds a session with fresh per-session state.
func New(cfg Config) (*Session, error) {
	if cfg.Engine == nil {
		return nil, errors.New("session: engine is required")
	}
	if cfg.Sampler == nil {
		return nil, errors.New("session: sampler is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	if cfg.BatchCapacity <= 0 {
		cfg.BatchCapacity = DefaultBatchCapacity
	}
	threshold := cfg.RepeatThreshold
	if threshold <= 0 {
		threshold = stop.DefaultRepeatThreshold
	}

	codec := token.NewCodec(cfg.Engine)
	codec.NewlineForEOS = !cfg.EmitEOSText

	return &Session{
		eng:     cfg.Engine,
		sampler: cfg.Sampler,
		log:     cfg.Logger,
		codec:   codec,
		det:     stop.NewDetectorThreshold(cfg.Engine, threshold),
		b:       batch.New(cfg.BatchCapacity),
	}, nil
}

// Run generates until a stop signal fires, the position index reaches
// maxLen, ctx is cancelled, or the engine fails to decode. Non-empty text
// fragments are passed to stream as they are produced. A stop via
// detector or max length is a normal result; decode failures, caller
// bugs and cancellation also return an error.
func (s *Session) Run(ctx context.Context, prompt []token.Token, maxLen int, stream func(string)) (Result, error) {
	var res Result
	if s.ran {
		return res, ErrConsumed
	}
	s.ran = true

	if len(prompt) == 0 {
		return res, errors.New("session: empty prompt")
	}
	if maxLen <= len(prompt) {
		return res, fmt.Errorf("session: max length %d must exceed prompt length %d", maxLen, len(prompt))
	}

	metrics.RecordSession(len(prompt))
	start := time.Now()

	emit := func(fragment string) {
		if stream != nil && fragment != "" {
			stream(fragment)
		}
	}
	finish := func(reason StopReason) Result {
		// Resolve any held-back partial character before reporting.
		emit(s.dec.Flush())
		res.Reason = reason
		res.Duration = time.Since(start)
		if secs := res.Duration.Seconds(); secs > 0 {
			res.TPS = float64(res.TokensGenerated) / secs
		}
		metrics.RecordStop(reason.String())
		return res
	}

	// Priming: submit the whole prompt, logits for the last entry only.
	s.b.Clear()
	for i, tok := range prompt {
		if err := s.b.Add(tok, i, []int{0}, i == len(prompt)-1); err != nil {
			return res, fmt.Errorf("session: prime batch: %w", err)
		}
	}
	if err := s.eng.Decode(s.b); err != nil {
		metrics.RecordDecodeFailure()
		s.log.Error("prompt decode failed", "error", err)
		return finish(ReasonDecodeFailed), fmt.Errorf("session: decode prompt: %w", err)
	}

	// Position index starts at the prompt length and advances by exactly
	// one per successful step.
	pos := len(prompt)
	hist := append([]token.Token(nil), prompt...)

	for pos < maxLen {
		tStep := time.Now()

		next := s.sampler.Sample(s.eng.Logits(s.b.NumTokens()-1), hist)

		sig := s.det.Observe(next)
		if sig != stop.SignalNone {
			if sig == stop.SignalEOS {
				// The EOS piece (or its newline substitute) is still
				// part of the output stream.
				if raw, err := s.codec.TokenBytes(next, true); err == nil {
					emit(s.dec.Decode(raw))
				}
			}
			s.log.Debug("stop signal", "signal", sig.String(), "token", int32(next), "position", pos)
			return finish(reasonForSignal(sig)), nil
		}

		raw, err := s.codec.TokenBytes(next, false)
		if err != nil {
			return finish(ReasonError), fmt.Errorf("session: sampled %w", err)
		}
		emit(s.dec.Decode(raw))

		// The batch holds exactly the tokens the engine still needs for
		// the next step: just the new one.
		s.b.Clear()
		if err := s.b.Add(next, pos, []int{0}, true); err != nil {
			return finish(ReasonError), fmt.Errorf("session: batch add: %w", err)
		}
		pos++
		hist = append(hist, next)

		// Cooperative cancellation checkpoint: after sampling, before
		// the next decode submission.
		if err := ctx.Err(); err != nil {
			return finish(ReasonCancelled), err
		}

		if err := s.eng.Decode(s.b); err != nil {
			metrics.RecordDecodeFailure()
			s.log.Error("decode step failed", "position", pos-1, "error", err)
			return finish(ReasonDecodeFailed), fmt.Errorf("session: decode step at position %d: %w", pos-1, err)
		}
		res.TokensGenerated++
		metrics.RecordStep(time.Since(tStep))
	}

	return finish(ReasonMaxLength), nil
}

func reasonForSignal(sig stop.Signal) StopReason {
	switch sig {
	case stop.SignalEOS:
		return ReasonEOS
	case stop.SignalEngineEOG:
		return ReasonEngineEOG
	case stop.SignalRepeatLoop:
		return ReasonRepeatLoop
	default:
		return ReasonError
	}
}
