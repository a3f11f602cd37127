package session

import "time"

// StopReason records why a generation run ended.
type StopReason int

const (
	ReasonNone StopReason = iota
	// ReasonEOS means the sampler produced the end-of-sequence token.
	ReasonEOS
	// ReasonEngineEOG means the engine flagged a non-EOS token as
	// end-of-generation.
	ReasonEngineEOG
	// ReasonRepeatLoop means the same token was sampled too many times
	// in a row.
	ReasonRepeatLoop
	// ReasonMaxLength means the position index reached the requested
	// length.
	ReasonMaxLength
	// ReasonDecodeFailed means the engine rejected a decode submission.
	ReasonDecodeFailed
	// ReasonCancelled means the context was cancelled between steps.
	ReasonCancelled
	// ReasonError covers session-fatal caller or codec errors.
	ReasonError
)

func (r StopReason) String() string {
	switch r {
	case ReasonEOS:
		return "eos"
	case ReasonEngineEOG:
		return "engine_eog"
	case ReasonRepeatLoop:
		return "repeat_loop"
	case ReasonMaxLength:
		return "max_length"
	case ReasonDecodeFailed:
		return "decode_failed"
	case ReasonCancelled:
		return "cancelled"
	case ReasonError:
		return "error"
	default:
		return "none"
	}
}

// Result summarises a finished run.
type Result struct {
	Reason          StopReason
	TokensGenerated int
	Duration        time.Duration
	// TPS is generated tokens per second of wall time.
	TPS float64
}
