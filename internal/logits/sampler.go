// Package logits implements the pluggable token sampling policy: seeded
// distribution sampling chained with a greedy fallback at temperature 0.
package logits

import (
	"math"
	"math/rand"

	"github.com/samcharles93/loom/internal/token"
)

// SamplerConfig configures the behaviour of a Sampler.
type SamplerConfig struct {
	Seed          int64
	Temperature   float32
	TopK          int
	TopP          float32
	RepeatPenalty float32
	RepeatLastN   int
}

// Sampler draws the next token from a logit vector. It is stateful (RNG
// plus scratch buffers) and not safe for concurrent use.
type Sampler struct {
	rng    *rand.Rand
	cfg    SamplerConfig
	greedy bool

	topIdx []int
	topVal []float32
	prob   []float64
}

// NewSampler returns a sampler with the provided configuration.
// Temperature <= 0 selects pure greedy decoding.
func NewSampler(cfg SamplerConfig) *Sampler {
	greedy := cfg.Temperature <= 0
	if cfg.Temperature <= 0 {
		cfg.Temperature = 1
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 40
	}
	if cfg.TopP <= 0 || cfg.TopP > 1 {
		cfg.TopP = 1
	}
	if cfg.RepeatPenalty <= 0 {
		cfg.RepeatPenalty = 1.0
	}
	if cfg.RepeatLastN <= 0 {
		cfg.RepeatLastN = 64
	}
	return &Sampler{
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		cfg:    cfg,
		greedy: greedy,
	}
}

// Sample draws a single token from logits. recent is the token history used
// for the repetition penalty window; logits may be modified in place.
//
//  1. Apply repetition penalty over the last RepeatLastN history tokens.
//  2. Greedy configurations return the argmax directly.
//  3. Otherwise scale by inverse temperature, shortlist the top k,
//     softmax the shortlist, truncate at cumulative TopP, and draw from
//     the truncated distribution.
func (s *Sampler) Sample(logits []float32, recent []token.Token) token.Token {
	if s.cfg.RepeatPenalty > 1.0 && len(recent) > 0 {
		start := max(len(recent)-s.cfg.RepeatLastN, 0)
		for _, id := range recent[start:] {
			if id < 0 || int(id) >= len(logits) {
				continue
			}
			if logits[id] > 0 {
				logits[id] /= s.cfg.RepeatPenalty
			} else {
				logits[id] *= s.cfg.RepeatPenalty
			}
		}
	}

	if s.greedy || (s.cfg.TopK == 1 && s.cfg.TopP >= 1 && s.cfg.Temperature == 1) {
		return token.Token(argmax(logits))
	}

	invTemp := float32(1.0) / s.cfg.Temperature
	k := min(s.cfg.TopK, len(logits))

	topIdx, topVal := s.topK(logits, k, invTemp)
	if len(topVal) == 0 {
		return 0
	}

	if cap(s.prob) < len(topVal) {
		s.prob = make([]float64, len(topVal))
	}
	prob := s.prob[:len(topVal)]
	maxv := topVal[0]
	var sum float64
	for i := range topVal {
		e := math.Exp(float64(topVal[i] - maxv))
		prob[i] = e
		sum += e
	}
	if sum == 0 {
		return token.Token(topIdx[0])
	}
	invSum := 1.0 / sum
	for i := range prob {
		prob[i] *= invSum
	}

	cut := len(prob)
	if s.cfg.TopP < 1 {
		var c float64
		for i := range prob {
			c += prob[i]
			if float32(c) >= s.cfg.TopP {
				cut = i + 1
				break
			}
		}
	}

	r := s.rng.Float64()
	var c float64
	for i := 0; i < cut; i++ {
		c += prob[i]
		if r <= c {
			return token.Token(topIdx[i])
		}
	}
	return token.Token(topIdx[cut-1])
}

// argmax returns the index of the maximum value. Panics on an empty slice.
func argmax(x []float32) int {
	if len(x) == 0 {
		panic("argmax: empty slice")
	}
	bestI := 0
	bestV := x[0]
	for i := 1; i < len(x); i++ {
		if x[i] > bestV {
			bestV = x[i]
			bestI = i
		}
	}
	return bestI
}

// topK returns the indices and values of the k largest elements, scaled by
// invTemp, ordered from largest to smallest. O(V*K), fine for small K.
func (s *Sampler) topK(logits []float32, k int, invTemp float32) ([]int, []float32) {
	if k <= 0 {
		return nil, nil
	}
	if cap(s.topIdx) < k+1 {
		s.topIdx = make([]int, 0, k+1)
		s.topVal = make([]float32, 0, k+1)
	}
	topIdx := s.topIdx[:0]
	topVal := s.topVal[:0]

	for i, l := range logits {
		v := l * invTemp

		pos := len(topVal)
		for pos > 0 && topVal[pos-1] < v {
			pos--
		}
		if pos >= k {
			continue
		}

		topIdx = append(topIdx, 0)
		topVal = append(topVal, 0)
		copy(topIdx[pos+1:], topIdx[pos:])
		copy(topVal[pos+1:], topVal[pos:])
		topIdx[pos] = i
		topVal[pos] = v

		if len(topVal) > k {
			topIdx = topIdx[:k]
			topVal = topVal[:k]
		}
	}
	if len(topIdx) == 0 {
		return []int{0}, []float32{0}
	}
	s.topIdx = topIdx
	s.topVal = topVal
	return topIdx, topVal
}
