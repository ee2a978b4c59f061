package markov

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Rand is the randomness a chain needs. *rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
	Float64() float64
}

// NewSeededRand returns a deterministic source for the given seed.
func NewSeededRand(seed int64) Rand {
	return rand.New(rand.NewSource(seed))
}

// Strategy selects how the next state is chosen during generation.
type Strategy int

const (
	// Sample draws the next state in proportion to its probability
	Sample Strategy = iota
	// ArgMax always takes the most probable next state
	ArgMax
)

func (s Strategy) String() string {
	switch s {
	case Sample:
		return "sample"
	case ArgMax:
		return "argmax"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// ParseStrategy accepts "sample" (also "prob") or "argmax" (also "max").
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sample", "prob":
		return Sample, nil
	case "argmax", "max":
		return ArgMax, nil
	default:
		return Sample, fmt.Errorf("unknown strategy %q (allowed: sample, argmax)", s)
	}
}

// GenerateOptions controls a generation call.
type GenerateOptions struct {
	// Start holds the seed context: one state for a first-order chain, two
	// for a second-order chain. Empty picks a random start.
	Start []int

	// Length is the requested number of symbols, at least 1.
	Length int

	// Seed makes start selection and sampling reproducible.
	Seed *int64

	Strategy Strategy

	// Rand overrides Seed when set.
	Rand Rand
}

func (o GenerateOptions) source() Rand {
	if o.Rand != nil {
		return o.Rand
	}
	if o.Seed != nil {
		return NewSeededRand(*o.Seed)
	}
	return NewSeededRand(time.Now().UnixNano())
}

// pick selects an index from probs. Sample walks the cumulative sum with one
// uniform draw; ArgMax returns the first maximum.
func pick(probs []float64, strategy Strategy, rng Rand) int {
	if strategy == ArgMax {
		best := 0
		for i, p := range probs {
			if p > probs[best] {
				best = i
			}
		}
		return best
	}

	total := sum(probs)
	r := rng.Float64() * total
	cumulative := 0.0
	last := 0
	for i, p := range probs {
		if p <= 0 {
			continue
		}
		cumulative += p
		last = i
		if r < cumulative {
			return i
		}
	}
	// rounding left r at the very top of the range
	return last
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

// normalize returns counts divided by their total, or nil when the total is zero.
func normalize(counts []float64) []float64 {
	total := sum(counts)
	if total == 0 {
		return nil
	}
	probs := make([]float64, len(counts))
	for i, c := range counts {
		probs[i] = c / total
	}
	return probs
}
