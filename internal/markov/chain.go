// Package markov implements discrete-state Markov chains over integer symbols
// (MIDI pitches or tick durations) of first and second order.
//
// Chains are not safe for concurrent mutation. At most one Fit or Update may
// be in flight per instance, and Generate must not run concurrently with a
// mutation. Concurrent Generate calls are fine.
package markov

import (
	"fmt"
	"math"
)

// Chain is the capability shared by first- and second-order models.
type Chain interface {
	// Order is the number of context states (1 or 2).
	Order() int
	StateSpace() *StateSpace
	Fitted() bool

	// Fit resets all counts and learns from sequences with the given weighting.
	Fit(sequences [][]int, w Weighting) error

	// Update adds flat +1 counts for new sequences, or fits with pitch
	// weighting if the chain was never fitted.
	Update(sequences [][]int) error

	// Generate produces a new sequence. It never mutates the chain.
	Generate(opts GenerateOptions) ([]int, error)

	Snapshot() Snapshot
}

var (
	_ Chain = (*FirstOrderChain)(nil)
	_ Chain = (*SecondOrderChain)(nil)
)

// New builds an unfitted chain of the given order.
func New(order int, states *StateSpace) (Chain, error) {
	switch order {
	case 1:
		c, err := NewFirstOrderChain(states)
		if err != nil {
			return nil, err
		}
		return c, nil
	case 2:
		c, err := NewSecondOrderChain(states)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w: got %d", ErrInvalidOrder, order)
	}
}

// Snapshot is the serializable form of a chain. Probabilities are not stored;
// they are recomputed from the counts on restore.
type Snapshot struct {
	Order     int    `json:"order"`
	States    []int  `json:"states"`
	Weighting string `json:"weighting"`
	Fitted    bool   `json:"fitted"`

	// Counts is the dense first-order table, indexed like States.
	Counts [][]float64 `json:"counts,omitempty"`

	// PairCounts holds the observed second-order contexts only.
	PairCounts []PairCount `json:"pair_counts,omitempty"`
}

// PairCount is one context row of a second-order table, keyed by symbols.
type PairCount struct {
	First  int       `json:"first"`
	Second int       `json:"second"`
	Counts []float64 `json:"counts"`
}

// Restore rebuilds a chain from a snapshot.
func Restore(s Snapshot) (Chain, error) {
	states, err := NewStateSpace(s.States)
	if err != nil {
		return nil, err
	}
	if states.Len() != len(s.States) {
		return nil, fmt.Errorf("snapshot: duplicate states")
	}
	weighting, err := ParseWeighting(s.Weighting)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	switch s.Order {
	case 1:
		c, _ := NewFirstOrderChain(states)
		if err := c.restore(s.Counts, weighting, s.Fitted); err != nil {
			return nil, err
		}
		return c, nil
	case 2:
		c, _ := NewSecondOrderChain(states)
		if err := c.restore(s.PairCounts, weighting, s.Fitted); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w: got %d", ErrInvalidOrder, s.Order)
	}
}

func checkCounts(counts []float64, n int) error {
	if len(counts) != n {
		return fmt.Errorf("snapshot: row has %d counts, want %d", len(counts), n)
	}
	for _, c := range counts {
		if c < 0 || math.IsNaN(c) || math.IsInf(c, 0) {
			return fmt.Errorf("snapshot: invalid count %v", c)
		}
	}
	return nil
}
