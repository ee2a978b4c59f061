package markov

import (
	"fmt"
	"slices"
)

// FirstOrderChain learns P(next | current) in a dense n×n table.
type FirstOrderChain struct {
	states    *StateSpace
	counts    [][]float64
	probs     [][]float64
	weighting Weighting
	fitted    bool
}

// NewFirstOrderChain returns an unfitted chain over states.
func NewFirstOrderChain(states *StateSpace) (*FirstOrderChain, error) {
	if states == nil || states.Len() == 0 {
		return nil, ErrEmptyStateSpace
	}
	n := states.Len()
	return &FirstOrderChain{
		states: states,
		counts: newMatrix(n),
		probs:  newMatrix(n),
	}, nil
}

func (c *FirstOrderChain) Order() int              { return 1 }
func (c *FirstOrderChain) StateSpace() *StateSpace { return c.states }
func (c *FirstOrderChain) Fitted() bool            { return c.fitted }

// Weighting returns the heuristic used by the last fit.
func (c *FirstOrderChain) Weighting() Weighting { return c.weighting }

// Fit resets the counts and adds a weighted count for every adjacent pair of
// every sequence. Sequences are validated up front; on error nothing changes.
func (c *FirstOrderChain) Fit(sequences [][]int, w Weighting) error {
	indexed, err := c.states.indexSequences(sequences)
	if err != nil {
		return fmt.Errorf("fit: %w", err)
	}

	counts := newMatrix(c.states.Len())
	for i, seq := range indexed {
		raw := sequences[i]
		for j := 0; j+1 < len(seq); j++ {
			counts[seq[j]][seq[j+1]] += w.weight(raw[j], raw[j+1])
		}
	}

	c.counts = counts
	c.weighting = w
	c.fitted = true
	c.recompute()
	return nil
}

// Update adds one count per observed transition without any weighting. An
// unfitted chain is fitted instead, with pitch weighting.
func (c *FirstOrderChain) Update(sequences [][]int) error {
	if !c.fitted {
		return c.Fit(sequences, PitchWeighting)
	}

	indexed, err := c.states.indexSequences(sequences)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}
	for _, seq := range indexed {
		for j := 0; j+1 < len(seq); j++ {
			c.counts[seq[j]][seq[j+1]]++
		}
	}
	c.recompute()
	return nil
}

// recompute row-normalizes the counts. Rows without observations stay all
// zero so generation can detect a dead end.
func (c *FirstOrderChain) recompute() {
	n := c.states.Len()
	probs := make([][]float64, n)
	for i, row := range c.counts {
		if p := normalize(row); p != nil {
			probs[i] = p
		} else {
			probs[i] = make([]float64, n)
		}
	}
	c.probs = probs
}

// Generate walks the chain for up to opts.Length states. It stops early,
// without error, when the current state has no outgoing transitions.
func (c *FirstOrderChain) Generate(opts GenerateOptions) ([]int, error) {
	if !c.fitted {
		return nil, ErrNotFitted
	}
	if opts.Length < 1 {
		return nil, ErrInvalidLength
	}

	rng := opts.source()
	current, err := c.startIndex(opts.Start, rng)
	if err != nil {
		return nil, err
	}

	sequence := make([]int, 1, opts.Length)
	sequence[0] = c.states.State(current)
	for len(sequence) < opts.Length {
		row := c.probs[current]
		if sum(row) == 0 {
			break
		}
		current = pick(row, opts.Strategy, rng)
		sequence = append(sequence, c.states.State(current))
	}
	return sequence, nil
}

func (c *FirstOrderChain) startIndex(start []int, rng Rand) (int, error) {
	switch len(start) {
	case 0:
		var valid []int
		for i, row := range c.probs {
			if sum(row) > 0 {
				valid = append(valid, i)
			}
		}
		if len(valid) == 0 {
			return 0, ErrNoValidStart
		}
		return valid[rng.Intn(len(valid))], nil
	case 1:
		idx, ok := c.states.Index(start[0])
		if !ok {
			return 0, invalidStart("start state '%d' not in the state space", start[0])
		}
		return idx, nil
	default:
		return 0, invalidStart("first-order chain takes 1 start state, got %d", len(start))
	}
}

// Counts returns a copy of the count matrix, rows and columns in state order.
func (c *FirstOrderChain) Counts() ([][]float64, error) {
	if !c.fitted {
		return nil, ErrNotFitted
	}
	return cloneMatrix(c.counts), nil
}

// Distribution returns a copy of the transition matrix.
func (c *FirstOrderChain) Distribution() ([][]float64, error) {
	if !c.fitted {
		return nil, ErrNotFitted
	}
	return cloneMatrix(c.probs), nil
}

// Row returns the next-state distribution for one state.
func (c *FirstOrderChain) Row(state int) ([]float64, error) {
	if !c.fitted {
		return nil, ErrNotFitted
	}
	idx, ok := c.states.Index(state)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSymbol, state)
	}
	return slices.Clone(c.probs[idx]), nil
}

// Snapshot captures the chain for persistence.
func (c *FirstOrderChain) Snapshot() Snapshot {
	return Snapshot{
		Order:     1,
		States:    c.states.States(),
		Weighting: c.weighting.String(),
		Fitted:    c.fitted,
		Counts:    cloneMatrix(c.counts),
	}
}

func (c *FirstOrderChain) restore(counts [][]float64, w Weighting, fitted bool) error {
	n := c.states.Len()
	if counts == nil {
		counts = newMatrix(n)
	}
	if len(counts) != n {
		return fmt.Errorf("snapshot: %d count rows, want %d", len(counts), n)
	}
	for _, row := range counts {
		if err := checkCounts(row, n); err != nil {
			return err
		}
	}
	c.counts = cloneMatrix(counts)
	c.weighting = w
	c.fitted = fitted
	c.recompute()
	return nil
}

func newMatrix(n int) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	return m
}

func cloneMatrix(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = slices.Clone(row)
	}
	return out
}
