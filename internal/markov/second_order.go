package markov

import (
	"fmt"
	"slices"
	"sort"
)

// Pair is a two-state context, in symbols.
type Pair struct {
	First  int `json:"first"`
	Second int `json:"second"`
}

// PairStats describes one context row of a second-order table.
type PairStats struct {
	Pair
	Total         float64   `json:"total"`
	Probabilities []float64 `json:"probabilities"`
}

// pairKey addresses a context by state indices.
type pairKey struct {
	first, second int
}

// SecondOrderChain learns P(next | previous, current).
//
// Every context pair has a complete next-state distribution, but only
// observed pairs are stored: an absent pair has zero counts and a uniform
// distribution. This keeps memory proportional to the training data instead
// of n³.
type SecondOrderChain struct {
	states    *StateSpace
	counts    map[pairKey][]float64
	probs     map[pairKey][]float64
	uniform   []float64
	weighting Weighting
	fitted    bool
}

// NewSecondOrderChain returns an unfitted chain over states.
func NewSecondOrderChain(states *StateSpace) (*SecondOrderChain, error) {
	if states == nil || states.Len() == 0 {
		return nil, ErrEmptyStateSpace
	}
	n := states.Len()
	uniform := make([]float64, n)
	for i := range uniform {
		uniform[i] = 1.0 / float64(n)
	}
	return &SecondOrderChain{
		states:  states,
		counts:  make(map[pairKey][]float64),
		probs:   make(map[pairKey][]float64),
		uniform: uniform,
	}, nil
}

func (c *SecondOrderChain) Order() int              { return 2 }
func (c *SecondOrderChain) StateSpace() *StateSpace { return c.states }
func (c *SecondOrderChain) Fitted() bool            { return c.fitted }

// Weighting returns the heuristic used by the last fit.
func (c *SecondOrderChain) Weighting() Weighting { return c.weighting }

// Fit resets all pair counts and, for every triple (a, b, c), adds the
// weighting of (a, c) and the weighting of (b, c) to count[(a, b)][c].
func (c *SecondOrderChain) Fit(sequences [][]int, w Weighting) error {
	indexed, err := c.states.indexSequences(sequences)
	if err != nil {
		return fmt.Errorf("fit: %w", err)
	}

	counts := make(map[pairKey][]float64)
	for i, seq := range indexed {
		raw := sequences[i]
		for j := 0; j+2 < len(seq); j++ {
			row := c.row(counts, pairKey{seq[j], seq[j+1]})
			row[seq[j+2]] += w.weight(raw[j], raw[j+2]) + w.weight(raw[j+1], raw[j+2])
		}
	}

	c.counts = counts
	c.weighting = w
	c.fitted = true
	c.recompute()
	return nil
}

// Update adds one count per observed triple without weighting. An unfitted
// chain is fitted instead, with pitch weighting.
func (c *SecondOrderChain) Update(sequences [][]int) error {
	if !c.fitted {
		return c.Fit(sequences, PitchWeighting)
	}

	indexed, err := c.states.indexSequences(sequences)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}
	for _, seq := range indexed {
		for j := 0; j+2 < len(seq); j++ {
			c.row(c.counts, pairKey{seq[j], seq[j+1]})[seq[j+2]]++
		}
	}
	c.recompute()
	return nil
}

func (c *SecondOrderChain) row(counts map[pairKey][]float64, key pairKey) []float64 {
	row, ok := counts[key]
	if !ok {
		row = make([]float64, c.states.Len())
		counts[key] = row
	}
	return row
}

// recompute normalizes every stored pair. Pairs with a zero total are left
// out and read back as uniform.
func (c *SecondOrderChain) recompute() {
	probs := make(map[pairKey][]float64, len(c.counts))
	for key, row := range c.counts {
		if p := normalize(row); p != nil {
			probs[key] = p
		}
	}
	c.probs = probs
}

func (c *SecondOrderChain) distribution(key pairKey) []float64 {
	if p, ok := c.probs[key]; ok {
		return p
	}
	return c.uniform
}

func (c *SecondOrderChain) hasMass(key pairKey) bool {
	return sum(c.distribution(key)) > 0
}

// Generate starts from a pair and slides the context window one state at a
// time until opts.Length states are produced or a context has no mass.
func (c *SecondOrderChain) Generate(opts GenerateOptions) ([]int, error) {
	if !c.fitted {
		return nil, ErrNotFitted
	}
	if opts.Length < 1 {
		return nil, ErrInvalidLength
	}

	rng := opts.source()
	key, err := c.startPair(opts.Start, rng)
	if err != nil {
		return nil, err
	}

	sequence := make([]int, 2, max(opts.Length, 2))
	sequence[0] = c.states.State(key.first)
	sequence[1] = c.states.State(key.second)
	if opts.Length <= 2 {
		return sequence[:opts.Length], nil
	}

	for len(sequence) < opts.Length {
		probs := c.distribution(key)
		if sum(probs) == 0 {
			break
		}
		next := pick(probs, opts.Strategy, rng)
		sequence = append(sequence, c.states.State(next))
		key = pairKey{key.second, next}
	}
	return sequence, nil
}

func (c *SecondOrderChain) startPair(start []int, rng Rand) (pairKey, error) {
	switch len(start) {
	case 0:
		n := c.states.Len()
		valid := 0
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if c.hasMass(pairKey{i, j}) {
					valid++
				}
			}
		}
		if valid == 0 {
			return pairKey{}, ErrNoValidStart
		}
		target := rng.Intn(valid)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				key := pairKey{i, j}
				if !c.hasMass(key) {
					continue
				}
				if target == 0 {
					return key, nil
				}
				target--
			}
		}
		return pairKey{}, ErrNoValidStart
	case 2:
		first, ok := c.states.Index(start[0])
		if !ok {
			return pairKey{}, invalidStart("first state '%d' not in the state space", start[0])
		}
		second, ok := c.states.Index(start[1])
		if !ok {
			return pairKey{}, invalidStart("second state '%d' not in the state space", start[1])
		}
		return pairKey{first, second}, nil
	default:
		return pairKey{}, invalidStart("second-order chain takes 2 start states, got %d", len(start))
	}
}

func (c *SecondOrderChain) key(first, second int) (pairKey, error) {
	a, ok := c.states.Index(first)
	if !ok {
		return pairKey{}, fmt.Errorf("%w: %d", ErrUnknownSymbol, first)
	}
	b, ok := c.states.Index(second)
	if !ok {
		return pairKey{}, fmt.Errorf("%w: %d", ErrUnknownSymbol, second)
	}
	return pairKey{a, b}, nil
}

// Counts returns the next-state counts for a context, zero for unseen pairs.
func (c *SecondOrderChain) Counts(first, second int) ([]float64, error) {
	if !c.fitted {
		return nil, ErrNotFitted
	}
	key, err := c.key(first, second)
	if err != nil {
		return nil, err
	}
	if row, ok := c.counts[key]; ok {
		return slices.Clone(row), nil
	}
	return make([]float64, c.states.Len()), nil
}

// Distribution returns the next-state probabilities for a context.
func (c *SecondOrderChain) Distribution(first, second int) ([]float64, error) {
	if !c.fitted {
		return nil, ErrNotFitted
	}
	key, err := c.key(first, second)
	if err != nil {
		return nil, err
	}
	return slices.Clone(c.distribution(key)), nil
}

// ObservedPairs lists the contexts with stored counts, in state-space order.
func (c *SecondOrderChain) ObservedPairs() []Pair {
	keys := c.sortedKeys()
	pairs := make([]Pair, len(keys))
	for i, key := range keys {
		pairs[i] = c.pair(key)
	}
	return pairs
}

// TopPairs returns up to k observed contexts ranked by total count. Ties keep
// state-space order.
func (c *SecondOrderChain) TopPairs(k int) ([]PairStats, error) {
	if !c.fitted {
		return nil, ErrNotFitted
	}

	keys := c.sortedKeys()
	stats := make([]PairStats, 0, len(keys))
	for _, key := range keys {
		total := sum(c.counts[key])
		if total == 0 {
			continue
		}
		stats = append(stats, PairStats{
			Pair:          c.pair(key),
			Total:         total,
			Probabilities: slices.Clone(c.distribution(key)),
		})
	}
	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].Total > stats[j].Total
	})
	if k >= 0 && len(stats) > k {
		stats = stats[:k]
	}
	return stats, nil
}

func (c *SecondOrderChain) sortedKeys() []pairKey {
	keys := make([]pairKey, 0, len(c.counts))
	for key := range c.counts {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].first != keys[j].first {
			return keys[i].first < keys[j].first
		}
		return keys[i].second < keys[j].second
	})
	return keys
}

func (c *SecondOrderChain) pair(key pairKey) Pair {
	return Pair{First: c.states.State(key.first), Second: c.states.State(key.second)}
}

// Snapshot captures the chain for persistence.
func (c *SecondOrderChain) Snapshot() Snapshot {
	keys := c.sortedKeys()
	rows := make([]PairCount, len(keys))
	for i, key := range keys {
		p := c.pair(key)
		rows[i] = PairCount{First: p.First, Second: p.Second, Counts: slices.Clone(c.counts[key])}
	}
	return Snapshot{
		Order:      2,
		States:     c.states.States(),
		Weighting:  c.weighting.String(),
		Fitted:     c.fitted,
		PairCounts: rows,
	}
}

func (c *SecondOrderChain) restore(rows []PairCount, w Weighting, fitted bool) error {
	counts := make(map[pairKey][]float64, len(rows))
	for _, r := range rows {
		key, err := c.key(r.First, r.Second)
		if err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
		if _, dup := counts[key]; dup {
			return fmt.Errorf("snapshot: duplicate pair (%d, %d)", r.First, r.Second)
		}
		if err := checkCounts(r.Counts, c.states.Len()); err != nil {
			return err
		}
		counts[key] = slices.Clone(r.Counts)
	}
	c.counts = counts
	c.weighting = w
	c.fitted = fitted
	c.recompute()
	return nil
}
