package markov

import (
	"slices"
	"sort"
)

// StateSpace is an ordered, deduplicated set of symbols. Each symbol gets a
// stable index used to address count and probability tables.
type StateSpace struct {
	states []int
	index  map[int]int
}

// NewStateSpace builds a state space keeping the first occurrence of every
// symbol in the given order.
func NewStateSpace(symbols []int) (*StateSpace, error) {
	if len(symbols) == 0 {
		return nil, ErrEmptyStateSpace
	}

	s := &StateSpace{
		states: make([]int, 0, len(symbols)),
		index:  make(map[int]int, len(symbols)),
	}
	for _, sym := range symbols {
		if _, seen := s.index[sym]; seen {
			continue
		}
		s.index[sym] = len(s.states)
		s.states = append(s.states, sym)
	}
	return s, nil
}

// StateSpaceFromSequences collects every symbol that appears in the
// sequences, sorted ascending.
func StateSpaceFromSequences(sequences ...[]int) (*StateSpace, error) {
	seen := make(map[int]struct{})
	for _, seq := range sequences {
		for _, sym := range seq {
			seen[sym] = struct{}{}
		}
	}
	symbols := make([]int, 0, len(seen))
	for sym := range seen {
		symbols = append(symbols, sym)
	}
	sort.Ints(symbols)
	return NewStateSpace(symbols)
}

// Len returns the number of states.
func (s *StateSpace) Len() int {
	return len(s.states)
}

// States returns a copy of the symbols in index order.
func (s *StateSpace) States() []int {
	return slices.Clone(s.states)
}

// Index returns the index of a symbol.
func (s *StateSpace) Index(symbol int) (int, bool) {
	idx, ok := s.index[symbol]
	return idx, ok
}

// State returns the symbol stored at idx.
func (s *StateSpace) State(idx int) int {
	return s.states[idx]
}

// Contains reports whether the symbol belongs to the state space.
func (s *StateSpace) Contains(symbol int) bool {
	_, ok := s.index[symbol]
	return ok
}

// indexSequences validates every symbol of every sequence and returns the
// sequences translated to indices. Nothing is returned on error, which keeps
// fit and update atomic.
func (s *StateSpace) indexSequences(sequences [][]int) ([][]int, error) {
	out := make([][]int, len(sequences))
	for i, seq := range sequences {
		idx := make([]int, len(seq))
		for j, sym := range seq {
			k, ok := s.index[sym]
			if !ok {
				return nil, &SymbolError{Symbol: sym, Sequence: i, Position: j}
			}
			idx[j] = k
		}
		out[i] = idx
	}
	return out, nil
}
