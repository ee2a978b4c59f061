package markov

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyStateSpace is returned when a chain is built without any states
	ErrEmptyStateSpace = errors.New("state space must be provided and non-empty")

	// ErrUnknownSymbol is returned when a training sequence contains a value
	// outside the declared state space
	ErrUnknownSymbol = errors.New("symbol not in the state space")

	// ErrNotFitted is returned when generation or table access happens before a fit
	ErrNotFitted = errors.New("model not fitted")

	// ErrNoValidStart is returned when no start state has outgoing probability mass
	ErrNoValidStart = errors.New("no valid start state with outgoing transitions")

	// ErrInvalidStart is returned when the caller supplied start is not usable
	ErrInvalidStart = errors.New("invalid start state")

	// ErrInvalidLength is returned for generation lengths below one
	ErrInvalidLength = errors.New("generation length must be at least 1")

	// ErrInvalidOrder is returned for chain orders other than 1 and 2
	ErrInvalidOrder = errors.New("chain order must be 1 or 2")
)

// SymbolError reports where an unknown symbol was found.
type SymbolError struct {
	Symbol   int
	Sequence int // index of the sequence in the batch
	Position int // index of the symbol inside the sequence
}

func (e *SymbolError) Error() string {
	return fmt.Sprintf("state '%d' not in the state space (sequence %d, position %d)",
		e.Symbol, e.Sequence, e.Position)
}

func (e *SymbolError) Unwrap() error {
	return ErrUnknownSymbol
}

func invalidStart(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidStart, fmt.Sprintf(format, args...))
}
