package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Conceptual-Machines/magda-markov/internal/logger"
	"github.com/Conceptual-Machines/magda-markov/internal/markov"
	"github.com/Conceptual-Machines/magda-markov/internal/metrics"
	"github.com/Conceptual-Machines/magda-markov/internal/models"
	"github.com/Conceptual-Machines/magda-markov/internal/music"
	"golang.org/x/sync/errgroup"
)

// Composer turns training material into a new melody: one chain learns
// pitches, another learns durations, and their outputs are laid end to end.
type Composer struct {
	chains          *ChainService
	recorder        metrics.Recorder
	limits          Limits
	defaultVelocity int
}

func NewComposer(chains *ChainService, recorder metrics.Recorder, limits Limits, defaultVelocity int) *Composer {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	if defaultVelocity == 0 {
		defaultVelocity = music.DefaultVelocity
	}
	return &Composer{
		chains:          chains,
		recorder:        recorder,
		limits:          limits,
		defaultVelocity: defaultVelocity,
	}
}

// ComposeInput selects the training material. Either both chain ids are set,
// or any mix of messages, events and explicit sequences is given.
type ComposeInput struct {
	Messages  []music.Message   `json:"messages"`
	Events    []music.NoteEvent `json:"events"`
	Pitches   [][]int           `json:"pitches"`
	Notes     [][]string        `json:"notes"`
	Durations [][]int           `json:"durations"`

	PitchChainID    string `json:"pitch_chain_id"`
	DurationChainID string `json:"duration_chain_id"`

	Order    int    `json:"order"`
	Length   int    `json:"length"`
	Seed     *int64 `json:"seed"`
	Strategy string `json:"strategy"`
	Velocity int    `json:"velocity"`
}

// Composition is a generated melody. Seed reproduces it.
type Composition struct {
	Events     []music.NoteEvent `json:"events"`
	Pitches    []int             `json:"pitches"`
	Durations  []int             `json:"durations"`
	Seed       int64             `json:"seed"`
	TotalTicks int               `json:"total_ticks"`
}

// Compose fits (or loads) a pitch chain and a duration chain and generates
// from both with the same seed.
func (c *Composer) Compose(ctx context.Context, in ComposeInput) (*Composition, error) {
	velocity := in.Velocity
	if velocity == 0 {
		velocity = c.defaultVelocity
	}
	if err := music.ValidateVelocity(velocity); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if in.Length < 1 {
		return nil, fmt.Errorf("%w: got %d", markov.ErrInvalidLength, in.Length)
	}
	if c.limits.MaxGenerationLength > 0 && in.Length > c.limits.MaxGenerationLength {
		return nil, fmt.Errorf("%w: length %d exceeds limit %d", ErrInvalidInput, in.Length, c.limits.MaxGenerationLength)
	}
	strategy, err := markov.ParseStrategy(in.Strategy)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	seed := time.Now().UnixNano()
	if in.Seed != nil {
		seed = *in.Seed
	}

	start := time.Now()
	var pitches, durations []int
	if in.PitchChainID != "" || in.DurationChainID != "" {
		pitches, durations, err = c.fromStoredChains(ctx, in, seed)
	} else {
		pitches, durations, err = c.fromTraining(ctx, in, seed, strategy)
	}
	c.recorder.RecordGeneration(ctx, "composition", in.Order, len(pitches), time.Since(start), err == nil)
	if err != nil {
		return nil, err
	}

	events := music.BuildEvents(pitches, durations, velocity)
	n := min(len(pitches), len(durations))

	logger.Info("Composition generated", logger.Fields{
		"notes":       n,
		"requested":   in.Length,
		"seed":        seed,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return &Composition{
		Events:     events,
		Pitches:    pitches[:n],
		Durations:  durations[:n],
		Seed:       seed,
		TotalTicks: music.TotalTicks(events),
	}, nil
}

func (c *Composer) fromStoredChains(ctx context.Context, in ComposeInput, seed int64) ([]int, []int, error) {
	if in.PitchChainID == "" || in.DurationChainID == "" {
		return nil, nil, fmt.Errorf("%w: pitch_chain_id and duration_chain_id go together", ErrInvalidInput)
	}
	if c.chains == nil {
		return nil, nil, errors.New("composer has no chain service")
	}

	gen := GenerateInput{Length: in.Length, Seed: &seed, Strategy: in.Strategy}
	pitches, err := c.chains.GenerateKind(ctx, in.PitchChainID, models.KindPitch, gen)
	if err != nil {
		return nil, nil, fmt.Errorf("pitch chain: %w", err)
	}
	durations, err := c.chains.GenerateKind(ctx, in.DurationChainID, models.KindDuration, gen)
	if err != nil {
		return nil, nil, fmt.Errorf("duration chain: %w", err)
	}
	if err := music.ValidatePitches(pitches); err != nil {
		return nil, nil, fmt.Errorf("%w: pitch chain: %w", ErrInvalidInput, err)
	}
	if err := music.ValidateDurations(durations); err != nil {
		return nil, nil, fmt.Errorf("%w: duration chain: %w", ErrInvalidInput, err)
	}
	return pitches, durations, nil
}

func (c *Composer) fromTraining(ctx context.Context, in ComposeInput, seed int64, strategy markov.Strategy) ([]int, []int, error) {
	pitchSeqs, durationSeqs, err := collectSequences(in)
	if err != nil {
		return nil, nil, err
	}

	order := in.Order
	if order == 0 {
		order = 1
	}

	var pitchChain, durationChain markov.Chain
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pitchChain, err = c.train(gctx, order, models.KindPitch, pitchSeqs, markov.PitchWeighting)
		if err != nil {
			return fmt.Errorf("pitch chain: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		durationChain, err = c.train(gctx, order, models.KindDuration, durationSeqs, markov.DurationWeighting)
		if err != nil {
			return fmt.Errorf("duration chain: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	opts := markov.GenerateOptions{Length: in.Length, Seed: &seed, Strategy: strategy}
	pitches, err := pitchChain.Generate(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("pitch chain: %w", err)
	}
	durations, err := durationChain.Generate(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("duration chain: %w", err)
	}
	return pitches, durations, nil
}

func (c *Composer) train(ctx context.Context, order int, kind string, sequences [][]int, w markov.Weighting) (markov.Chain, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	space, err := markov.StateSpaceFromSequences(sequences...)
	if err != nil {
		return nil, err
	}
	if c.limits.MaxStates > 0 && space.Len() > c.limits.MaxStates {
		return nil, fmt.Errorf("%w: %d states exceeds limit %d", ErrInvalidInput, space.Len(), c.limits.MaxStates)
	}
	chain, err := markov.New(order, space)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	err = chain.Fit(sequences, w)
	c.recorder.RecordFit(ctx, kind, order, time.Since(start), err == nil)
	if err != nil {
		return nil, err
	}
	return chain, nil
}

// collectSequences gathers pitch and duration streams from every source in
// the input and validates them.
func collectSequences(in ComposeInput) ([][]int, [][]int, error) {
	pitchSeqs := append([][]int(nil), in.Pitches...)
	durationSeqs := append([][]int(nil), in.Durations...)

	for i, names := range in.Notes {
		p, err := music.ParseNoteNames(names)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: notes[%d]: %w", ErrInvalidInput, i, err)
		}
		pitchSeqs = append(pitchSeqs, p)
	}

	events := in.Events
	if len(in.Messages) > 0 {
		paired, err := music.PairMessages(in.Messages)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		events = append(append([]music.NoteEvent(nil), events...), paired...)
	}
	if len(events) > 0 {
		p, d := music.ExtractSequences(events)
		if len(p) > 0 {
			pitchSeqs = append(pitchSeqs, p)
			durationSeqs = append(durationSeqs, d)
		}
	}

	if len(pitchSeqs) == 0 || len(durationSeqs) == 0 {
		return nil, nil, fmt.Errorf("%w: no pitch or duration material to learn from", ErrInvalidInput)
	}
	for _, seq := range pitchSeqs {
		if err := music.ValidatePitches(seq); err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
	}
	for _, seq := range durationSeqs {
		if err := music.ValidateDurations(seq); err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
	}
	return pitchSeqs, durationSeqs, nil
}
