package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Conceptual-Machines/magda-markov/internal/logger"
	"github.com/Conceptual-Machines/magda-markov/internal/markov"
	"github.com/Conceptual-Machines/magda-markov/internal/metrics"
	"github.com/Conceptual-Machines/magda-markov/internal/models"
	"github.com/Conceptual-Machines/magda-markov/internal/music"
	"github.com/Conceptual-Machines/magda-markov/internal/store"
	"github.com/google/uuid"
)

var (
	ErrChainNotFound = errors.New("chain not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrForbidden     = errors.New("forbidden")
)

// DefaultTopPairs is how many context pairs a second order table shows
const DefaultTopPairs = 15

// Limits bound the work a single request may ask for
type Limits struct {
	MaxStates           int
	MaxGenerationLength int
}

// Caller identifies who is acting on a chain
type Caller struct {
	ID   string
	Role string
}

// ChainService owns the named chain instances. Mutations on one chain are
// serialized; generations on the same chain may run concurrently.
type ChainService struct {
	store    store.Store
	recorder metrics.Recorder
	limits   Limits

	mu      sync.Mutex
	entries map[string]*chainEntry
}

type chainEntry struct {
	mu      sync.RWMutex
	record  models.ChainRecord
	chain   markov.Chain
	deleted bool
}

func NewChainService(st store.Store, recorder metrics.Recorder, limits Limits) *ChainService {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &ChainService{
		store:    st,
		recorder: recorder,
		limits:   limits,
		entries:  make(map[string]*chainEntry),
	}
}

// CreateInput describes a new chain. States wins over Sequences for the
// state space; Sequences, when present, are fitted immediately.
type CreateInput struct {
	Name      string  `json:"name"`
	Order     int     `json:"order"`
	Kind      string  `json:"kind"`
	States    []int   `json:"states"`
	Sequences [][]int `json:"sequences"`
	Weighting string  `json:"weighting"`
}

// ChainInfo is the public view of a chain
type ChainInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	OwnerID   string    `json:"owner_id,omitempty"`
	Order     int       `json:"order"`
	Kind      string    `json:"kind"`
	Weighting string    `json:"weighting"`
	Fitted    bool      `json:"fitted"`
	NumStates int       `json:"num_states"`
	States    []int     `json:"states,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GenerateInput mirrors markov.GenerateOptions with a textual strategy
type GenerateInput struct {
	Start    []int  `json:"start"`
	Length   int    `json:"length"`
	Seed     *int64 `json:"seed"`
	Strategy string `json:"strategy"`
}

// Table is the transition table view used by heatmap renderers
type Table struct {
	ChainID string             `json:"chain_id"`
	Order   int                `json:"order"`
	States  []int              `json:"states"`
	Matrix  [][]float64        `json:"matrix,omitempty"`
	Pairs   []markov.PairStats `json:"pairs,omitempty"`
}

// Create builds a chain, fits it when sequences are given and persists it
func (s *ChainService) Create(ctx context.Context, caller Caller, in CreateInput) (*ChainInfo, error) {
	if in.Kind == "" {
		in.Kind = models.KindPitch
	}
	if !models.ValidKind(in.Kind) {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidInput, in.Kind)
	}
	if in.Order == 0 {
		in.Order = 1
	}

	var (
		space *markov.StateSpace
		err   error
	)
	if len(in.States) > 0 {
		space, err = markov.NewStateSpace(in.States)
	} else {
		space, err = markov.StateSpaceFromSequences(in.Sequences...)
	}
	if err != nil {
		return nil, err
	}
	if err := s.checkStates(in.Kind, space); err != nil {
		return nil, err
	}

	chain, err := markov.New(in.Order, space)
	if err != nil {
		return nil, err
	}

	if len(in.Sequences) > 0 {
		w, err := weightingFor(in.Kind, in.Weighting)
		if err != nil {
			return nil, err
		}
		start := time.Now()
		err = chain.Fit(in.Sequences, w)
		s.recorder.RecordFit(ctx, in.Kind, in.Order, time.Since(start), err == nil)
		if err != nil {
			return nil, err
		}
	}

	e := &chainEntry{
		record: models.ChainRecord{
			ID:      uuid.New().String(),
			Name:    in.Name,
			OwnerID: caller.ID,
			Order:   in.Order,
			Kind:    in.Kind,
		},
		chain: chain,
	}
	if err := s.persist(ctx, e); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.entries[e.record.ID] = e
	s.mu.Unlock()

	logger.Info("Chain created", logger.Fields{
		"chain_id":   e.record.ID,
		"order":      in.Order,
		"kind":       in.Kind,
		"num_states": space.Len(),
		"fitted":     chain.Fitted(),
	})
	return e.info(), nil
}

// Fit replaces the chain's counts with those learned from sequences
func (s *ChainService) Fit(ctx context.Context, id string, sequences [][]int, weighting string) (*ChainInfo, error) {
	e, err := s.entry(ctx, id)
	if err != nil {
		return nil, err
	}
	w, err := weightingFor(e.record.Kind, weighting)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, e, "fit", len(sequences), func(c markov.Chain) error {
		return c.Fit(sequences, w)
	})
}

// Update adds observations to the chain, fitting it first if needed
func (s *ChainService) Update(ctx context.Context, id string, sequences [][]int) (*ChainInfo, error) {
	e, err := s.entry(ctx, id)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, e, "update", len(sequences), func(c markov.Chain) error {
		// an unfitted chain is fitted with pitch weighting whatever its kind
		return c.Update(sequences)
	})
}

func (s *ChainService) mutate(ctx context.Context, e *chainEntry, op string, numSequences int, fn func(markov.Chain) error) (*ChainInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, fmt.Errorf("%w: %s", ErrChainNotFound, e.record.ID)
	}

	start := time.Now()
	prev := e.chain.Snapshot()

	err := fn(e.chain)
	if err == nil {
		if err = s.persist(ctx, e); err != nil {
			// keep memory and store in agreement
			if restored, rerr := markov.Restore(prev); rerr == nil {
				e.chain = restored
			}
		}
	}

	duration := time.Since(start)
	s.recorder.RecordFit(ctx, e.record.Kind, e.record.Order, duration, err == nil)
	logger.LogChainOperation(ctx, op, e.record.ID, duration, err, logger.Fields{
		"order":     e.record.Order,
		"kind":      e.record.Kind,
		"sequences": numSequences,
	})
	if err != nil {
		return nil, err
	}
	return e.info(), nil
}

// Generate walks the chain. It never changes the chain.
func (s *ChainService) Generate(ctx context.Context, id string, in GenerateInput) ([]int, error) {
	return s.generate(ctx, id, "", in)
}

// GenerateKind is Generate for a chain that must be of the given kind.
func (s *ChainService) GenerateKind(ctx context.Context, id, kind string, in GenerateInput) ([]int, error) {
	return s.generate(ctx, id, kind, in)
}

func (s *ChainService) generate(ctx context.Context, id, kind string, in GenerateInput) ([]int, error) {
	if s.limits.MaxGenerationLength > 0 && in.Length > s.limits.MaxGenerationLength {
		return nil, fmt.Errorf("%w: length %d exceeds limit %d", ErrInvalidInput, in.Length, s.limits.MaxGenerationLength)
	}
	strategy, err := markov.ParseStrategy(in.Strategy)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	e, err := s.entry(ctx, id)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.deleted {
		return nil, fmt.Errorf("%w: %s", ErrChainNotFound, id)
	}
	if kind != "" && e.record.Kind != kind {
		return nil, fmt.Errorf("%w: chain %s is a %s chain, want %s", ErrInvalidInput, id, e.record.Kind, kind)
	}

	start := time.Now()
	seq, err := e.chain.Generate(markov.GenerateOptions{
		Start:    in.Start,
		Length:   in.Length,
		Seed:     in.Seed,
		Strategy: strategy,
	})
	duration := time.Since(start)

	s.recorder.RecordGeneration(ctx, e.record.Kind, e.record.Order, len(seq), duration, err == nil)
	logger.LogChainOperation(ctx, "generate", e.record.ID, duration, err, logger.Fields{
		"requested": in.Length,
		"generated": len(seq),
		"strategy":  strategy.String(),
	})
	if err != nil {
		return nil, err
	}
	return seq, nil
}

// Table returns the normalized transition view. top limits the number of
// context pairs for second order chains; 0 means DefaultTopPairs and a
// negative value means all observed pairs.
func (s *ChainService) Table(ctx context.Context, id string, top int) (*Table, error) {
	e, err := s.entry(ctx, id)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.deleted {
		return nil, fmt.Errorf("%w: %s", ErrChainNotFound, id)
	}

	t := &Table{
		ChainID: e.record.ID,
		Order:   e.chain.Order(),
		States:  e.chain.StateSpace().States(),
	}

	switch c := e.chain.(type) {
	case *markov.FirstOrderChain:
		t.Matrix, err = c.Distribution()
	case *markov.SecondOrderChain:
		if top == 0 {
			top = DefaultTopPairs
		}
		t.Pairs, err = c.TopPairs(top)
	default:
		err = fmt.Errorf("%w: order %d", markov.ErrInvalidOrder, e.chain.Order())
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Get returns one chain including its state space
func (s *ChainService) Get(ctx context.Context, id string) (*ChainInfo, error) {
	e, err := s.entry(ctx, id)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.deleted {
		return nil, fmt.Errorf("%w: %s", ErrChainNotFound, id)
	}
	return e.info(), nil
}

// List returns the chains visible to caller, oldest first, without state
// spaces. Admins see every chain; others see their own and unowned ones.
func (s *ChainService) List(ctx context.Context, caller Caller) ([]ChainInfo, error) {
	recs, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]ChainInfo, 0, len(recs))
	for _, rec := range recs {
		if !canSee(caller, rec) {
			continue
		}
		out = append(out, infoFromRecord(rec))
	}
	return out, nil
}

func canSee(caller Caller, rec models.ChainRecord) bool {
	return rec.OwnerID == "" || rec.OwnerID == caller.ID || models.CanDelete(caller.Role)
}

// Delete removes a chain. Only its owner or an admin may delete it.
func (s *ChainService) Delete(ctx context.Context, caller Caller, id string) error {
	e, err := s.entry(ctx, id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return fmt.Errorf("%w: %s", ErrChainNotFound, id)
	}

	if e.record.OwnerID != "" && e.record.OwnerID != caller.ID && !models.CanDelete(caller.Role) {
		return fmt.Errorf("%w: chain %s belongs to another user", ErrForbidden, id)
	}

	if err := s.store.Delete(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	e.deleted = true

	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()

	logger.Info("Chain deleted", logger.Fields{"chain_id": id})
	return nil
}

// Stats counts the chains currently loaded in memory
type Stats struct {
	Loaded      int `json:"loaded"`
	Fitted      int `json:"fitted"`
	FirstOrder  int `json:"first_order"`
	SecondOrder int `json:"second_order"`
}

func (s *ChainService) Stats() Stats {
	s.mu.Lock()
	entries := make([]*chainEntry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.Unlock()

	var st Stats
	for _, e := range entries {
		e.mu.RLock()
		if !e.deleted {
			st.Loaded++
			if e.chain.Fitted() {
				st.Fitted++
			}
			if e.chain.Order() == 1 {
				st.FirstOrder++
			} else {
				st.SecondOrder++
			}
		}
		e.mu.RUnlock()
	}
	return st
}

// Ping reports whether the backing store is reachable
func (s *ChainService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// StoreName names the backing store
func (s *ChainService) StoreName() string {
	return s.store.Name()
}

// entry returns the cached chain or restores it from the store
func (s *ChainService) entry(ctx context.Context, id string) (*chainEntry, error) {
	s.mu.Lock()
	e, ok := s.entries[id]
	s.mu.Unlock()
	if ok {
		return e, nil
	}

	rec, err := s.store.Load(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrChainNotFound, id)
		}
		return nil, err
	}

	var snap markov.Snapshot
	if err := json.Unmarshal([]byte(rec.Snapshot), &snap); err != nil {
		return nil, fmt.Errorf("failed to decode chain %s: %w", id, err)
	}
	chain, err := markov.Restore(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to restore chain %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.entries[id]; ok {
		return existing, nil
	}
	e = &chainEntry{record: *rec, chain: chain}
	s.entries[id] = e
	return e, nil
}

// persist saves the chain snapshot; e.record only changes once the store accepted it
func (s *ChainService) persist(ctx context.Context, e *chainEntry) error {
	snap := e.chain.Snapshot()
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode chain %s: %w", e.record.ID, err)
	}

	rec := e.record
	rec.Snapshot = string(data)
	rec.Fitted = snap.Fitted
	rec.Weighting = snap.Weighting
	rec.NumStates = len(snap.States)

	if err := s.store.Save(ctx, &rec); err != nil {
		return err
	}
	e.record = rec
	return nil
}

func (s *ChainService) checkStates(kind string, space *markov.StateSpace) error {
	if s.limits.MaxStates > 0 && space.Len() > s.limits.MaxStates {
		return fmt.Errorf("%w: %d states exceeds limit %d", ErrInvalidInput, space.Len(), s.limits.MaxStates)
	}
	if err := validateSymbols(kind, space.States()); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}

func (e *chainEntry) info() *ChainInfo {
	info := infoFromRecord(e.record)
	info.States = e.chain.StateSpace().States()
	return &info
}

func infoFromRecord(rec models.ChainRecord) ChainInfo {
	return ChainInfo{
		ID:        rec.ID,
		Name:      rec.Name,
		OwnerID:   rec.OwnerID,
		Order:     rec.Order,
		Kind:      rec.Kind,
		Weighting: rec.Weighting,
		Fitted:    rec.Fitted,
		NumStates: rec.NumStates,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

// weightingFor picks the requested weighting or the kind's default
func weightingFor(kind, weighting string) (markov.Weighting, error) {
	if weighting == "" {
		if kind == models.KindDuration {
			return markov.DurationWeighting, nil
		}
		return markov.PitchWeighting, nil
	}
	w, err := markov.ParseWeighting(weighting)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return w, nil
}

func validateSymbols(kind string, symbols []int) error {
	switch kind {
	case models.KindPitch:
		return music.ValidatePitches(symbols)
	case models.KindDuration:
		return music.ValidateDurations(symbols)
	}
	return nil
}
