package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Conceptual-Machines/magda-markov/internal/database"
	"github.com/Conceptual-Machines/magda-markov/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecord(createdAt time.Time) *models.ChainRecord {
	return &models.ChainRecord{
		ID:        uuid.New().String(),
		CreatedAt: createdAt,
		Order:     1,
		Kind:      models.KindPitch,
		Weighting: "pitch",
		NumStates: 3,
		Snapshot:  `{"order":1,"states":[60,62,64]}`,
	}
}

func testStoreContract(t *testing.T, s Store) {
	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))

	base := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	first := newRecord(base)
	second := newRecord(base.Add(time.Minute))

	require.NoError(t, s.Save(ctx, second))
	require.NoError(t, s.Save(ctx, first))

	loaded, err := s.Load(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Kind, loaded.Kind)
	assert.Equal(t, first.Snapshot, loaded.Snapshot)
	assert.False(t, loaded.Fitted)

	// save again replaces the stored record
	first.Fitted = true
	first.Snapshot = `{"order":1,"states":[60,62,64],"fitted":true}`
	require.NoError(t, s.Save(ctx, first))

	loaded, err = s.Load(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, loaded.Fitted)
	assert.Equal(t, first.Snapshot, loaded.Snapshot)

	recs, err := s.List(ctx)
	require.NoError(t, err)
	var ids []string
	for _, rec := range recs {
		if rec.ID == first.ID || rec.ID == second.ID {
			ids = append(ids, rec.ID)
		}
	}
	assert.Equal(t, []string{first.ID, second.ID}, ids)

	require.NoError(t, s.Delete(ctx, first.ID))
	_, err = s.Load(ctx, first.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, first.ID), ErrNotFound)

	require.NoError(t, s.Delete(ctx, second.ID))
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	assert.Equal(t, "memory", s.Name())
	testStoreContract(t, s)
}

func TestMemoryStore_LoadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	rec := newRecord(time.Time{})
	require.NoError(t, s.Save(ctx, rec))
	assert.False(t, rec.CreatedAt.IsZero())

	loaded, err := s.Load(ctx, rec.ID)
	require.NoError(t, err)
	loaded.Kind = models.KindDuration

	again, err := s.Load(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.KindPitch, again.Kind)
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewMemoryStore()
	assert.ErrorIs(t, s.Save(ctx, newRecord(time.Now())), context.Canceled)
	_, err := s.List(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGormStore(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping database test in short mode")
	}
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := database.Connect(url)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	s := NewGormStore(db)
	assert.Equal(t, "postgres", s.Name())
	testStoreContract(t, s)
}
