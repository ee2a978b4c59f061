// Package store persists chain snapshots.
package store

import (
	"context"
	"errors"

	"github.com/Conceptual-Machines/magda-markov/internal/models"
)

// ErrNotFound is returned when no record exists for an id
var ErrNotFound = errors.New("chain record not found")

// Store saves and loads chain records
type Store interface {
	// Save inserts the record or replaces the stored one with the same id
	Save(ctx context.Context, rec *models.ChainRecord) error
	Load(ctx context.Context, id string) (*models.ChainRecord, error)
	Delete(ctx context.Context, id string) error
	// List returns records oldest first
	List(ctx context.Context) ([]models.ChainRecord, error)
	Ping(ctx context.Context) error
	Name() string
}
