package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/Conceptual-Machines/magda-markov/internal/database"
	"github.com/Conceptual-Machines/magda-markov/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore keeps records in the chain_records table
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Name() string { return "postgres" }

func (s *GormStore) Ping(ctx context.Context) error {
	return database.Ping(ctx, s.db)
}

func (s *GormStore) Save(ctx context.Context, rec *models.ChainRecord) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"updated_at", "name", "chain_order", "kind", "weighting", "fitted", "num_states", "snapshot",
		}),
	}).Create(rec).Error
	if err != nil {
		return fmt.Errorf("failed to save chain %s: %w", rec.ID, err)
	}
	return nil
}

func (s *GormStore) Load(ctx context.Context, id string) (*models.ChainRecord, error) {
	var rec models.ChainRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load chain %s: %w", id, err)
	}
	return &rec, nil
}

func (s *GormStore) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&models.ChainRecord{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete chain %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) List(ctx context.Context) ([]models.ChainRecord, error) {
	var recs []models.ChainRecord
	if err := s.db.WithContext(ctx).Order("created_at asc").Order("id asc").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list chains: %w", err)
	}
	return recs, nil
}
