package models

import (
	"time"

	"gorm.io/gorm"
)

// Chain kinds decide the default weighting and the symbol validation applied
// to a chain's sequences.
const (
	KindPitch    = "pitch"    // MIDI note numbers 0-127
	KindDuration = "duration" // tick durations >= 0
	KindGeneric  = "generic"  // any integer symbols
)

// ChainRecord is the persisted form of a Markov chain
type ChainRecord struct {
	ID        string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name      string `json:"name,omitempty"`
	OwnerID   string `gorm:"index" json:"owner_id,omitempty"`
	Order     int    `gorm:"column:chain_order;not null" json:"order"`
	Kind      string `gorm:"not null;index" json:"kind"`
	Weighting string `json:"weighting"`
	Fitted    bool   `gorm:"default:false" json:"fitted"`
	NumStates int    `gorm:"not null" json:"num_states"`
	Snapshot  string `gorm:"type:text;not null" json:"-"` // markov.Snapshot as JSON
}

// ValidKind reports whether kind is one of the known chain kinds
func ValidKind(kind string) bool {
	switch kind {
	case KindPitch, KindDuration, KindGeneric:
		return true
	default:
		return false
	}
}
