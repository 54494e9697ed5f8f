package domain

import (
	"time"

	"github.com/google/uuid"
)

// FreezeRecord is a hold on part of a wallet's balance. Active records sum
// to the wallet's frozen balance.
type FreezeRecord struct {
	ID         uuid.UUID  `json:"id"`
	WalletID   uuid.UUID  `json:"wallet_id"`
	Amount     int64      `json:"amount"`
	Reason     string     `json:"reason"`
	PlacedBy   Actor      `json:"placed_by"`
	PlacedAt   time.Time  `json:"placed_at"`
	ReleasedAt *time.Time `json:"released_at,omitempty"`
	ReleasedBy *Actor     `json:"released_by,omitempty"`
	ReplacesID *uuid.UUID `json:"replaces_id,omitempty"`
}

func (f *FreezeRecord) IsActive() bool {
	return f.ReleasedAt == nil
}

// FreezeRelease marks a record released inside a commit. The store must
// fail with ErrFreezeAlreadyReleased if the record is no longer active.
type FreezeRelease struct {
	FreezeID   uuid.UUID
	ReleasedAt time.Time
	ReleasedBy Actor
}
