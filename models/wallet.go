package models

import (
	"time"

	"gorm.io/gorm"
)

// Wallet holds a user's available and locked funds. One row per user,
// created when the user first shows up through the profile sync.
// Only the wallet service mutates it — everything else goes through
// ledger operations so balance/locked never drift from the transaction log.
type Wallet struct {
	ID      string  `gorm:"primaryKey;type:uuid" json:"id"`
	UserID  string  `gorm:"uniqueIndex;not null" json:"user_id"` // ExternalUserID from the profile service
	Balance float64 `gorm:"type:decimal(20,2);not null;default:0" json:"balance"`
	Locked  float64 `gorm:"type:decimal(20,2);not null;default:0" json:"locked"` // funds held for pending withdrawals

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
