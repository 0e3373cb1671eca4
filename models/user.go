package models

import "time"

// PlatformUser is a local snapshot of user data needed by the wallet and
// referral services. Owned by this service, populated by the profile sync
// worker. ReferredByID is written once at first sight of the user and never
// updated afterwards — a user's referrer is fixed at registration, which is
// what keeps the referral graph a forest.
type PlatformUser struct {
	ID             string  `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string  `gorm:"uniqueIndex;not null" json:"external_user_id"` // the profile service's UUID
	Username       string  `gorm:"index;not null" json:"username"`
	Email          string  `gorm:"index" json:"email,omitempty"`
	ReferredByID   *string `gorm:"index" json:"referred_by_id,omitempty"` // ExternalUserID of the referrer, nil for organic signups

	Timestamps
}

// RemoteUser mirrors the payload shape of the profile service's public
// profiles endpoint (read-only input to the sync worker).
type RemoteUser struct {
	ExternalID   string    `json:"external_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	ReferredByID *string   `json:"referred_by_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
