package models

import "time"

// ReadingSession tracks one user reading one article. The unique index on
// (user, article) means an article can earn its reward at most once per
// user no matter how often the complete endpoint is hit.
type ReadingSession struct {
	ID                  string     `gorm:"primaryKey;type:uuid" json:"id"`
	UserID              string     `gorm:"index;not null;uniqueIndex:idx_reading_once" json:"user_id"`
	ArticleID           string     `gorm:"index;not null;uniqueIndex:idx_reading_once" json:"article_id"`
	Article             Article    `gorm:"foreignKey:ArticleID" json:"-"`
	StartedAt           time.Time  `gorm:"not null" json:"started_at"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	SecondsRead         int        `json:"seconds_read"`
	RewardPaid          bool       `gorm:"default:false" json:"reward_paid"`
	RewardTransactionID *string    `gorm:"index" json:"reward_transaction_id,omitempty"`

	Timestamps
}
