package models

import "time"

// ArticleStatus indicates the publishing status of an article
type ArticleStatus string

const (
	ArticleStatusDraft     ArticleStatus = "draft"
	ArticleStatusScheduled ArticleStatus = "scheduled"
	ArticleStatusPublished ArticleStatus = "published"
	ArticleStatusArchived  ArticleStatus = "archived"
)

// Article is a piece of learn-and-earn content. Completing a qualifying
// reading session pays ReadingReward through the ledger.
type Article struct {
	ID             string        `gorm:"primaryKey;type:uuid" json:"id"`
	Title          string        `gorm:"not null" json:"title"`
	Slug           string        `gorm:"uniqueIndex;not null" json:"slug"`
	Excerpt        string        `gorm:"type:text" json:"excerpt"`
	Body           string        `gorm:"type:text" json:"body,omitempty"`
	AuthorID       string        `gorm:"index" json:"author_id"`
	WordCount      int           `json:"word_count"`
	ReadingReward  float64       `gorm:"type:decimal(20,2);not null;default:0" json:"reading_reward"`
	MinReadSeconds int           `gorm:"not null;default:0" json:"min_read_seconds"` // completions faster than this don't count
	Status         ArticleStatus `gorm:"type:varchar(20);index;not null;default:'draft'" json:"status"`
	PublishAt      *time.Time    `gorm:"index" json:"publish_at,omitempty"`

	Timestamps
}
