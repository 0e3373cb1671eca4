package models

// ReferralBonusType says which kind of event triggered the bonus
type ReferralBonusType string

const (
	ReferralBonusTypeSubscription ReferralBonusType = "subscription"
	ReferralBonusTypeTaskReward   ReferralBonusType = "task_reward"
)

type ReferralBonusStatus string

const (
	ReferralBonusStatusPending ReferralBonusStatus = "pending"
	ReferralBonusStatusPaid    ReferralBonusStatus = "paid"
	ReferralBonusStatusFailed  ReferralBonusStatus = "failed"
)

// ReferralBonus records one payout up the referral chain. The composite
// unique index enforces at most one bonus per (referrer, referred user,
// type) — a second subscription by the same user must not pay the chain
// again.
type ReferralBonus struct {
	ID             string            `gorm:"primaryKey;type:uuid" json:"id"`
	ReferrerID     string            `gorm:"index;not null;uniqueIndex:idx_bonus_attribution" json:"referrer_id"`          // ExternalUserID of the ancestor credited
	ReferredUserID string            `gorm:"index;not null;uniqueIndex:idx_bonus_attribution" json:"referred_user_id"`     // ExternalUserID of the user who triggered the event
	Type           ReferralBonusType `gorm:"type:varchar(30);not null;uniqueIndex:idx_bonus_attribution" json:"type"`
	Level          int               `gorm:"not null" json:"level"` // 0 = direct referral
	BonusPercent   float64           `gorm:"type:decimal(6,4);not null" json:"bonus_percent"`
	Amount         float64           `gorm:"type:decimal(20,2);not null" json:"amount"`
	Status         ReferralBonusStatus `gorm:"type:varchar(20);index;not null" json:"status"`
	Metadata       JSONMap           `gorm:"type:jsonb" json:"metadata,omitempty"`

	Timestamps
}
