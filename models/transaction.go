package models

// TransactionType classifies what moved the money
type TransactionType string

const (
	TransactionTypeTaskReward          TransactionType = "task_reward"
	TransactionTypeTournamentWin       TransactionType = "tournament_win"
	TransactionTypeReferralBonus       TransactionType = "referral_bonus"
	TransactionTypeSubscriptionPayment TransactionType = "subscription_payment"
	TransactionTypeWithdrawal          TransactionType = "withdrawal"
	TransactionTypeTransfer            TransactionType = "transfer" // direction lives in metadata
)

// TransactionStatus is the processing state of a ledger entry
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// Transaction is an append-only ledger entry. Amount is always positive;
// type (plus metadata for transfers) implies direction. Only status and
// metadata change after creation, and only during withdrawal processing.
type Transaction struct {
	ID          string            `gorm:"primaryKey;type:uuid" json:"id"`
	WalletID    string            `gorm:"index;not null" json:"wallet_id"`
	Wallet      Wallet            `gorm:"foreignKey:WalletID" json:"-"`
	Type        TransactionType   `gorm:"type:varchar(40);index;not null" json:"type"`
	Amount      float64           `gorm:"type:decimal(20,2);not null" json:"amount"`
	Description string            `gorm:"type:varchar(255)" json:"description"`
	Status      TransactionStatus `gorm:"type:varchar(20);index;not null" json:"status"`
	Metadata    JSONMap           `gorm:"type:jsonb" json:"metadata,omitempty"`

	Timestamps
}
