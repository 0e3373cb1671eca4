package models

// WalletStatsSnapshot is a daily denormalized aggregate of the wallet
// tables, written by the stats scheduler. SnapshotDate is YYYY-MM-DD.
type WalletStatsSnapshot struct {
	ID                      string  `gorm:"primaryKey;type:uuid" json:"id"`
	SnapshotDate            string  `gorm:"type:varchar(10);uniqueIndex;not null" json:"snapshot_date"`
	TotalWallets            int64   `json:"total_wallets"`
	TotalBalance            float64 `gorm:"type:decimal(20,2)" json:"total_balance"`
	TotalLocked             float64 `gorm:"type:decimal(20,2)" json:"total_locked"`
	PendingWithdrawals      int64   `json:"pending_withdrawals"`
	PendingWithdrawalAmount float64 `gorm:"type:decimal(20,2)" json:"pending_withdrawal_amount"`

	Timestamps
}
