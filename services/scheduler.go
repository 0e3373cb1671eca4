package services

import (
	"time"

	"learn-earn-platform/models"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm/clause"
)

// StartPublishScheduler flips due scheduled articles every minute.
func (s *ContentService) StartPublishScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(s.publishDueArticles),
	)
}

// StartStatsScheduler snapshots the platform wallet aggregates once a day.
func (s *WalletService) StartStatsScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(24*time.Hour),
		gocron.NewTask(func() {
			if err := s.SnapshotStats(); err != nil {
				log.Printf("❌ [STATS] snapshot failed: %v", err)
			}
		}),
	)
}

// SnapshotStats writes (or refreshes) today's aggregate row.
func (s *WalletService) SnapshotStats() error {
	stats, err := s.ComputeStats()
	if err != nil {
		return err
	}

	snapshot := models.WalletStatsSnapshot{
		ID:                      uuid.NewString(),
		SnapshotDate:            time.Now().UTC().Format("2006-01-02"),
		TotalWallets:            stats.TotalWallets,
		TotalBalance:            stats.TotalBalance,
		TotalLocked:             stats.TotalLocked,
		PendingWithdrawals:      stats.PendingWithdrawals,
		PendingWithdrawalAmount: stats.PendingWithdrawalAmount,
	}
	if err := s.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "snapshot_date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"total_wallets",
			"total_balance",
			"total_locked",
			"pending_withdrawals",
			"pending_withdrawal_amount",
			"updated_at",
		}),
	}).Create(&snapshot).Error; err != nil {
		return err
	}
	log.Printf("📊 [STATS] snapshot for %s written (%d wallets)", snapshot.SnapshotDate, snapshot.TotalWallets)
	return nil
}
