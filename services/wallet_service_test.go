package services

import (
	"fmt"
	"testing"
	"time"

	"learn-earn-platform/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:wallet_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.PlatformUser{},
		&models.Wallet{},
		&models.Transaction{},
		&models.ReferralBonus{},
		&models.Article{},
		&models.ReadingSession{},
		&models.WalletStatsSnapshot{},
	))
	return db
}

func createWallet(t *testing.T, db *gorm.DB, userID string, balance, locked float64) *models.Wallet {
	t.Helper()
	wallet := &models.Wallet{
		ID:      uuid.NewString(),
		UserID:  userID,
		Balance: balance,
		Locked:  locked,
	}
	require.NoError(t, db.Create(wallet).Error)
	return wallet
}

func createUser(t *testing.T, db *gorm.DB, externalID, email string, referredBy *string) *models.PlatformUser {
	t.Helper()
	user := &models.PlatformUser{
		ID:             uuid.NewString(),
		ExternalUserID: externalID,
		Username:       externalID,
		Email:          email,
		ReferredByID:   referredBy,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func reloadWallet(t *testing.T, db *gorm.DB, userID string) *models.Wallet {
	t.Helper()
	var wallet models.Wallet
	require.NoError(t, db.Where("user_id = ?", userID).First(&wallet).Error)
	return &wallet
}

func TestAddFunds(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db)
	createWallet(t, db, "user-1", 10, 0)

	txn, err := svc.AddFunds("user-1", 5.25, models.TransactionTypeTaskReward, "task payout", nil)
	require.NoError(t, err)
	require.Equal(t, models.TransactionStatusCompleted, txn.Status)
	require.InDelta(t, 5.25, txn.Amount, 1e-9)

	wallet := reloadWallet(t, db, "user-1")
	require.InDelta(t, 15.25, wallet.Balance, 1e-9)
}

func TestAddFundsRejectsNonPositiveAmount(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db)
	createWallet(t, db, "user-1", 10, 0)

	_, err := svc.AddFunds("user-1", 0, models.TransactionTypeTaskReward, "zero", nil)
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.AddFunds("user-1", -3, models.TransactionTypeTaskReward, "negative", nil)
	require.ErrorIs(t, err, ErrInvalidAmount)

	wallet := reloadWallet(t, db, "user-1")
	require.InDelta(t, 10, wallet.Balance, 1e-9)
}

func TestAddFundsMissingWallet(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db)

	_, err := svc.AddFunds("ghost", 5, models.TransactionTypeTaskReward, "no wallet", nil)
	require.ErrorIs(t, err, ErrWalletNotFound)
}

func TestDeductFunds(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db)
	createWallet(t, db, "user-1", 20, 0)

	_, err := svc.DeductFunds("user-1", 7.5, models.TransactionTypeSubscriptionPayment, "plan", nil)
	require.NoError(t, err)

	wallet := reloadWallet(t, db, "user-1")
	require.InDelta(t, 12.5, wallet.Balance, 1e-9)
}

func TestDeductFundsInsufficientBalance(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db)
	createWallet(t, db, "user-1", 5, 0)

	_, err := svc.DeductFunds("user-1", 10, models.TransactionTypeSubscriptionPayment, "plan", nil)
	require.ErrorIs(t, err, ErrInsufficientFunds)

	// nothing written
	wallet := reloadWallet(t, db, "user-1")
	require.InDelta(t, 5, wallet.Balance, 1e-9)
	var count int64
	require.NoError(t, db.Model(&models.Transaction{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestLockAndUnlockFundsConserveTotal(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db)
	createWallet(t, db, "user-1", 100, 0)

	_, err := svc.LockFunds("user-1", 30, "hold", nil)
	require.NoError(t, err)

	wallet := reloadWallet(t, db, "user-1")
	require.InDelta(t, 70, wallet.Balance, 1e-9)
	require.InDelta(t, 30, wallet.Locked, 1e-9)

	_, err = svc.UnlockFunds("user-1", 30, "release", nil)
	require.NoError(t, err)

	wallet = reloadWallet(t, db, "user-1")
	require.InDelta(t, 100, wallet.Balance, 1e-9)
	require.InDelta(t, 0, wallet.Locked, 1e-9)
}

func TestLockUnlockLeaveCallerMetadataAlone(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db)
	createWallet(t, db, "user-1", 100, 0)

	meta := models.JSONMap{"reason": "payout hold"}
	lockTxn, err := svc.LockFunds("user-1", 30, "hold", meta)
	require.NoError(t, err)
	require.Equal(t, "lock", lockTxn.Metadata["operation"])
	require.Equal(t, "payout hold", lockTxn.Metadata["reason"])
	require.NotContains(t, meta, "operation")

	unlockTxn, err := svc.UnlockFunds("user-1", 30, "release", meta)
	require.NoError(t, err)
	require.Equal(t, "unlock", unlockTxn.Metadata["operation"])
	require.NotContains(t, meta, "operation")
}

func TestUnlockMoreThanLocked(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db)
	createWallet(t, db, "user-1", 50, 10)

	_, err := svc.UnlockFunds("user-1", 25, "release", nil)
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestRequestWithdrawalHoldsFunds(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db)
	createWallet(t, db, "user-1", 100.50, 25.00)

	txn, newBalance, err := svc.RequestWithdrawal("user-1", 50, "bank_transfer", "NL91ABNA0417164300")
	require.NoError(t, err)
	require.InDelta(t, 50.50, newBalance, 1e-9)
	require.Equal(t, models.TransactionStatusPending, txn.Status)
	require.Equal(t, models.TransactionTypeWithdrawal, txn.Type)
	require.Equal(t, "bank_transfer", txn.Metadata["payment_method"])

	wallet := reloadWallet(t, db, "user-1")
	require.InDelta(t, 50.50, wallet.Balance, 1e-9)
	require.InDelta(t, 75.00, wallet.Locked, 1e-9)
}

func TestRequestWithdrawalInsufficientBalance(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db)
	createWallet(t, db, "user-1", 100.50, 25.00)

	_, _, err := svc.RequestWithdrawal("user-1", 200, "bank_transfer", "x")
	require.ErrorIs(t, err, ErrInsufficientFunds)

	wallet := reloadWallet(t, db, "user-1")
	require.InDelta(t, 100.50, wallet.Balance, 1e-9)
	require.InDelta(t, 25.00, wallet.Locked, 1e-9)
}

func TestRequestWithdrawalBelowMinimum(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db)
	createWallet(t, db, "user-1", 100, 0)

	_, _, err := svc.RequestWithdrawal("user-1", 0.50, "bank_transfer", "x")
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestProcessWithdrawalApprove(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db)
	createWallet(t, db, "user-1", 100, 0)

	txn, _, err := svc.RequestWithdrawal("user-1", 40, "paypal", "u@example.com")
	require.NoError(t, err)

	processed, err := svc.ProcessWithdrawal(txn.ID, true, "payout sent")
	require.NoError(t, err)
	require.Equal(t, models.TransactionStatusCompleted, processed.Status)
	require.Equal(t, "payout sent", processed.Metadata["admin_notes"])

	// approved: hold released, money left the platform
	wallet := reloadWallet(t, db, "user-1")
	require.InDelta(t, 60, wallet.Balance, 1e-9)
	require.InDelta(t, 0, wallet.Locked, 1e-9)
}

func TestProcessWithdrawalReject(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db)
	createWallet(t, db, "user-1", 100, 0)

	txn, _, err := svc.RequestWithdrawal("user-1", 40, "paypal", "u@example.com")
	require.NoError(t, err)

	processed, err := svc.ProcessWithdrawal(txn.ID, false, "details mismatch")
	require.NoError(t, err)
	require.Equal(t, models.TransactionStatusFailed, processed.Status)

	// rejected: hold returned to the spendable balance
	wallet := reloadWallet(t, db, "user-1")
	require.InDelta(t, 100, wallet.Balance, 1e-9)
	require.InDelta(t, 0, wallet.Locked, 1e-9)
}

func TestProcessWithdrawalWrongState(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db)
	createWallet(t, db, "user-1", 100, 0)

	txn, _, err := svc.RequestWithdrawal("user-1", 40, "paypal", "u@example.com")
	require.NoError(t, err)

	_, err = svc.ProcessWithdrawal(txn.ID, true, "")
	require.NoError(t, err)

	// already settled
	_, err = svc.ProcessWithdrawal(txn.ID, true, "")
	require.ErrorIs(t, err, ErrInvalidState)

	// a completed credit is not a processable withdrawal either
	credit, err := svc.AddFunds("user-1", 5, models.TransactionTypeTaskReward, "task", nil)
	require.NoError(t, err)
	_, err = svc.ProcessWithdrawal(credit.ID, true, "")
	require.ErrorIs(t, err, ErrInvalidState)

	_, err = svc.ProcessWithdrawal("does-not-exist", true, "")
	require.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestTransferFunds(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db)
	createUser(t, db, "alice", "alice@example.com", nil)
	createUser(t, db, "bob", "bob@example.com", nil)
	createWallet(t, db, "alice", 50, 0)
	receiverWallet := createWallet(t, db, "bob", 10, 0)

	txn, err := svc.TransferFunds("alice", "bob@example.com", 20, "dinner split")
	require.NoError(t, err)
	require.Equal(t, models.TransactionTypeTransfer, txn.Type)
	require.Equal(t, "outgoing", txn.Metadata["direction"])
	require.Equal(t, "bob", txn.Metadata["counterparty"])

	require.InDelta(t, 30, reloadWallet(t, db, "alice").Balance, 1e-9)
	require.InDelta(t, 30, reloadWallet(t, db, "bob").Balance, 1e-9)

	// both ledger legs exist
	var legs int64
	require.NoError(t, db.Model(&models.Transaction{}).
		Where("type = ?", models.TransactionTypeTransfer).
		Count(&legs).Error)
	require.EqualValues(t, 2, legs)

	var incoming models.Transaction
	require.NoError(t, db.Where("wallet_id = ? AND type = ?", receiverWallet.ID, models.TransactionTypeTransfer).
		First(&incoming).Error)
	require.Equal(t, "incoming", incoming.Metadata["direction"])
}

func TestTransferToUnknownRecipient(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db)
	createUser(t, db, "alice", "alice@example.com", nil)
	createWallet(t, db, "alice", 50, 0)

	_, err := svc.TransferFunds("alice", "nobody@example.com", 20, "oops")
	require.ErrorIs(t, err, ErrRecipientNotFound)

	// no state change at all
	require.InDelta(t, 50, reloadWallet(t, db, "alice").Balance, 1e-9)
	var count int64
	require.NoError(t, db.Model(&models.Transaction{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestTransferToSelf(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db)
	createUser(t, db, "alice", "alice@example.com", nil)
	createWallet(t, db, "alice", 50, 0)

	_, err := svc.TransferFunds("alice", "alice@example.com", 20, "loop")
	require.ErrorIs(t, err, ErrSelfTransfer)
}

func TestTransferInsufficientBalance(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db)
	createUser(t, db, "alice", "alice@example.com", nil)
	createUser(t, db, "bob", "bob@example.com", nil)
	createWallet(t, db, "alice", 5, 0)
	createWallet(t, db, "bob", 0, 0)

	_, err := svc.TransferFunds("alice", "bob@example.com", 20, "too much")
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.InDelta(t, 0, reloadWallet(t, db, "bob").Balance, 1e-9)
}

func TestEnsureWalletIdempotent(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db)

	first, err := svc.EnsureWallet("user-1")
	require.NoError(t, err)

	again, err := svc.EnsureWallet("user-1")
	require.NoError(t, err)
	require.Equal(t, first.ID, again.ID)

	var count int64
	require.NoError(t, db.Model(&models.Wallet{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestComputeStatsAndSnapshot(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db)
	createWallet(t, db, "user-1", 100, 0)
	createWallet(t, db, "user-2", 40, 0)

	_, _, err := svc.RequestWithdrawal("user-1", 30, "paypal", "x")
	require.NoError(t, err)

	stats, err := svc.ComputeStats()
	require.NoError(t, err)
	require.EqualValues(t, 2, stats.TotalWallets)
	require.InDelta(t, 110, stats.TotalBalance, 1e-9)
	require.InDelta(t, 30, stats.TotalLocked, 1e-9)
	require.EqualValues(t, 1, stats.PendingWithdrawals)
	require.InDelta(t, 30, stats.PendingWithdrawalAmount, 1e-9)

	// snapshot twice on the same day upserts a single row
	require.NoError(t, svc.SnapshotStats())
	require.NoError(t, svc.SnapshotStats())
	var count int64
	require.NoError(t, db.Model(&models.WalletStatsSnapshot{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}
