package services

import (
	"errors"
	"strings"
	"time"

	"learn-earn-platform/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ledger failure modes. Every mutating operation below runs inside one DB
// transaction: wallet read (locked), invariant check, wallet write,
// transaction-log write. On any error the whole unit of work rolls back.
var (
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidState        = errors.New("transaction is not in a processable state")
	ErrSelfTransfer        = errors.New("cannot transfer funds to your own wallet")
	ErrRecipientNotFound   = errors.New("recipient not found")
)

// MinWithdrawalAmount is the smallest withdrawal the platform accepts.
const MinWithdrawalAmount = 1.0

type WalletService struct {
	DB *gorm.DB
}

func NewWalletService(db *gorm.DB) *WalletService {
	return &WalletService{DB: db}
}

// forUpdate applies a row lock where the dialect supports it. SQLite (used
// in tests) rejects FOR UPDATE and serializes writers on its own.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func (s *WalletService) walletForUpdate(tx *gorm.DB, userID string) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := forUpdate(tx).Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

// EnsureWallet creates the wallet row for a newly synced user (idempotent).
// Ledger operations never lazy-create: a missing wallet is always an error.
func (s *WalletService) EnsureWallet(userID string) (*models.Wallet, error) {
	var wallet models.Wallet
	err := s.DB.Where("user_id = ?", userID).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		wallet = models.Wallet{ID: uuid.NewString(), UserID: userID}
		if err := s.DB.Create(&wallet).Error; err != nil {
			return nil, err
		}
		return &wallet, nil
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// AddFundsTx credits a wallet inside the caller's transaction, so callers
// (referral engine, reading rewards) can make the credit atomic with their
// own row writes.
func (s *WalletService) AddFundsTx(tx *gorm.DB, userID string, amount float64, txType models.TransactionType, description string, metadata models.JSONMap) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	wallet, err := s.walletForUpdate(tx, userID)
	if err != nil {
		return nil, err
	}
	if err := tx.Model(wallet).Update("balance", wallet.Balance+amount).Error; err != nil {
		return nil, err
	}
	txn := &models.Transaction{
		ID:          uuid.NewString(),
		WalletID:    wallet.ID,
		Type:        txType,
		Amount:      amount,
		Description: description,
		Status:      models.TransactionStatusCompleted,
		Metadata:    metadata,
	}
	if err := tx.Create(txn).Error; err != nil {
		return nil, err
	}
	return txn, nil
}

// AddFunds credits a wallet: balance += amount, one completed transaction.
func (s *WalletService) AddFunds(userID string, amount float64, txType models.TransactionType, description string, metadata models.JSONMap) (*models.Transaction, error) {
	var txn *models.Transaction
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		txn, err = s.AddFundsTx(tx, userID, amount, txType, description, metadata)
		return err
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// DeductFundsTx debits a wallet inside the caller's transaction.
func (s *WalletService) DeductFundsTx(tx *gorm.DB, userID string, amount float64, txType models.TransactionType, description string, metadata models.JSONMap) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	wallet, err := s.walletForUpdate(tx, userID)
	if err != nil {
		return nil, err
	}
	if wallet.Balance < amount {
		return nil, ErrInsufficientFunds
	}
	if err := tx.Model(wallet).Update("balance", wallet.Balance-amount).Error; err != nil {
		return nil, err
	}
	txn := &models.Transaction{
		ID:          uuid.NewString(),
		WalletID:    wallet.ID,
		Type:        txType,
		Amount:      amount,
		Description: description,
		Status:      models.TransactionStatusCompleted,
		Metadata:    metadata,
	}
	if err := tx.Create(txn).Error; err != nil {
		return nil, err
	}
	return txn, nil
}

// DeductFunds debits a wallet: balance -= amount, one completed transaction.
func (s *WalletService) DeductFunds(userID string, amount float64, txType models.TransactionType, description string, metadata models.JSONMap) (*models.Transaction, error) {
	var txn *models.Transaction
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		txn, err = s.DeductFundsTx(tx, userID, amount, txType, description, metadata)
		return err
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// LockFunds moves amount from balance to locked and records a pending
// withdrawal-shaped transaction.
func (s *WalletService) LockFunds(userID string, amount float64, description string, metadata models.JSONMap) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	var txn *models.Transaction
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		wallet, err := s.walletForUpdate(tx, userID)
		if err != nil {
			return err
		}
		if wallet.Balance < amount {
			return ErrInsufficientFunds
		}
		if err := tx.Model(wallet).Updates(map[string]interface{}{
			"balance": wallet.Balance - amount,
			"locked":  wallet.Locked + amount,
		}).Error; err != nil {
			return err
		}
		// annotate a copy, never the caller's map
		annotated := models.JSONMap{}
		for k, v := range metadata {
			annotated[k] = v
		}
		annotated["operation"] = "lock"
		txn = &models.Transaction{
			ID:          uuid.NewString(),
			WalletID:    wallet.ID,
			Type:        models.TransactionTypeWithdrawal,
			Amount:      amount,
			Description: description,
			Status:      models.TransactionStatusPending,
			Metadata:    annotated,
		}
		return tx.Create(txn).Error
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// UnlockFunds moves amount from locked back to balance. Fails with
// ErrInsufficientFunds when fewer than amount is locked.
func (s *WalletService) UnlockFunds(userID string, amount float64, description string, metadata models.JSONMap) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	var txn *models.Transaction
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		wallet, err := s.walletForUpdate(tx, userID)
		if err != nil {
			return err
		}
		if wallet.Locked < amount {
			return ErrInsufficientFunds
		}
		if err := tx.Model(wallet).Updates(map[string]interface{}{
			"balance": wallet.Balance + amount,
			"locked":  wallet.Locked - amount,
		}).Error; err != nil {
			return err
		}
		// annotate a copy, never the caller's map
		annotated := models.JSONMap{}
		for k, v := range metadata {
			annotated[k] = v
		}
		annotated["operation"] = "unlock"
		txn = &models.Transaction{
			ID:          uuid.NewString(),
			WalletID:    wallet.ID,
			Type:        models.TransactionTypeWithdrawal,
			Amount:      amount,
			Description: description,
			Status:      models.TransactionStatusCompleted,
			Metadata:    annotated,
		}
		return tx.Create(txn).Error
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// RequestWithdrawal takes amount out of the spendable balance and holds it
// in locked until an admin decides. Returns the pending transaction and the
// new spendable balance.
func (s *WalletService) RequestWithdrawal(userID string, amount float64, paymentMethod, accountDetails string) (*models.Transaction, float64, error) {
	if amount < MinWithdrawalAmount {
		return nil, 0, ErrInvalidAmount
	}
	var txn *models.Transaction
	var newBalance float64
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		wallet, err := s.walletForUpdate(tx, userID)
		if err != nil {
			return err
		}
		if wallet.Balance < amount {
			return ErrInsufficientFunds
		}
		newBalance = wallet.Balance - amount
		if err := tx.Model(wallet).Updates(map[string]interface{}{
			"balance": newBalance,
			"locked":  wallet.Locked + amount,
		}).Error; err != nil {
			return err
		}
		txn = &models.Transaction{
			ID:          uuid.NewString(),
			WalletID:    wallet.ID,
			Type:        models.TransactionTypeWithdrawal,
			Amount:      amount,
			Description: "Withdrawal request",
			Status:      models.TransactionStatusPending,
			Metadata: models.JSONMap{
				"payment_method":  paymentMethod,
				"account_details": accountDetails,
				"requested_at":    time.Now().UTC().Format(time.RFC3339),
			},
		}
		return tx.Create(txn).Error
	})
	if err != nil {
		return nil, 0, err
	}
	return txn, newBalance, nil
}

// ProcessWithdrawal settles a pending withdrawal. Approving releases the
// held amount from locked — the money left the platform externally, so no
// balance credit. Rejecting returns the hold to the spendable balance.
func (s *WalletService) ProcessWithdrawal(transactionID string, approve bool, adminNotes string) (*models.Transaction, error) {
	var txn models.Transaction
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).Where("id = ?", transactionID).First(&txn).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTransactionNotFound
			}
			return err
		}
		if txn.Type != models.TransactionTypeWithdrawal || txn.Status != models.TransactionStatusPending {
			return ErrInvalidState
		}
		var wallet models.Wallet
		if err := forUpdate(tx).Where("id = ?", txn.WalletID).First(&wallet).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrWalletNotFound
			}
			return err
		}
		if wallet.Locked < txn.Amount {
			return ErrInsufficientFunds
		}

		updates := map[string]interface{}{"locked": wallet.Locked - txn.Amount}
		status := models.TransactionStatusCompleted
		if !approve {
			updates["balance"] = wallet.Balance + txn.Amount
			status = models.TransactionStatusFailed
		}
		if err := tx.Model(&wallet).Updates(updates).Error; err != nil {
			return err
		}

		metadata := txn.Metadata
		if metadata == nil {
			metadata = models.JSONMap{}
		}
		metadata["processed_at"] = time.Now().UTC().Format(time.RFC3339)
		metadata["admin_notes"] = adminNotes
		if err := tx.Model(&txn).Updates(map[string]interface{}{
			"status":   status,
			"metadata": metadata,
		}).Error; err != nil {
			return err
		}
		txn.Status = status
		txn.Metadata = metadata
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// TransferFunds moves amount between two wallets. Both balance writes and
// both ledger entries happen in the same transaction — a half-applied
// transfer is never observable.
func (s *WalletService) TransferFunds(fromUserID, toEmail string, amount float64, description string) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	var outgoing *models.Transaction
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var recipient models.PlatformUser
		if err := tx.Where("email = ?", toEmail).First(&recipient).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRecipientNotFound
			}
			return err
		}
		if recipient.ExternalUserID == fromUserID {
			return ErrSelfTransfer
		}

		sender, err := s.walletForUpdate(tx, fromUserID)
		if err != nil {
			return err
		}
		if sender.Balance < amount {
			return ErrInsufficientFunds
		}
		receiver, err := s.walletForUpdate(tx, recipient.ExternalUserID)
		if err != nil {
			if errors.Is(err, ErrWalletNotFound) {
				return ErrRecipientNotFound
			}
			return err
		}

		if err := tx.Model(sender).Update("balance", sender.Balance-amount).Error; err != nil {
			return err
		}
		if err := tx.Model(receiver).Update("balance", receiver.Balance+amount).Error; err != nil {
			return err
		}

		outgoing = &models.Transaction{
			ID:          uuid.NewString(),
			WalletID:    sender.ID,
			Type:        models.TransactionTypeTransfer,
			Amount:      amount,
			Description: description,
			Status:      models.TransactionStatusCompleted,
			Metadata: models.JSONMap{
				"direction":    "outgoing",
				"counterparty": recipient.ExternalUserID,
			},
		}
		incoming := &models.Transaction{
			ID:          uuid.NewString(),
			WalletID:    receiver.ID,
			Type:        models.TransactionTypeTransfer,
			Amount:      amount,
			Description: description,
			Status:      models.TransactionStatusCompleted,
			Metadata: models.JSONMap{
				"direction":    "incoming",
				"counterparty": fromUserID,
			},
		}
		if err := tx.Create(outgoing).Error; err != nil {
			return err
		}
		return tx.Create(incoming).Error
	})
	if err != nil {
		return nil, err
	}
	log.Printf("💸 [WALLET] transfer %s → %s completed (%.2f)", fromUserID, toEmail, amount)
	return outgoing, nil
}

// WalletStats aggregates the platform-wide wallet numbers. Shared by the
// admin stats endpoint and the daily snapshot job.
type WalletStats struct {
	TotalWallets            int64   `json:"total_wallets"`
	TotalBalance            float64 `json:"total_balance"`
	TotalLocked             float64 `json:"total_locked"`
	PendingWithdrawals      int64   `json:"pending_withdrawals"`
	PendingWithdrawalAmount float64 `json:"pending_withdrawal_amount"`
}

func (s *WalletService) ComputeStats() (*WalletStats, error) {
	var stats WalletStats
	row := struct {
		Count   int64
		Balance float64
		Locked  float64
	}{}
	if err := s.DB.Model(&models.Wallet{}).
		Select("COUNT(*) AS count, COALESCE(SUM(balance), 0) AS balance, COALESCE(SUM(locked), 0) AS locked").
		Scan(&row).Error; err != nil {
		return nil, err
	}
	stats.TotalWallets = row.Count
	stats.TotalBalance = row.Balance
	stats.TotalLocked = row.Locked

	pending := struct {
		Count  int64
		Amount float64
	}{}
	if err := s.DB.Model(&models.Transaction{}).
		Select("COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount").
		Where("type = ? AND status = ?", models.TransactionTypeWithdrawal, models.TransactionStatusPending).
		Scan(&pending).Error; err != nil {
		return nil, err
	}
	stats.PendingWithdrawals = pending.Count
	stats.PendingWithdrawalAmount = pending.Amount
	return &stats, nil
}

// isDuplicateKeyErr covers the postgres translator plus the raw sqlite and
// postgres messages, since not every dialect translates constraint errors.
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key")
}
