package services

import (
	"errors"
	"time"

	"learn-earn-platform/models"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ledgerErrorResponse maps the ledger's sentinel errors onto specific,
// actionable HTTP responses.
func ledgerErrorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrWalletNotFound), errors.Is(err, ErrTransactionNotFound), errors.Is(err, ErrRecipientNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrInsufficientFunds):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "insufficient balance for this operation"})
	case errors.Is(err, ErrInvalidAmount):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid amount"})
	case errors.Is(err, ErrInvalidState):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrSelfTransfer):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	default:
		log.Printf("❌ [WALLET] unexpected ledger error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "wallet operation failed"})
	}
}

// GetBalance returns the authenticated user's wallet.
// GET /s/wallet
func (s *WalletService) GetBalance(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var wallet models.Wallet
	if err := s.DB.Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		return ledgerErrorResponse(c, ErrWalletNotFound)
	}
	return c.JSON(fiber.Map{
		"user_id": wallet.UserID,
		"balance": wallet.Balance,
		"locked":  wallet.Locked,
		"total":   wallet.Balance + wallet.Locked,
	})
}

// GetTransactions returns the user's transaction history, paginated and
// filterable by type, status and an inclusive created_at date range.
// GET /s/wallet/transactions?page=&limit=&type=&status=&start_date=&end_date=
func (s *WalletService) GetTransactions(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var wallet models.Wallet
	if err := s.DB.Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		return ledgerErrorResponse(c, ErrWalletNotFound)
	}

	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := s.DB.Model(&models.Transaction{}).Where("wallet_id = ?", wallet.ID)
	if txType := c.Query("type"); txType != "" {
		query = query.Where("type = ?", txType)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if startDate := c.Query("start_date"); startDate != "" {
		start, err := time.Parse("2006-01-02", startDate)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid start_date, expected YYYY-MM-DD"})
		}
		query = query.Where("created_at >= ?", start)
	}
	if endDate := c.Query("end_date"); endDate != "" {
		end, err := time.Parse("2006-01-02", endDate)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid end_date, expected YYYY-MM-DD"})
		}
		// inclusive range: everything before the next day
		query = query.Where("created_at < ?", end.AddDate(0, 0, 1))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to count transactions"})
	}

	var transactions []models.Transaction
	if err := query.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&transactions).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch transactions"})
	}

	totalPages := total / int64(limit)
	if total%int64(limit) != 0 {
		totalPages++
	}
	return c.JSON(fiber.Map{
		"data": transactions,
		"pagination": fiber.Map{
			"page":        page,
			"limit":       limit,
			"total":       total,
			"total_pages": totalPages,
		},
	})
}

// RequestWithdrawalEndpoint places a withdrawal hold.
// POST /s/wallet/withdrawals
func (s *WalletService) RequestWithdrawalEndpoint(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		Amount         float64 `json:"amount" validate:"required,gt=0"`
		PaymentMethod  string  `json:"payment_method" validate:"required"`
		AccountDetails string  `json:"account_details" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	txn, newBalance, err := s.RequestWithdrawal(userID, req.Amount, req.PaymentMethod, req.AccountDetails)
	if err != nil {
		if errors.Is(err, ErrInvalidAmount) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "minimum withdrawal amount is 1.00",
			})
		}
		return ledgerErrorResponse(c, err)
	}

	log.Printf("🏦 [WALLET] withdrawal requested by %s for %.2f", userID, req.Amount)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"transaction": txn,
		"new_balance": newBalance,
	})
}

// TransferEndpoint sends funds to another user resolved by email.
// POST /s/wallet/transfers
func (s *WalletService) TransferEndpoint(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		RecipientEmail string  `json:"recipient_email" validate:"required,email"`
		Amount         float64 `json:"amount" validate:"required,gt=0"`
		Description    string  `json:"description"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	txn, err := s.TransferFunds(userID, req.RecipientEmail, req.Amount, req.Description)
	if err != nil {
		return ledgerErrorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"transaction": txn})
}

// ListPendingWithdrawals returns withdrawal holds awaiting a decision.
// GET /s/admin/wallet/withdrawals
func (s *WalletService) ListPendingWithdrawals(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var withdrawals []models.Transaction
	if err := s.DB.Where("type = ? AND status = ?", models.TransactionTypeWithdrawal, models.TransactionStatusPending).
		Order("created_at ASC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&withdrawals).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch withdrawals"})
	}
	return c.JSON(withdrawals)
}

// ProcessWithdrawalEndpoint approves or rejects a pending withdrawal.
// POST /s/admin/wallet/withdrawals/:id/process
func (s *WalletService) ProcessWithdrawalEndpoint(c *fiber.Ctx) error {
	transactionID := c.Params("id")

	var req struct {
		Decision   string `json:"decision" validate:"required,oneof=approved rejected"`
		AdminNotes string `json:"admin_notes"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	txn, err := s.ProcessWithdrawal(transactionID, req.Decision == "approved", req.AdminNotes)
	if err != nil {
		return ledgerErrorResponse(c, err)
	}

	log.Printf("✅ [WALLET] withdrawal %s %s by admin %v", transactionID, req.Decision, c.Locals("user_id"))
	return c.JSON(fiber.Map{"transaction": txn})
}

// GetWalletStatsEndpoint returns platform-wide wallet aggregates.
// GET /s/admin/wallet/stats
func (s *WalletService) GetWalletStatsEndpoint(c *fiber.Ctx) error {
	stats, err := s.ComputeStats()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to compute wallet stats"})
	}

	p := message.NewPrinter(language.English)
	return c.JSON(fiber.Map{
		"stats": stats,
		"display": fiber.Map{
			"total_balance": p.Sprintf("%.2f", stats.TotalBalance),
			"total_locked":  p.Sprintf("%.2f", stats.TotalLocked),
		},
	})
}
