package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"learn-earn-platform/models"
	"learn-earn-platform/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gorm.io/gorm"
)

type ExportService struct {
	DB *gorm.DB
}

func NewExportService(db *gorm.DB) *ExportService {
	return &ExportService{DB: db}
}

type exportRow struct {
	TransactionID string
	UserID        string
	Type          string
	Status        string
	Amount        float64
	Description   string
	CreatedAt     time.Time
}

// ExportStatement builds a CSV of all transactions in an inclusive date
// range and uploads it to R2. Admin only.
// POST /s/admin/wallet/export
func (s *ExportService) ExportStatement(c *fiber.Ctx) error {
	var req struct {
		StartDate string `json:"start_date" validate:"required"`
		EndDate   string `json:"end_date" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid start_date, expected YYYY-MM-DD"})
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid end_date, expected YYYY-MM-DD"})
	}
	if end.Before(start) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "end_date before start_date"})
	}

	var rows []exportRow
	if err := s.DB.Model(&models.Transaction{}).
		Select("transactions.id AS transaction_id, wallets.user_id AS user_id, transactions.type, transactions.status, transactions.amount, transactions.description, transactions.created_at").
		Joins("JOIN wallets ON wallets.id = transactions.wallet_id").
		Where("transactions.created_at >= ? AND transactions.created_at < ?", start, end.AddDate(0, 0, 1)).
		Order("transactions.created_at ASC").
		Scan(&rows).Error; err != nil {
		log.Printf("❌ [EXPORT] statement query failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to build statement"})
	}

	buf := new(bytes.Buffer)
	w := csv.NewWriter(buf)
	_ = w.Write([]string{"transaction_id", "user_id", "type", "status", "amount", "description", "created_at"})
	var total float64
	for _, r := range rows {
		total += r.Amount
		_ = w.Write([]string{
			r.TransactionID,
			r.UserID,
			r.Type,
			r.Status,
			strconv.FormatFloat(r.Amount, 'f', 2, 64),
			r.Description,
			r.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to encode statement"})
	}

	key := fmt.Sprintf("statements/transactions-%s-%s-%s.csv", req.StartDate, req.EndDate, uuid.NewString()[:8])
	url, err := utils.UploadBytesToR2(key, buf.Bytes(), "text/csv")
	if err != nil {
		log.Printf("❌ [EXPORT] R2 upload failed: %v", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "statement storage unavailable"})
	}

	p := message.NewPrinter(language.English)
	log.Printf("📤 [EXPORT] statement %s uploaded (%d rows)", key, len(rows))
	return c.JSON(fiber.Map{
		"url":          url,
		"rows":         len(rows),
		"total_amount": p.Sprintf("%.2f", total),
	})
}
