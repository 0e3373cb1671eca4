package services

import (
	"fmt"

	"learn-earn-platform/models"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// subscriptionPlans maps plan name to price. Payment is taken from the
// user's wallet balance.
var subscriptionPlans = map[string]float64{
	"monthly": 9.99,
	"yearly":  99.99,
}

type SubscriptionService struct {
	DB       *gorm.DB
	Wallet   *WalletService
	Referral *ReferralService
}

func NewSubscriptionService(db *gorm.DB, wallet *WalletService, referral *ReferralService) *SubscriptionService {
	return &SubscriptionService{DB: db, Wallet: wallet, Referral: referral}
}

// Activate charges the plan price to the user's wallet and then triggers
// subscription referral propagation. The referral step is best-effort: the
// payment stands even if bonus propagation partially or fully fails.
func (s *SubscriptionService) Activate(userID, plan string) (*models.Transaction, *ReferralSummary, error) {
	price, ok := subscriptionPlans[plan]
	if !ok {
		return nil, nil, fmt.Errorf("unknown subscription plan %q", plan)
	}

	txn, err := s.Wallet.DeductFunds(userID, price,
		models.TransactionTypeSubscriptionPayment,
		fmt.Sprintf("Subscription payment (%s)", plan),
		models.JSONMap{"plan": plan},
	)
	if err != nil {
		return nil, nil, err
	}

	summary := s.Referral.ProcessSubscriptionReferral(userID, price)
	log.Printf("📬 [SUBSCRIPTION] %s activated %s plan for %.2f", userID, plan, price)
	return txn, summary, nil
}

// ActivateEndpoint is the billing entry point.
// POST /s/subscriptions
func (s *SubscriptionService) ActivateEndpoint(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		Plan string `json:"plan" validate:"required,oneof=monthly yearly"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	txn, summary, err := s.Activate(userID, req.Plan)
	if err != nil {
		return ledgerErrorResponse(c, err)
	}

	resp := fiber.Map{"transaction": txn}
	if summary != nil {
		resp["referral"] = summary
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}
