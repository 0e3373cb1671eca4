package services

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"learn-earn-platform/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrDuplicateBonus means a bonus for this (referrer, referred user, type)
// triple already exists — the composite unique index fired.
var ErrDuplicateBonus = errors.New("duplicate bonus attribution")

// ReferralConfig is fixed at construction. DirectRate applies at level 0;
// LevelRates[i] applies at level i+1, so len(LevelRates) caps the walk.
type ReferralConfig struct {
	DirectRate float64
	LevelRates []float64
}

// LoadReferralConfig reads REFERRAL_DIRECT_RATE and REFERRAL_LEVEL_RATES
// (comma-separated fractions) with the platform defaults.
func LoadReferralConfig() ReferralConfig {
	cfg := ReferralConfig{
		DirectRate: 0.25,
		LevelRates: []float64{0.03, 0.02, 0.01, 0.01, 0.01},
	}
	if v := os.Getenv("REFERRAL_DIRECT_RATE"); v != "" {
		if rate, err := strconv.ParseFloat(v, 64); err == nil && rate > 0 {
			cfg.DirectRate = rate
		} else {
			log.Printf("⚠️  [REFERRAL] ignoring invalid REFERRAL_DIRECT_RATE %q", v)
		}
	}
	if v := os.Getenv("REFERRAL_LEVEL_RATES"); v != "" {
		var rates []float64
		for _, part := range strings.Split(v, ",") {
			rate, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil {
				log.Printf("⚠️  [REFERRAL] ignoring invalid REFERRAL_LEVEL_RATES %q", v)
				rates = nil
				break
			}
			rates = append(rates, rate)
		}
		if rates != nil {
			cfg.LevelRates = rates
		}
	}
	return cfg
}

type ReferralService struct {
	DB     *gorm.DB
	Wallet *WalletService
	Config ReferralConfig
}

func NewReferralService(db *gorm.DB, wallet *WalletService, cfg ReferralConfig) *ReferralService {
	return &ReferralService{DB: db, Wallet: wallet, Config: cfg}
}

// BonusOutcome is the per-level result of a propagation run. Failures are
// recorded here instead of aborting the chain.
type BonusOutcome struct {
	Level      int     `json:"level"`
	ReferrerID string  `json:"referrer_id"`
	Amount     float64 `json:"amount"`
	Credited   bool    `json:"credited"`
	Error      string  `json:"error,omitempty"`
}

// ReferralSummary is returned to the triggering flow. Nil when the user has
// no referrer (normal, not an error).
type ReferralSummary struct {
	ReferrerID  string         `json:"referrer_id"`
	DirectBonus float64        `json:"direct_bonus"`
	Outcomes    []BonusOutcome `json:"outcomes"`
}

// getReferrer resolves a user's direct referrer from the synced directory.
// Unknown users and users without a referrer both end the chain.
func (s *ReferralService) getReferrer(userID string) *string {
	var user models.PlatformUser
	if err := s.DB.Where("external_user_id = ?", userID).First(&user).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("❌ [REFERRAL] directory lookup for %s failed: %v", userID, err)
		}
		return nil
	}
	return user.ReferredByID
}

// payBonus credits one ancestor and records the bonus row in a single DB
// transaction — one unit of work per level, so a failed level rolls back
// only itself.
func (s *ReferralService) payBonus(referrerID, triggeredByID string, amount, rate float64, level int, bonusType models.ReferralBonusType) BonusOutcome {
	outcome := BonusOutcome{Level: level, ReferrerID: referrerID, Amount: amount}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		txn, err := s.Wallet.AddFundsTx(tx, referrerID, amount,
			models.TransactionTypeReferralBonus,
			fmt.Sprintf("Level %d referral bonus", level),
			models.JSONMap{"referred_user_id": triggeredByID, "level": level},
		)
		if err != nil {
			return err
		}
		bonus := &models.ReferralBonus{
			ID:             uuid.NewString(),
			ReferrerID:     referrerID,
			ReferredUserID: triggeredByID,
			Type:           bonusType,
			Level:          level,
			BonusPercent:   rate,
			Amount:         amount,
			Status:         models.ReferralBonusStatusPaid,
			Metadata:       models.JSONMap{"transaction_id": txn.ID},
		}
		if err := tx.Create(bonus).Error; err != nil {
			if isDuplicateKeyErr(err) {
				return ErrDuplicateBonus
			}
			return err
		}
		return nil
	})
	if err != nil {
		// best-effort by design: log and keep walking the chain
		log.Printf("⚠️  [REFERRAL] level %d bonus for %s (triggered by %s) failed: %v", level, referrerID, triggeredByID, err)
		outcome.Error = err.Error()
		return outcome
	}
	outcome.Credited = true
	return outcome
}

// ProcessSubscriptionReferral pays the direct referrer DirectRate of the
// subscription amount, then walks the chain upward paying LevelRates[i-1]
// at level i. Returns nil when the user has no referrer.
func (s *ReferralService) ProcessSubscriptionReferral(userID string, subscriptionAmount float64) *ReferralSummary {
	referrer := s.getReferrer(userID)
	if referrer == nil {
		return nil
	}

	directBonus := subscriptionAmount * s.Config.DirectRate
	summary := &ReferralSummary{ReferrerID: *referrer, DirectBonus: directBonus}
	summary.Outcomes = append(summary.Outcomes,
		s.payBonus(*referrer, userID, directBonus, s.Config.DirectRate, 0, models.ReferralBonusTypeSubscription))

	// iterative walk; len(LevelRates) bounds the depth even if the
	// directory ever produced a cycle
	current := *referrer
	for level := 1; level <= len(s.Config.LevelRates); level++ {
		next := s.getReferrer(current)
		if next == nil {
			break
		}
		rate := s.Config.LevelRates[level-1]
		bonus := subscriptionAmount * rate
		summary.Outcomes = append(summary.Outcomes,
			s.payBonus(*next, userID, bonus, rate, level, models.ReferralBonusTypeSubscription))
		current = *next
	}

	log.Printf("🎁 [REFERRAL] subscription by %s paid %d level(s) up the chain", userID, len(summary.Outcomes))
	return summary
}

// ProcessTaskReferral pays only the direct referrer — task rewards don't
// propagate beyond level 0.
func (s *ReferralService) ProcessTaskReferral(userID string, taskReward float64) *ReferralSummary {
	referrer := s.getReferrer(userID)
	if referrer == nil {
		return nil
	}

	bonus := taskReward * s.Config.DirectRate
	summary := &ReferralSummary{ReferrerID: *referrer, DirectBonus: bonus}
	summary.Outcomes = append(summary.Outcomes,
		s.payBonus(*referrer, userID, bonus, s.Config.DirectRate, 0, models.ReferralBonusTypeTaskReward))
	return summary
}

// GetMyBonuses lists bonuses earned by the authenticated user.
// GET /s/referrals/bonuses
func (s *ReferralService) GetMyBonuses(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}

	var bonuses []models.ReferralBonus
	if err := s.DB.Where("referrer_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&bonuses).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch referral bonuses"})
	}
	return c.JSON(bonuses)
}

// GetReferralSummaryEndpoint returns totals for the authenticated user.
// GET /s/referrals/summary
func (s *ReferralService) GetReferralSummaryEndpoint(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var totalEarned float64
	if err := s.DB.Model(&models.ReferralBonus{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("referrer_id = ? AND status = ?", userID, models.ReferralBonusStatusPaid).
		Scan(&totalEarned).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to compute referral earnings"})
	}

	var referredCount int64
	if err := s.DB.Model(&models.PlatformUser{}).
		Where("referred_by_id = ?", userID).
		Count(&referredCount).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to count referred users"})
	}

	return c.JSON(fiber.Map{
		"total_earned":   totalEarned,
		"referred_users": referredCount,
	})
}

// ListAllBonuses is the admin view over every bonus record.
// GET /s/admin/referrals/bonuses
func (s *ReferralService) ListAllBonuses(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := s.DB.Model(&models.ReferralBonus{})
	if bonusType := c.Query("type"); bonusType != "" {
		query = query.Where("type = ?", bonusType)
	}

	var bonuses []models.ReferralBonus
	if err := query.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&bonuses).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch referral bonuses"})
	}
	return c.JSON(bonuses)
}
