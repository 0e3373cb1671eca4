package services

import (
	"testing"

	"learn-earn-platform/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestReferralService(db *gorm.DB, cfg ReferralConfig) (*WalletService, *ReferralService) {
	wallet := NewWalletService(db)
	return wallet, NewReferralService(db, wallet, cfg)
}

func TestSubscriptionReferralDirectBonus(t *testing.T) {
	db := setupTestDB(t)
	_, svc := newTestReferralService(db, ReferralConfig{
		DirectRate: 0.25,
		LevelRates: []float64{0.03, 0.02, 0.01, 0.01, 0.01},
	})

	referrer := "referrer-1"
	createUser(t, db, referrer, "ref@example.com", nil)
	createUser(t, db, "subscriber", "sub@example.com", &referrer)
	createWallet(t, db, referrer, 0, 0)
	createWallet(t, db, "subscriber", 0, 0)

	summary := svc.ProcessSubscriptionReferral("subscriber", 100)
	require.NotNil(t, summary)
	require.Equal(t, referrer, summary.ReferrerID)
	require.InDelta(t, 25, summary.DirectBonus, 1e-9)
	require.Len(t, summary.Outcomes, 1)
	require.True(t, summary.Outcomes[0].Credited)

	require.InDelta(t, 25, reloadWallet(t, db, referrer).Balance, 1e-9)

	var bonus models.ReferralBonus
	require.NoError(t, db.Where("referrer_id = ?", referrer).First(&bonus).Error)
	require.Equal(t, models.ReferralBonusStatusPaid, bonus.Status)
	require.Equal(t, 0, bonus.Level)
	require.InDelta(t, 0.25, bonus.BonusPercent, 1e-9)
}

func TestSubscriptionReferralChain(t *testing.T) {
	db := setupTestDB(t)
	_, svc := newTestReferralService(db, ReferralConfig{
		DirectRate: 0.25,
		LevelRates: []float64{0.03, 0.02},
	})

	// subscriber -> r1 -> r2 -> r3; with two level rates r3 is beyond the cap
	r1, r2, r3 := "r1", "r2", "r3"
	createUser(t, db, r3, "r3@example.com", nil)
	createUser(t, db, r2, "r2@example.com", &r3)
	createUser(t, db, r1, "r1@example.com", &r2)
	createUser(t, db, "subscriber", "sub@example.com", &r1)
	for _, id := range []string{r1, r2, r3, "subscriber"} {
		createWallet(t, db, id, 0, 0)
	}

	summary := svc.ProcessSubscriptionReferral("subscriber", 100)
	require.NotNil(t, summary)
	require.Len(t, summary.Outcomes, 3)

	require.InDelta(t, 25, reloadWallet(t, db, r1).Balance, 1e-9)
	require.InDelta(t, 3, reloadWallet(t, db, r2).Balance, 1e-9)
	require.InDelta(t, 2, reloadWallet(t, db, r3).Balance, 1e-9)

	var count int64
	require.NoError(t, db.Model(&models.ReferralBonus{}).Count(&count).Error)
	require.EqualValues(t, 3, count)

	levels := map[string]int{}
	var bonuses []models.ReferralBonus
	require.NoError(t, db.Find(&bonuses).Error)
	for _, b := range bonuses {
		levels[b.ReferrerID] = b.Level
		require.Equal(t, "subscriber", b.ReferredUserID)
	}
	require.Equal(t, map[string]int{r1: 0, r2: 1, r3: 2}, levels)
}

func TestSubscriptionReferralNoReferrer(t *testing.T) {
	db := setupTestDB(t)
	_, svc := newTestReferralService(db, ReferralConfig{DirectRate: 0.25, LevelRates: []float64{0.03}})

	createUser(t, db, "organic", "organic@example.com", nil)
	createWallet(t, db, "organic", 0, 0)

	require.Nil(t, svc.ProcessSubscriptionReferral("organic", 100))
	require.Nil(t, svc.ProcessSubscriptionReferral("unknown-user", 100))

	var count int64
	require.NoError(t, db.Model(&models.ReferralBonus{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestSubscriptionReferralDuplicateAttribution(t *testing.T) {
	db := setupTestDB(t)
	_, svc := newTestReferralService(db, ReferralConfig{DirectRate: 0.25, LevelRates: []float64{0.03}})

	referrer := "referrer-1"
	createUser(t, db, referrer, "ref@example.com", nil)
	createUser(t, db, "subscriber", "sub@example.com", &referrer)
	createWallet(t, db, referrer, 0, 0)
	createWallet(t, db, "subscriber", 0, 0)

	first := svc.ProcessSubscriptionReferral("subscriber", 100)
	require.NotNil(t, first)
	require.True(t, first.Outcomes[0].Credited)

	// a second subscription by the same user must not pay the chain again
	second := svc.ProcessSubscriptionReferral("subscriber", 100)
	require.NotNil(t, second)
	require.False(t, second.Outcomes[0].Credited)
	require.Contains(t, second.Outcomes[0].Error, "duplicate")

	// the duplicate run rolled back its wallet credit too
	require.InDelta(t, 25, reloadWallet(t, db, referrer).Balance, 1e-9)
	var count int64
	require.NoError(t, db.Model(&models.ReferralBonus{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestSubscriptionReferralFailedLevelDoesNotStopChain(t *testing.T) {
	db := setupTestDB(t)
	_, svc := newTestReferralService(db, ReferralConfig{DirectRate: 0.25, LevelRates: []float64{0.03, 0.02}})

	// r2 never got a wallet; r3 above it still has to be paid
	r1, r2, r3 := "r1", "r2", "r3"
	createUser(t, db, r3, "r3@example.com", nil)
	createUser(t, db, r2, "r2@example.com", &r3)
	createUser(t, db, r1, "r1@example.com", &r2)
	createUser(t, db, "subscriber", "sub@example.com", &r1)
	createWallet(t, db, r1, 0, 0)
	createWallet(t, db, r3, 0, 0)
	createWallet(t, db, "subscriber", 0, 0)

	summary := svc.ProcessSubscriptionReferral("subscriber", 100)
	require.NotNil(t, summary)
	require.Len(t, summary.Outcomes, 3)
	require.True(t, summary.Outcomes[0].Credited)
	require.False(t, summary.Outcomes[1].Credited)
	require.True(t, summary.Outcomes[2].Credited)

	require.InDelta(t, 25, reloadWallet(t, db, r1).Balance, 1e-9)
	require.InDelta(t, 2, reloadWallet(t, db, r3).Balance, 1e-9)
}

func TestTaskReferralSingleLevel(t *testing.T) {
	db := setupTestDB(t)
	_, svc := newTestReferralService(db, ReferralConfig{DirectRate: 0.25, LevelRates: []float64{0.03, 0.02}})

	// task rewards stop at the direct referrer even though r2 exists
	r1, r2 := "r1", "r2"
	createUser(t, db, r2, "r2@example.com", nil)
	createUser(t, db, r1, "r1@example.com", &r2)
	createUser(t, db, "reader", "reader@example.com", &r1)
	createWallet(t, db, r1, 0, 0)
	createWallet(t, db, r2, 0, 0)
	createWallet(t, db, "reader", 0, 0)

	summary := svc.ProcessTaskReferral("reader", 4)
	require.NotNil(t, summary)
	require.Len(t, summary.Outcomes, 1)
	require.InDelta(t, 1, summary.DirectBonus, 1e-9)

	require.InDelta(t, 1, reloadWallet(t, db, r1).Balance, 1e-9)
	require.InDelta(t, 0, reloadWallet(t, db, r2).Balance, 1e-9)

	var bonus models.ReferralBonus
	require.NoError(t, db.Where("referrer_id = ?", r1).First(&bonus).Error)
	require.Equal(t, models.ReferralBonusTypeTaskReward, bonus.Type)
}

func TestLoadReferralConfig(t *testing.T) {
	t.Setenv("REFERRAL_DIRECT_RATE", "")
	t.Setenv("REFERRAL_LEVEL_RATES", "")
	cfg := LoadReferralConfig()
	require.InDelta(t, 0.25, cfg.DirectRate, 1e-9)
	require.Len(t, cfg.LevelRates, 5)

	t.Setenv("REFERRAL_DIRECT_RATE", "0.10")
	t.Setenv("REFERRAL_LEVEL_RATES", "0.05, 0.02")
	cfg = LoadReferralConfig()
	require.InDelta(t, 0.10, cfg.DirectRate, 1e-9)
	require.Equal(t, []float64{0.05, 0.02}, cfg.LevelRates)

	// garbage falls back to defaults
	t.Setenv("REFERRAL_DIRECT_RATE", "lots")
	t.Setenv("REFERRAL_LEVEL_RATES", "0.05,zero")
	cfg = LoadReferralConfig()
	require.InDelta(t, 0.25, cfg.DirectRate, 1e-9)
	require.Len(t, cfg.LevelRates, 5)
}
