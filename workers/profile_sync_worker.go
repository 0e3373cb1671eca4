package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"learn-earn-platform/models"
	"learn-earn-platform/services"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProfileSyncClient pulls user profiles from the profile service and keeps
// the local platform_users table current.
type ProfileSyncClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	DB         *gorm.DB
	Wallet     *services.WalletService
}

func NewProfileSyncClient(db *gorm.DB, wallet *services.WalletService) *ProfileSyncClient {
	baseURL := os.Getenv("PROFILE_SERVICE_URL")
	if baseURL == "" {
		log.Fatal("PROFILE_SERVICE_URL environment variable is required")
	}
	token := os.Getenv("PLATFORM_SERVICE_TOKEN")
	if token == "" {
		log.Fatal("PLATFORM_SERVICE_TOKEN environment variable is required for profile sync")
	}

	return &ProfileSyncClient{
		BaseURL: baseURL,
		Token:   token,
		DB:      db,
		Wallet:  wallet,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *ProfileSyncClient) GetChangedProfiles(ctx context.Context, since time.Time) ([]models.RemoteUser, error) {
	since = since.UTC()

	u, err := url.Parse(fmt.Sprintf("%s/api/v1/public/profiles", c.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	q := u.Query()
	q.Set("since", since.Format(time.RFC3339))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call profile service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("profile service returned status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Profiles []models.RemoteUser `json:"profiles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode profile service response: %w", err)
	}

	return response.Profiles, nil
}

// upsertProfiles writes the batch into platform_users. The conflict update
// list deliberately excludes referred_by_id — the referrer is fixed at
// registration and must never change on later profile edits.
func (c *ProfileSyncClient) upsertProfiles(profiles []models.RemoteUser) error {
	users := make([]models.PlatformUser, 0, len(profiles))
	for _, p := range profiles {
		users = append(users, models.PlatformUser{
			ID:             uuid.NewString(),
			ExternalUserID: p.ExternalID,
			Username:       p.Username,
			Email:          p.Email,
			ReferredByID:   p.ReferredByID,
		})
	}

	if err := c.DB.Clauses(
		clause.OnConflict{
			Columns: []clause.Column{{Name: "external_user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"username",
				"email",
				"updated_at",
			}),
		},
	).Create(&users).Error; err != nil {
		return err
	}

	// Every known user gets a wallet; EnsureWallet is a no-op for users
	// that already have one.
	for _, p := range profiles {
		if _, err := c.Wallet.EnsureWallet(p.ExternalID); err != nil {
			log.Printf("❌ Failed to ensure wallet for user %s: %v", p.ExternalID, err)
		}
	}
	return nil
}

// PollProfiles runs the sync loop until ctx is cancelled.
func PollProfiles(ctx context.Context, client *ProfileSyncClient, pollInterval time.Duration) {
	log.Println("Starting profile polling...")
	lastSyncTime := time.Now().UTC().Add(-24 * time.Hour)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Profile polling stopped.")
			return
		case <-ticker.C:
			logTime := time.Now().UTC()
			log.Printf("Polling for profile changes since %s...", lastSyncTime.Format(time.RFC3339))

			profiles, err := client.GetChangedProfiles(ctx, lastSyncTime)
			if err != nil {
				log.Printf("❌ Error polling profiles: %v", err)
				continue
			}

			count := len(profiles)
			log.Printf("📥 Received %d profile change(s) from profile service.", count)

			if count == 0 {
				log.Println("➡️ No new profile changes.")
				continue
			}

			if err := client.upsertProfiles(profiles); err != nil {
				log.Printf("❌ Failed to upsert %d profile(s): %v", count, err)
				// Do NOT advance lastSyncTime on failure — retry same window next tick
				continue
			}

			lastSyncTime = logTime
			log.Printf("✅ Upserted %d profile(s) into platform_users table.", count)
		}
	}
}
