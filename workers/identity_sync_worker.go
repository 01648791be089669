package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"eco-engage-system/models"
	"eco-engage-system/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// profileUser matches the JSON the profile service returns for changed users.
type profileUser struct {
	ID          string    `json:"id"`
	ExternalID  string    `json:"external_id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	FirstName   *string   `json:"first_name,omitempty"`
	LastName    *string   `json:"last_name,omitempty"`
	UsersHelped int64     `json:"users_helped"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type profileChangesResponse struct {
	Users []profileUser `json:"users"`
}

// IdentitySyncWorker keeps the local mirrored_users table trailing the
// profile service. The mirror is a read cache: sync failures degrade
// leaderboard display names, never the ledger itself.
type IdentitySyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	baseURL      string
	endpointPath string
	serviceToken string
	httpClient   *http.Client
}

func NewIdentitySyncWorker(db *gorm.DB, profileServiceURL, endpointPath, serviceToken string) *IdentitySyncWorker {
	return &IdentitySyncWorker{
		db:           db,
		interval:     1 * time.Minute,
		baseURL:      profileServiceURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient:   utils.HTTPClient,
	}
}

func (w *IdentitySyncWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Identity Sync Worker (profile service → mirrored_users)…")

	// Backfill from the beginning of time, then trail incrementally.
	if err := w.syncBatch(ctx, time.Time{}); err != nil {
		log.Printf("⚠️ Initial identity sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.syncBatch(ctx, w.lastSyncTime()); err != nil {
				log.Printf("❌ Identity sync batch failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Identity Sync Worker stopped")
			return
		}
	}
}

// lastSyncTime is the most recent updated_at we have mirrored locally.
func (w *IdentitySyncWorker) lastSyncTime() time.Time {
	var lastTime time.Time
	err := w.db.Raw("SELECT MAX(updated_at) FROM mirrored_users").Scan(&lastTime).Error
	if err != nil || lastTime.IsZero() {
		return time.Unix(0, 0)
	}
	return lastTime
}

func (w *IdentitySyncWorker) syncBatch(ctx context.Context, since time.Time) error {
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return fmt.Errorf("invalid profile service URL %q: %w", w.baseURL, err)
	}
	endpoint := base.JoinPath(w.endpointPath)
	q := endpoint.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to build sync request: %w", err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("profile service request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("profile service non-200 response: %d — %s", resp.StatusCode, string(body))
	}

	var response profileChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return fmt.Errorf("failed to decode profile service response: %w", err)
	}
	if len(response.Users) == 0 {
		return nil
	}

	var upserted, failed int
	for _, remote := range response.Users {
		mirror := models.MirroredUser{
			ID:             uuid.NewString(),
			ExternalUserID: remote.ExternalID,
			Username:       remote.Username,
			Email:          remote.Email,
			DisplayName:    remote.DisplayName,
			FirstName:      remote.FirstName,
			LastName:       remote.LastName,
			UsersHelped:    remote.UsersHelped,
			CreatedAt:      remote.CreatedAt,
			UpdatedAt:      remote.UpdatedAt,
		}
		if err := w.db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "external_user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"username", "email", "display_name", "first_name", "last_name",
				"users_helped", "updated_at",
			}),
		}).Create(&mirror).Error; err != nil {
			failed++
			log.Printf("[SYNC] ⚠️ Failed to upsert mirrored user %q (%s): %v",
				remote.Username, remote.ExternalID, err)
		} else {
			upserted++
		}
	}

	log.Printf("[SYNC] ✅ Mirrored %d user(s) (%d upserted, %d failed) since %s",
		len(response.Users), upserted, failed, since.UTC().Format(time.RFC3339))
	return nil
}
