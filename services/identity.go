package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"eco-engage-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Identity is the read-only view of a profile-service user that the
// ledger engine is allowed to see.
type Identity struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	UsersHelped int64  `json:"users_helped"`
}

// IdentityPort resolves users from the identity store. Returns ErrNotFound
// for unknown users and *UpstreamError when the store cannot be reached.
type IdentityPort interface {
	GetUser(ctx context.Context, externalID string) (*Identity, error)
}

// IdentityClient reads through the local mirror first and only falls back
// to the profile service when the mirror misses, so a profile outage
// degrades lookups instead of taking the leaderboard down with it.
type IdentityClient struct {
	DB           *gorm.DB
	baseURL      string
	serviceToken string
	httpClient   *http.Client
}

func NewIdentityClient(db *gorm.DB, baseURL, serviceToken string) *IdentityClient {
	return &IdentityClient{
		DB:           db,
		baseURL:      baseURL,
		serviceToken: serviceToken,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *IdentityClient) GetUser(ctx context.Context, externalID string) (*Identity, error) {
	var mirrored models.MirroredUser
	err := c.DB.WithContext(ctx).Where("external_user_id = ?", externalID).First(&mirrored).Error
	if err == nil {
		return identityFromMirror(&mirrored), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return c.fetchRemote(ctx, externalID)
}

func (c *IdentityClient) fetchRemote(ctx context.Context, externalID string) (*Identity, error) {
	url := fmt.Sprintf("%s/api/v1/public/profiles/%s", c.baseURL, externalID)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, &UpstreamError{Service: "profile", Err: err}
	}
	req.Header.Set("X-Service-Token", c.serviceToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{Service: "profile", Err: err}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{Service: "profile", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var remote struct {
		ExternalID  string `json:"external_id"`
		Username    string `json:"username"`
		Email       string `json:"email"`
		DisplayName string `json:"display_name"`
		UsersHelped int64  `json:"users_helped"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&remote); err != nil {
		return nil, &UpstreamError{Service: "profile", Err: err}
	}

	// Opportunistic mirror refresh; the sync worker owns the table, so a
	// failed upsert is only worth a retry on its next tick.
	_ = c.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "external_user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"username", "email", "display_name", "users_helped", "updated_at",
		}),
	}).Create(&models.MirroredUser{
		ID:             uuid.NewString(),
		ExternalUserID: remote.ExternalID,
		Username:       remote.Username,
		Email:          remote.Email,
		DisplayName:    remote.DisplayName,
		UsersHelped:    remote.UsersHelped,
		UpdatedAt:      time.Now(),
	}).Error

	return &Identity{
		ID:          remote.ExternalID,
		Username:    remote.Username,
		Email:       remote.Email,
		DisplayName: remote.DisplayName,
		UsersHelped: remote.UsersHelped,
	}, nil
}

func identityFromMirror(m *models.MirroredUser) *Identity {
	display := m.DisplayName
	if display == "" {
		display = m.Username
	}
	return &Identity{
		ID:          m.ExternalUserID,
		Username:    m.Username,
		Email:       m.Email,
		DisplayName: display,
		UsersHelped: m.UsersHelped,
	}
}

// PlaceholderName is what leaderboard rows show when identity lookup fails;
// display data is advisory there, never worth failing the response.
func PlaceholderName(externalID string) string {
	return "User " + externalID
}
