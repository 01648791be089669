package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"
)

// CarbonClient reads time-ordered footprint history from the carbon
// tracking service. Read-only: the ledger engine never computes or stores
// footprints, it only consumes them for carbon-backed criteria.
type CarbonClient struct {
	baseURL      string
	serviceToken string
	httpClient   *http.Client
}

func NewCarbonClient(baseURL, serviceToken string) *CarbonClient {
	return &CarbonClient{
		baseURL:      baseURL,
		serviceToken: serviceToken,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// GetHistory returns the user's footprint entries sorted ascending by date.
// A nil client (carbon service not configured) reports an upstream error so
// callers fall back to inline request data or skip carbon criteria.
func (c *CarbonClient) GetHistory(ctx context.Context, externalID string) ([]CarbonEntry, error) {
	if c == nil || c.baseURL == "" {
		return nil, &UpstreamError{Service: "carbon", Err: fmt.Errorf("not configured")}
	}

	url := fmt.Sprintf("%s/api/v1/footprints?user_id=%s", c.baseURL, externalID)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, &UpstreamError{Service: "carbon", Err: err}
	}
	req.Header.Set("X-Service-Token", c.serviceToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{Service: "carbon", Err: err}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{Service: "carbon", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var payload struct {
		Entries []CarbonEntry `json:"entries"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &UpstreamError{Service: "carbon", Err: err}
	}

	entries := payload.Entries
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Date.Before(entries[j].Date)
	})
	return entries, nil
}
