package services

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"time"
)

const (
	EventAchievementUnlocked = "achievement_unlocked"
	EventChallengeCompleted  = "challenge_completed"
	EventWeeklyDigest        = "weekly_digest"
)

// Event is the fire-and-forget payload sent to the notification service.
type Event struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
	Title  string `json:"title,omitempty"`
	Points int64  `json:"points,omitempty"`
}

// Notifier posts events to the notification service. Delivery is best
// effort: failures are logged and never roll back the award that produced
// the event. A Notifier with an empty base URL only logs.
type Notifier struct {
	baseURL      string
	serviceToken string
	httpClient   *http.Client
}

func NewNotifier(baseURL, serviceToken string) *Notifier {
	return &Notifier{
		baseURL:      baseURL,
		serviceToken: serviceToken,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Notify sends the event asynchronously. Safe to call on a nil Notifier.
func (n *Notifier) Notify(event Event) {
	if n == nil {
		return
	}
	if n.baseURL == "" {
		log.Printf("🔕 Notification (no sink configured): %s → %s", event.Type, event.UserID)
		return
	}
	go n.send(event)
}

func (n *Notifier) send(event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("⚠️ Failed to encode notification %s for %s: %v", event.Type, event.UserID, err)
		return
	}
	req, err := http.NewRequest("POST", n.baseURL+"/api/v1/notifications", bytes.NewReader(body))
	if err != nil {
		log.Printf("⚠️ Failed to build notification request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", n.serviceToken)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		log.Printf("⚠️ Notification delivery failed (%s → %s): %v", event.Type, event.UserID, err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Printf("⚠️ Notification service returned %d for %s → %s", resp.StatusCode, event.Type, event.UserID)
	}
}
