package services

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"eco-engage-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func TestApplyProgress(t *testing.T) {
	tests := []struct {
		name         string
		current      int
		completed    bool
		reported     int
		wantProgress int
		wantComplete bool
	}{
		{"normal advance", 20, false, 50, 50, false},
		{"exactly 100 completes", 50, false, 100, 100, true},
		{"over 100 clamps to completion", 50, false, 150, 100, true},
		{"lower report keeps progress", 60, false, 40, 60, false},
		{"equal report is a no-op", 60, false, 60, 60, false},
		{"completed row never moves", 100, true, 50, 100, false},
		{"completed row ignores re-completion", 100, true, 100, 100, false},
		{"zero report on fresh join", 0, false, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotProgress, gotComplete := applyProgress(tt.current, tt.completed, tt.reported)
			if gotProgress != tt.wantProgress || gotComplete != tt.wantComplete {
				t.Errorf("applyProgress(%d, %v, %d) = (%d, %v), want (%d, %v)",
					tt.current, tt.completed, tt.reported,
					gotProgress, gotComplete, tt.wantProgress, tt.wantComplete)
			}
		})
	}
}

func newChallengeApp(t *testing.T, db *gorm.DB) *fiber.App {
	t.Helper()
	award := NewAwardService(db, nil)
	identity := &stubIdentity{users: map[string]*Identity{
		"u1": {ID: "u1", Username: "alice", DisplayName: "Alice"},
	}}
	achievements := NewAchievementService(db, award, identity, nil)
	svc := NewChallengeService(db, award, achievements)

	app := fiber.New()
	app.Post("/api/v1/challenges/join", svc.Join)
	app.Post("/api/v1/challenges/progress", svc.ReportProgress)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path, body string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request %s failed: %v", path, err)
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return resp.StatusCode, out
}

func seedChallenge(t *testing.T, db *gorm.DB, points int64, end time.Time) *models.ChallengeDefinition {
	t.Helper()
	challenge := &models.ChallengeDefinition{
		ID:        uuid.NewString(),
		Slug:      "plastic-free-" + uuid.NewString()[:8],
		Title:     "Plastic Free",
		Points:    points,
		StartDate: time.Now().Add(-24 * time.Hour),
		EndDate:   end,
		Status:    models.ChallengeStatusActive,
	}
	if err := db.Create(challenge).Error; err != nil {
		t.Fatalf("failed to seed challenge: %v", err)
	}
	return challenge
}

func TestJoinIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	app := newChallengeApp(t, db)
	challenge := seedChallenge(t, db, 200, time.Now().Add(48*time.Hour))

	body := `{"userId":"u1","challengeId":"` + challenge.ID + `"}`
	status, _ := postJSON(t, app, "/api/v1/challenges/join", body)
	if status != fiber.StatusOK {
		t.Fatalf("first join status = %d, want 200", status)
	}

	var first models.ChallengeParticipation
	if err := db.Where("external_user_id = ? AND challenge_id = ?", "u1", challenge.ID).
		First(&first).Error; err != nil {
		t.Fatalf("participation missing after join: %v", err)
	}

	// Progress recorded between the two joins must survive the rejoin.
	if err := db.Model(&models.ChallengeParticipation{}).
		Where("id = ?", first.ID).UpdateColumn("progress", 40).Error; err != nil {
		t.Fatalf("failed to set progress: %v", err)
	}

	status, _ = postJSON(t, app, "/api/v1/challenges/join", body)
	if status != fiber.StatusOK {
		t.Fatalf("second join status = %d, want 200", status)
	}

	var rows []models.ChallengeParticipation
	if err := db.Where("external_user_id = ? AND challenge_id = ?", "u1", challenge.ID).
		Find(&rows).Error; err != nil {
		t.Fatalf("failed to list participations: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("participation rows = %d, want 1", len(rows))
	}
	if rows[0].ID != first.ID || rows[0].Progress != 40 {
		t.Errorf("rejoin returned (id=%s, progress=%d), want original row untouched (id=%s, progress=40)",
			rows[0].ID, rows[0].Progress, first.ID)
	}
}

func TestJoinAfterChallengeClosed(t *testing.T) {
	db := newTestDB(t)
	app := newChallengeApp(t, db)
	challenge := seedChallenge(t, db, 200, time.Now().Add(48*time.Hour))

	body := `{"userId":"u1","challengeId":"` + challenge.ID + `"}`
	if status, _ := postJSON(t, app, "/api/v1/challenges/join", body); status != fiber.StatusOK {
		t.Fatalf("join while open status = %d, want 200", status)
	}

	if err := db.Model(&models.ChallengeDefinition{}).
		Where("id = ?", challenge.ID).
		UpdateColumn("end_date", time.Now().Add(-time.Hour)).Error; err != nil {
		t.Fatalf("failed to close challenge: %v", err)
	}

	// An existing participant rejoining after close still gets their row.
	if status, _ := postJSON(t, app, "/api/v1/challenges/join", body); status != fiber.StatusOK {
		t.Errorf("rejoin after close status = %d, want 200", status)
	}

	// A newcomer is rejected.
	newcomer := `{"userId":"u-late","challengeId":"` + challenge.ID + `"}`
	if status, _ := postJSON(t, app, "/api/v1/challenges/join", newcomer); status != fiber.StatusBadRequest {
		t.Errorf("newcomer join after close status = %d, want 400", status)
	}
}

func TestProgressCompletionCreditsAndUnlocks(t *testing.T) {
	db := newTestDB(t)
	app := newChallengeApp(t, db)
	challenge := seedChallenge(t, db, 200, time.Now().Add(48*time.Hour))

	starter := models.AchievementDefinition{
		ID:            uuid.NewString(),
		Slug:          "challenge-starter",
		Title:         "Challenge Starter",
		Points:        100,
		CriteriaType:  models.CriteriaChallenges,
		CriteriaValue: 1,
	}
	if err := db.Create(&starter).Error; err != nil {
		t.Fatalf("failed to seed achievement: %v", err)
	}

	join := `{"userId":"u1","challengeId":"` + challenge.ID + `"}`
	if status, _ := postJSON(t, app, "/api/v1/challenges/join", join); status != fiber.StatusOK {
		t.Fatalf("join status = %d, want 200", status)
	}

	report := `{"userId":"u1","challengeId":"` + challenge.ID + `","progress":100}`
	if status, _ := postJSON(t, app, "/api/v1/challenges/progress", report); status != fiber.StatusOK {
		t.Fatalf("progress report status = %d, want 200", status)
	}

	// Challenge points plus the first-completion achievement, each once.
	ledger := mustLedger(t, db, "u1")
	if ledger.TotalPoints != 300 {
		t.Errorf("total points = %d, want 300 (200 challenge + 100 achievement)", ledger.TotalPoints)
	}
	var unlocks int64
	if err := db.Model(&models.AchievementUnlock{}).
		Where("external_user_id = ? AND achievement_id = ?", "u1", starter.ID).
		Count(&unlocks).Error; err != nil {
		t.Fatalf("failed to count unlocks: %v", err)
	}
	if unlocks != 1 {
		t.Errorf("starter unlocks = %d, want 1", unlocks)
	}

	// A second identical report changes nothing.
	if status, _ := postJSON(t, app, "/api/v1/challenges/progress", report); status != fiber.StatusOK {
		t.Fatalf("repeat report status = %d, want 200", status)
	}
	ledger = mustLedger(t, db, "u1")
	if ledger.TotalPoints != 300 {
		t.Errorf("total points after repeat report = %d, want 300", ledger.TotalPoints)
	}
}
