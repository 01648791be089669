package services

import (
	"testing"
	"time"

	"eco-engage-system/models"
)

func TestPeriodStart(t *testing.T) {
	// 2026-08-29 is a Saturday; the ISO week began Monday the 24th.
	now := time.Date(2026, time.August, 29, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		period string
		want   time.Time
	}{
		{"weekly", time.Date(2026, time.August, 24, 0, 0, 0, 0, time.UTC)},
		{"monthly", time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)},
		{"yearly", time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.period, func(t *testing.T) {
			if got := periodStart(tt.period, now); !got.Equal(tt.want) {
				t.Errorf("periodStart(%q) = %v, want %v", tt.period, got, tt.want)
			}
		})
	}
}

func TestPeriodStartOnMonday(t *testing.T) {
	monday := time.Date(2026, time.August, 24, 0, 0, 0, 0, time.UTC)
	if got := periodStart("weekly", monday); !got.Equal(monday) {
		t.Errorf("Monday midnight should be its own week start, got %v", got)
	}

	sunday := time.Date(2026, time.August, 30, 23, 59, 0, 0, time.UTC)
	if got := periodStart("weekly", sunday); !got.Equal(monday) {
		t.Errorf("Sunday night still belongs to Monday's week, got %v", got)
	}
}

func TestDigestDue(t *testing.T) {
	now := time.Date(2026, time.August, 29, 12, 0, 0, 0, time.UTC)

	if !digestDue(nil, now) {
		t.Error("never-sent user should be due")
	}
	var zero time.Time
	if !digestDue(&zero, now) {
		t.Error("zero last-sent should be due")
	}

	recent := now.Add(-3 * 24 * time.Hour)
	if digestDue(&recent, now) {
		t.Error("sent 3 days ago should not be due")
	}

	old := now.Add(-digestInterval)
	if !digestDue(&old, now) {
		t.Error("sent exactly one interval ago should be due")
	}
}

func TestResetPeriodCountersOncePerWindow(t *testing.T) {
	db := newTestDB(t)
	// Monday 00:00 UTC, the weekly boundary.
	boundary := time.Date(2026, time.August, 24, 0, 0, 0, 0, time.UTC)

	if err := creditLedger(db, "u1", 300); err != nil {
		t.Fatalf("failed to credit ledger: %v", err)
	}

	if err := ResetPeriodCounters(db, "weekly", boundary); err != nil {
		t.Fatalf("first reset failed: %v", err)
	}
	ledger := mustLedger(t, db, "u1")
	if ledger.WeeklyPoints != 0 || ledger.TotalPoints != 300 {
		t.Fatalf("after reset: weekly=%d total=%d, want 0 and 300", ledger.WeeklyPoints, ledger.TotalPoints)
	}

	// Points earned after the boundary survive a repeat fire in the window.
	if err := creditLedger(db, "u1", 50); err != nil {
		t.Fatalf("failed to credit ledger: %v", err)
	}
	if err := ResetPeriodCounters(db, "weekly", boundary.Add(2*time.Hour)); err != nil {
		t.Fatalf("repeat reset failed: %v", err)
	}
	ledger = mustLedger(t, db, "u1")
	if ledger.WeeklyPoints != 50 {
		t.Errorf("weekly points after repeat fire = %d, want 50 (no double reset)", ledger.WeeklyPoints)
	}

	// The next window's boundary resets again.
	if err := ResetPeriodCounters(db, "weekly", boundary.AddDate(0, 0, 7)); err != nil {
		t.Fatalf("next-window reset failed: %v", err)
	}
	ledger = mustLedger(t, db, "u1")
	if ledger.WeeklyPoints != 0 {
		t.Errorf("weekly points in new window = %d, want 0", ledger.WeeklyPoints)
	}
	if ledger.TotalPoints != 350 {
		t.Errorf("total points = %d, want 350 (never reset)", ledger.TotalPoints)
	}

	var markers int64
	if err := db.Model(&models.PeriodReset{}).Where("period = ?", "weekly").Count(&markers).Error; err != nil {
		t.Fatalf("failed to count markers: %v", err)
	}
	if markers != 2 {
		t.Errorf("reset markers = %d, want 2 (one per window)", markers)
	}
}

func TestResetPeriodCountersRejectsUnknownPeriod(t *testing.T) {
	db := newTestDB(t)
	if err := ResetPeriodCounters(db, "total", time.Now()); err == nil {
		t.Error("expected error for total period, total points never reset")
	}
}
