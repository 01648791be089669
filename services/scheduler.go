package services

import (
	"context"
	"errors"
	"log"
	"time"

	"eco-engage-system/models"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const digestInterval = 7 * 24 * time.Hour

// StartScheduler wires the periodic jobs. The tasks themselves take their
// dependencies and the current time explicitly, so they can be invoked (and
// tested) without the scheduler or any process-global state.
func StartScheduler(db *gorm.DB, identity IdentityPort, notifier *Notifier) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, err
	}
	sched.Start()

	// Counter resets fire at the window boundary itself, so awards landing
	// in the new window are not wiped by a late sweep. The period_resets
	// marker keeps a duplicate fire in the same window a no-op.
	resetCrons := map[string]string{
		"weekly":  "0 0 * * 1", // Monday 00:00 UTC
		"monthly": "0 0 1 * *",
		"yearly":  "0 0 1 1 *",
	}
	for period, expr := range resetCrons {
		period := period
		_, _ = sched.NewJob(
			gocron.CronJob(expr, false),
			gocron.NewTask(func() {
				if err := ResetPeriodCounters(db, period, time.Now()); err != nil {
					log.Printf("[Scheduler] %s reset failed: %v", period, err)
				}
			}),
		)
	}

	// Daily: engagement digest sweep. Per-user last-sent timestamps keep a
	// double fire in the same week from sending twice.
	_, _ = sched.NewJob(
		gocron.DurationJob(24*time.Hour),
		gocron.NewTask(func() {
			sent, failed := RunMilestoneDigest(context.Background(), db, identity, notifier, time.Now())
			log.Printf("[Scheduler] Digest sweep done: %d sent, %d failed", sent, failed)
		}),
	)

	return sched, nil
}

// ResetPeriodCounters zeroes the ledger column for one period once per
// boundary. The (period, period_start) marker row is inserted with ON
// CONFLICT DO NOTHING; only the inserter performs the reset, so a second
// invocation in the same window is a no-op.
func ResetPeriodCounters(db *gorm.DB, period string, now time.Time) error {
	column, ok := map[string]string{
		"weekly":  "weekly_points",
		"monthly": "monthly_points",
		"yearly":  "yearly_points",
	}[period]
	if !ok {
		return &ValidationError{Field: "period", Reason: "no reset defined for " + period}
	}

	marker := models.PeriodReset{
		ID:          uuid.NewString(),
		Period:      period,
		PeriodStart: periodStart(period, now),
	}
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&marker)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nil // this window was already reset
	}

	if err := db.Model(&models.PointsLedger{}).
		Where(column+" <> ?", 0).
		UpdateColumn(column, 0).Error; err != nil {
		return err
	}
	log.Printf("🔄 Reset %s for window starting %s", column, marker.PeriodStart.Format(time.RFC3339))
	return nil
}

// periodStart returns the UTC boundary the period window began at:
// Monday 00:00 for weekly, the 1st for monthly, Jan 1 for yearly.
func periodStart(period string, now time.Time) time.Time {
	t := now.UTC()
	switch period {
	case "weekly":
		offset := (int(t.Weekday()) + 6) % 7 // Monday = 0
		day := t.AddDate(0, 0, -offset)
		return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	case "monthly":
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case "yearly":
		return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// RunMilestoneDigest walks every ledger row and sends a digest event to
// users who have not had one this week. Per-user failures are counted and
// skipped, never aborting the sweep.
func RunMilestoneDigest(ctx context.Context, db *gorm.DB, identity IdentityPort, notifier *Notifier, now time.Time) (sent, failed int) {
	var ledgers []models.PointsLedger
	if err := db.Find(&ledgers).Error; err != nil {
		log.Printf("[Digest] Failed to load ledgers: %v", err)
		return 0, 0
	}

	for _, ledger := range ledgers {
		userID := ledger.ExternalUserID

		var logRow models.DigestLog
		err := db.Where("external_user_id = ?", userID).First(&logRow).Error
		if err == nil && !digestDue(&logRow.LastSentAt, now) {
			continue
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			failed++
			log.Printf("[Digest] Log lookup failed for %s: %v", userID, err)
			continue
		}

		if _, err := identity.GetUser(ctx, userID); err != nil {
			failed++
			log.Printf("[Digest] Skipping %s, identity unavailable: %v", userID, err)
			continue
		}

		notifier.Notify(Event{
			Type:   EventWeeklyDigest,
			UserID: userID,
			Points: ledger.WeeklyPoints,
		})

		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_sent_at"}),
		}).Create(&models.DigestLog{
			ID:             uuid.NewString(),
			ExternalUserID: userID,
			LastSentAt:     now,
		}).Error; err != nil {
			failed++
			log.Printf("[Digest] Failed to record send for %s: %v", userID, err)
			continue
		}
		sent++
	}
	return sent, failed
}

// digestDue reports whether enough time has passed since the last digest.
func digestDue(lastSent *time.Time, now time.Time) bool {
	if lastSent == nil || lastSent.IsZero() {
		return true
	}
	return now.Sub(*lastSent) >= digestInterval
}
