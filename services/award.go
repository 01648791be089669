package services

import (
	"context"
	"errors"
	"log"
	"time"

	"eco-engage-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AwardService is the single writer of unlock rows and point credits.
// Every award is one transaction: unlock insert + ledger increment, so a
// duplicate request can never credit points without also owning the unlock
// row. Requires gorm.Config{TranslateError: true} so unique violations
// surface as gorm.ErrDuplicatedKey.
type AwardService struct {
	DB       *gorm.DB
	Notifier *Notifier
}

func NewAwardService(db *gorm.DB, notifier *Notifier) *AwardService {
	return &AwardService{DB: db, Notifier: notifier}
}

// GrantAchievement records the unlock and credits points at most once per
// (user, achievement). A duplicate — sequential or concurrent — returns
// awarded=false with no side effect; the unique index on the unlock row is
// the race safety net.
func (s *AwardService) GrantAchievement(ctx context.Context, userID string, def *models.AchievementDefinition) (bool, error) {
	awarded := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		unlock := models.AchievementUnlock{
			ID:             uuid.NewString(),
			ExternalUserID: userID,
			AchievementID:  def.ID,
			UnlockedAt:     time.Now(),
		}
		if err := tx.Create(&unlock).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil // already unlocked
			}
			return err
		}
		if err := creditLedger(tx, userID, def.Points); err != nil {
			return err
		}
		awarded = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if awarded {
		log.Printf("🏆 Achievement awarded: %s → %s (+%d pts)", def.Slug, userID, def.Points)
		s.Notifier.Notify(Event{
			Type:   EventAchievementUnlocked,
			UserID: userID,
			Title:  def.Title,
			Points: def.Points,
		})
	}
	return awarded, nil
}

// CompleteChallenge flips the participation to completed and credits the
// challenge's points, all in one transaction. The conditional UPDATE on
// completed=false is what makes concurrent completion reports credit only
// once: losers see zero rows affected and walk away.
func (s *AwardService) CompleteChallenge(ctx context.Context, userID string, challenge *models.ChallengeDefinition) (bool, error) {
	completed := false
	now := time.Now()
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ChallengeParticipation{}).
			Where("external_user_id = ? AND challenge_id = ? AND completed = ?", userID, challenge.ID, false).
			Updates(map[string]interface{}{
				"progress":     100,
				"completed":    true,
				"completed_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil // already completed
		}
		if err := creditLedger(tx, userID, challenge.Points); err != nil {
			return err
		}
		completed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if completed {
		log.Printf("✅ Challenge completed: %s → %s (+%d pts)", challenge.Slug, userID, challenge.Points)
		s.Notifier.Notify(Event{
			Type:   EventChallengeCompleted,
			UserID: userID,
			Title:  challenge.Title,
			Points: challenge.Points,
		})
	}
	return completed, nil
}

// creditLedger bumps all four counters inside the caller's transaction,
// creating the zeroed row first if the user has never been credited.
func creditLedger(tx *gorm.DB, userID string, points int64) error {
	ledger := models.PointsLedger{
		ID:             uuid.NewString(),
		ExternalUserID: userID,
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&ledger).Error; err != nil {
		return err
	}
	return tx.Model(&models.PointsLedger{}).
		Where("external_user_id = ?", userID).
		UpdateColumns(map[string]interface{}{
			"total_points":   gorm.Expr("total_points + ?", points),
			"weekly_points":  gorm.Expr("weekly_points + ?", points),
			"monthly_points": gorm.Expr("monthly_points + ?", points),
			"yearly_points":  gorm.Expr("yearly_points + ?", points),
			"updated_at":     time.Now(),
		}).Error
}
