package services

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"eco-engage-system/models"
	"eco-engage-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChallengeService struct {
	DB           *gorm.DB
	Award        *AwardService
	Achievements *AchievementService
}

func NewChallengeService(db *gorm.DB, award *AwardService, achievements *AchievementService) *ChallengeService {
	return &ChallengeService{DB: db, Award: award, Achievements: achievements}
}

// ListActive returns joinable challenges: status active and not yet ended,
// newest first.
func (s *ChallengeService) ListActive(c *fiber.Ctx) error {
	var challenges []models.ChallengeDefinition
	err := s.DB.WithContext(c.UserContext()).
		Where("status = ? AND end_date > ?", models.ChallengeStatusActive, time.Now()).
		Order("start_date DESC").
		Find(&challenges).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list challenges",
			"cause": err.Error(),
		})
	}
	return c.JSON(challenges)
}

// ListForUser returns the user's joined challenges with progress state.
func (s *ChallengeService) ListForUser(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "userId is required"})
	}

	type joinedChallenge struct {
		models.ChallengeDefinition
		Progress    int        `json:"progress"`
		Completed   bool       `json:"completed"`
		JoinedAt    time.Time  `json:"joined_at"`
		CompletedAt *time.Time `json:"completed_at,omitempty"`
	}
	var rows []joinedChallenge
	err := s.DB.WithContext(c.UserContext()).Model(&models.ChallengeParticipation{}).
		Select("challenge_definitions.*, challenge_participations.progress, challenge_participations.completed, challenge_participations.joined_at, challenge_participations.completed_at").
		Joins("INNER JOIN challenge_definitions ON challenge_definitions.id = challenge_participations.challenge_id").
		Where("challenge_participations.external_user_id = ?", userID).
		Order("challenge_participations.joined_at DESC").
		Scan(&rows).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list user challenges",
			"cause": err.Error(),
		})
	}
	return c.JSON(rows)
}

// Join creates the participation row, or returns the existing one untouched.
// The unique (user, challenge) index plus ON CONFLICT DO NOTHING makes the
// duplicate path a read, never an error.
func (s *ChallengeService) Join(c *fiber.Ctx) error {
	var req struct {
		UserID      string `json:"userId"`
		ChallengeID string `json:"challengeId"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
	}
	if req.UserID == "" || req.ChallengeID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "userId and challengeId are required"})
	}

	db := s.DB.WithContext(c.UserContext())

	var challenge models.ChallengeDefinition
	if err := db.First(&challenge, "id = ?", req.ChallengeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "challenge not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error", "cause": err.Error()})
	}

	// A repeat join stays idempotent even after the challenge closes: the
	// existing row comes back before the open-for-joining check.
	var existing models.ChallengeParticipation
	err := db.Where("external_user_id = ? AND challenge_id = ?", req.UserID, req.ChallengeID).
		First(&existing).Error
	if err == nil {
		return c.JSON(existing)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error", "cause": err.Error()})
	}

	if challenge.Status != models.ChallengeStatusActive || !challenge.EndDate.After(time.Now()) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "challenge is not open for joining"})
	}

	participation := models.ChallengeParticipation{
		ID:             uuid.NewString(),
		ExternalUserID: req.UserID,
		ChallengeID:    req.ChallengeID,
		Progress:       0,
		JoinedAt:       time.Now(),
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&participation).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to join challenge", "cause": err.Error()})
	}

	// Reread: on the duplicate path the insert did nothing and the caller
	// gets the original row back unchanged.
	var current models.ChallengeParticipation
	if err := db.Where("external_user_id = ? AND challenge_id = ?", req.UserID, req.ChallengeID).
		First(&current).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load participation", "cause": err.Error()})
	}
	return c.JSON(current)
}

// ReportProgress moves the participation forward. Reaching 100 completes the
// challenge exactly once: points are credited in the same transaction as the
// completion flip, then challenges-type achievements are re-checked.
func (s *ChallengeService) ReportProgress(c *fiber.Ctx) error {
	var req struct {
		UserID      string `json:"userId"`
		ChallengeID string `json:"challengeId"`
		Progress    *int   `json:"progress"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
	}
	if req.UserID == "" || req.ChallengeID == "" || req.Progress == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "userId, challengeId and progress are required"})
	}
	if *req.Progress < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "progress must not be negative"})
	}

	db := s.DB.WithContext(c.UserContext())

	var participation models.ChallengeParticipation
	err := db.Where("external_user_id = ? AND challenge_id = ?", req.UserID, req.ChallengeID).
		First(&participation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "participation not found — join the challenge first"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error", "cause": err.Error()})
	}

	newProgress, completesNow := applyProgress(participation.Progress, participation.Completed, *req.Progress)

	awarded := false
	if completesNow {
		var challenge models.ChallengeDefinition
		if err := db.First(&challenge, "id = ?", req.ChallengeID).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load challenge", "cause": err.Error()})
		}
		awarded, err = s.Award.CompleteChallenge(c.UserContext(), req.UserID, &challenge)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to complete challenge", "cause": err.Error()})
		}
		if awarded {
			s.Achievements.CheckChallengeAchievements(c.UserContext(), req.UserID)
		}
	} else if newProgress != participation.Progress {
		if err := db.Model(&models.ChallengeParticipation{}).
			Where("id = ? AND completed = ?", participation.ID, false).
			UpdateColumn("progress", newProgress).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update progress", "cause": err.Error()})
		}
	}

	var current models.ChallengeParticipation
	if err := db.Where("id = ?", participation.ID).First(&current).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to reload participation", "cause": err.Error()})
	}
	return c.JSON(fiber.Map{
		"participation": current,
		"awarded":       awarded,
	})
}

// applyProgress is the participation state machine: progress only climbs,
// anything at or past 100 completes, and a completed row never changes
// again regardless of what gets reported.
func applyProgress(current int, completed bool, reported int) (newProgress int, completesNow bool) {
	if completed {
		return current, false
	}
	if reported >= 100 {
		return 100, true
	}
	if reported > current {
		return reported, false
	}
	return current, false
}

// CreateDefinition adds a challenge (admin only), with an optional icon
// pushed to object storage.
func (s *ChallengeService) CreateDefinition(c *fiber.Ctx) error {
	title := c.FormValue("title")
	description := c.FormValue("description")
	points, errPoints := strconv.ParseInt(c.FormValue("points"), 10, 64)
	startDate, errStart := time.Parse(time.RFC3339, c.FormValue("start_date"))
	endDate, errEnd := time.Parse(time.RFC3339, c.FormValue("end_date"))

	if title == "" || errPoints != nil || points < 0 || errStart != nil || errEnd != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "title, points, start_date and end_date (RFC3339) are required",
		})
	}
	if !endDate.After(startDate) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "end_date must be after start_date"})
	}

	challenge := models.ChallengeDefinition{
		ID:          uuid.NewString(),
		Slug:        slug.Make(title),
		Title:       title,
		Description: description,
		Points:      points,
		StartDate:   startDate,
		EndDate:     endDate,
		Status:      models.ChallengeStatusActive,
	}

	if file, err := c.FormFile("icon"); err == nil {
		url, uploadErr := utils.UploadIcon(file, fmt.Sprintf("challenges/%s", challenge.Slug))
		if uploadErr != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "icon upload failed",
				"cause": uploadErr.Error(),
			})
		}
		challenge.IconURL = url
	}

	if err := s.DB.WithContext(c.UserContext()).Create(&challenge).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "challenge with this title already exists"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create challenge", "cause": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(challenge)
}
