package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
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

type AchievementService struct {
	DB       *gorm.DB
	Award    *AwardService
	Identity IdentityPort
	Carbon   *CarbonClient
}

func NewAchievementService(db *gorm.DB, award *AwardService, identity IdentityPort, carbon *CarbonClient) *AchievementService {
	return &AchievementService{DB: db, Award: award, Identity: identity, Carbon: carbon}
}

// SeedCatalog upserts the shipped achievement catalog (by slug). Existing
// definitions are left untouched — they are immutable post-creation.
func (s *AchievementService) SeedCatalog() error {
	for i := range models.SeedAchievements {
		def := models.SeedAchievements[i]
		def.ID = uuid.NewString()
		if err := s.DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "slug"}},
			DoNothing: true,
		}).Create(&def).Error; err != nil {
			return fmt.Errorf("seed achievement %s: %w", def.Slug, err)
		}
	}
	return nil
}

// ListDefinitions returns the full catalog ordered by (criteria_type,
// criteria_value) so clients render related achievements together.
func (s *AchievementService) ListDefinitions(c *fiber.Ctx) error {
	var defs []models.AchievementDefinition
	if err := s.DB.WithContext(c.UserContext()).
		Order("criteria_type ASC, criteria_value ASC").Find(&defs).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list achievements",
			"cause": err.Error(),
		})
	}
	return c.JSON(defs)
}

// GetUserUnlocks returns the user's unlocked achievements with unlock times.
func (s *AchievementService) GetUserUnlocks(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "userId is required"})
	}

	type unlockedAchievement struct {
		models.AchievementDefinition
		UnlockedAt time.Time `json:"unlocked_at"`
	}
	var rows []unlockedAchievement
	err := s.DB.WithContext(c.UserContext()).Model(&models.AchievementUnlock{}).
		Select("achievement_definitions.*, achievement_unlocks.unlocked_at").
		Joins("INNER JOIN achievement_definitions ON achievement_definitions.id = achievement_unlocks.achievement_id").
		Where("achievement_unlocks.external_user_id = ?", userID).
		Order("achievement_unlocks.unlocked_at DESC").
		Scan(&rows).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list unlocks",
			"cause": err.Error(),
		})
	}
	return c.JSON(rows)
}

// CheckAchievements evaluates every unearned achievement for the user and
// awards the ones whose criteria pass. Carbon history may come inline with
// the request; otherwise it is fetched from the carbon service, and carbon
// criteria are skipped when neither is available.
func (s *AchievementService) CheckAchievements(c *fiber.Ctx) error {
	var req struct {
		UserID          string        `json:"userId"`
		CarbonReduction *float64      `json:"carbonReduction,omitempty"`
		CarbonData      []CarbonEntry `json:"carbonData,omitempty"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
	}
	if req.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "userId is required"})
	}

	ctx := c.UserContext()

	// Awarding needs a real user; identity failures are not advisory here.
	if _, err := s.Identity.GetUser(ctx, req.UserID); err != nil {
		var upstream *UpstreamError
		if errors.As(err, &upstream) {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "identity store unavailable", "cause": err.Error()})
		}
		if errors.Is(err, ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "identity lookup failed", "cause": err.Error()})
	}

	snap, err := s.buildSnapshot(ctx, req.UserID, req.CarbonData, req.CarbonReduction)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to build user snapshot", "cause": err.Error()})
	}

	newAchievements, totalAwarded, err := s.evaluateUnearned(ctx, req.UserID, snap, "")
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "achievement check failed", "cause": err.Error()})
	}

	return c.JSON(fiber.Map{
		"newAchievements": newAchievements,
		"totalAwarded":    totalAwarded,
	})
}

// CheckChallengeAchievements re-runs the challenges-type criteria after a
// completion so threshold achievements unlock without waiting for the next
// client-driven check. Carbon data is not fetched on this path.
func (s *AchievementService) CheckChallengeAchievements(ctx context.Context, userID string) {
	snap, err := s.buildSnapshot(ctx, userID, nil, nil)
	if err != nil {
		log.Printf("⚠️ Post-completion snapshot failed for %s: %v", userID, err)
		return
	}
	if _, _, err := s.evaluateUnearned(ctx, userID, snap, models.CriteriaChallenges); err != nil {
		log.Printf("⚠️ Post-completion achievement check failed for %s: %v", userID, err)
	}
}

// buildSnapshot assembles the stats the criteria variants evaluate against.
// Inline carbon data wins over a carbon-service fetch; when both are absent
// the snapshot marks carbon unavailable instead of failing the sweep.
func (s *AchievementService) buildSnapshot(ctx context.Context, userID string, inline []CarbonEntry, reductionOverride *float64) (*UserSnapshot, error) {
	snap := &UserSnapshot{
		Now:                     time.Now(),
		CarbonReductionOverride: reductionOverride,
	}

	var ledger models.PointsLedger
	err := s.DB.WithContext(ctx).Where("external_user_id = ?", userID).First(&ledger).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	snap.TotalPoints = ledger.TotalPoints

	if err := s.DB.WithContext(ctx).Model(&models.ChallengeParticipation{}).
		Where("external_user_id = ? AND completed = ?", userID, true).
		Count(&snap.CompletedChallenges).Error; err != nil {
		return nil, err
	}

	if identity, err := s.Identity.GetUser(ctx, userID); err == nil {
		snap.UsersHelped = identity.UsersHelped
	}

	if len(inline) > 0 {
		snap.CarbonHistory = sortedByDate(inline)
		snap.CarbonAvailable = true
		return snap, nil
	}

	history, err := s.Carbon.GetHistory(ctx, userID)
	if err != nil {
		var upstream *UpstreamError
		if errors.As(err, &upstream) {
			log.Printf("⚠️ Carbon history unavailable for %s, skipping carbon criteria: %v", userID, err)
			return snap, nil
		}
		return nil, err
	}
	snap.CarbonHistory = history
	snap.CarbonAvailable = true
	return snap, nil
}

// evaluateUnearned awards every unearned achievement whose criteria pass.
// only restricts the sweep to a single criteria type when non-empty.
func (s *AchievementService) evaluateUnearned(ctx context.Context, userID string, snap *UserSnapshot, only models.CriteriaType) ([]models.AchievementDefinition, int64, error) {
	query := s.DB.WithContext(ctx).Order("criteria_type ASC, criteria_value ASC")
	if only != "" {
		query = query.Where("criteria_type = ?", only)
	}
	var defs []models.AchievementDefinition
	if err := query.Find(&defs).Error; err != nil {
		return nil, 0, err
	}

	var unlockedIDs []string
	if err := s.DB.WithContext(ctx).Model(&models.AchievementUnlock{}).
		Where("external_user_id = ?", userID).
		Pluck("achievement_id", &unlockedIDs).Error; err != nil {
		return nil, 0, err
	}
	unlocked := make(map[string]bool, len(unlockedIDs))
	for _, id := range unlockedIDs {
		unlocked[id] = true
	}

	newAchievements := []models.AchievementDefinition{}
	var totalAwarded int64
	for i := range defs {
		def := &defs[i]
		if unlocked[def.ID] {
			continue
		}
		criteria, err := CriteriaFromDefinition(def)
		if err != nil {
			log.Printf("⚠️ Skipping achievement %s: %v", def.Slug, err)
			continue
		}
		if NeedsCarbon(criteria) && !snap.CarbonAvailable && snap.CarbonReductionOverride == nil {
			continue
		}
		if !criteria.Evaluate(snap) {
			continue
		}
		awarded, err := s.Award.GrantAchievement(ctx, userID, def)
		if err != nil {
			return nil, 0, err
		}
		if awarded {
			newAchievements = append(newAchievements, *def)
			totalAwarded += def.Points
			snap.TotalPoints += def.Points // points criteria may cascade within the sweep
		}
	}
	return newAchievements, totalAwarded, nil
}

// CreateDefinition adds a catalog entry (admin only). The criteria tag is
// validated by constructing the evaluator before anything is written; an
// optional multipart icon is pushed to object storage.
func (s *AchievementService) CreateDefinition(c *fiber.Ctx) error {
	title := c.FormValue("title")
	description := c.FormValue("description")
	criteriaType := models.CriteriaType(c.FormValue("criteria_type"))
	points, errPoints := strconv.ParseInt(c.FormValue("points"), 10, 64)
	criteriaValue, errValue := strconv.ParseFloat(c.FormValue("criteria_value"), 64)

	if title == "" || errPoints != nil || errValue != nil || points < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "title, points and criteria_value are required",
		})
	}

	def := models.AchievementDefinition{
		ID:            uuid.NewString(),
		Slug:          slug.Make(title),
		Title:         title,
		Description:   description,
		Points:        points,
		CriteriaType:  criteriaType,
		CriteriaValue: criteriaValue,
	}
	if raw := c.FormValue("criteria_threshold"); raw != "" {
		threshold, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid criteria_threshold"})
		}
		def.CriteriaThreshold = &threshold
	}

	if _, err := CriteriaFromDefinition(&def); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if file, err := c.FormFile("icon"); err == nil {
		url, uploadErr := utils.UploadIcon(file, fmt.Sprintf("achievements/%s", def.Slug))
		if uploadErr != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "icon upload failed",
				"cause": uploadErr.Error(),
			})
		}
		def.IconURL = url
	}

	if err := s.DB.WithContext(c.UserContext()).Create(&def).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "achievement with this title already exists"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create achievement", "cause": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(def)
}

func sortedByDate(entries []CarbonEntry) []CarbonEntry {
	out := make([]CarbonEntry, len(entries))
	copy(out, entries)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}
