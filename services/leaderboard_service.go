package services

import (
	"errors"
	"log"
	"strconv"

	"eco-engage-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Leaderboard periods map one-to-one onto ledger columns. Rank is always
// computed on read; no rank column is ever stored or rewritten.
var periodColumns = map[string]string{
	"weekly":  "weekly_points",
	"monthly": "monthly_points",
	"yearly":  "yearly_points",
	"total":   "total_points",
}

type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Points      int64  `json:"points"`
}

type LeaderboardService struct {
	DB       *gorm.DB
	Identity IdentityPort
}

func NewLeaderboardService(db *gorm.DB, identity IdentityPort) *LeaderboardService {
	return &LeaderboardService{DB: db, Identity: identity}
}

// TopUsers returns the ranked list for a period. Ordering ties break on
// ascending user id so pages are deterministic; identity data is advisory
// and falls back to a placeholder when the lookup misses.
func (s *LeaderboardService) TopUsers(c *fiber.Ctx) error {
	period := c.Query("period", "total")
	column, ok := periodColumns[period]
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "period must be one of weekly, monthly, yearly, total",
		})
	}
	limit, err := parseLimit(c.Query("limit", "10"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var ledgers []models.PointsLedger
	if err := s.DB.WithContext(c.UserContext()).
		Order(column + " DESC, external_user_id ASC").Limit(limit).Find(&ledgers).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to read leaderboard",
			"cause": err.Error(),
		})
	}

	entries := make([]LeaderboardEntry, len(ledgers))
	for i, ledger := range ledgers {
		entry := LeaderboardEntry{
			UserID: ledger.ExternalUserID,
			Points: periodPoints(&ledger, period),
		}
		identity, err := s.Identity.GetUser(c.UserContext(), ledger.ExternalUserID)
		if err != nil {
			log.Printf("⚠️ Identity lookup failed for %s, using placeholder: %v", ledger.ExternalUserID, err)
			entry.Username = PlaceholderName(ledger.ExternalUserID)
			entry.DisplayName = entry.Username
		} else {
			entry.Username = identity.Username
			entry.DisplayName = identity.DisplayName
		}
		entries[i] = entry
	}
	assignDenseRanks(entries)

	return c.JSON(fiber.Map{
		"period":  period,
		"entries": entries,
	})
}

// UserRank returns the user's standing: 1 + count(total_points > mine).
// Users tied on total points share the same rank.
func (s *LeaderboardService) UserRank(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "userId is required"})
	}

	db := s.DB.WithContext(c.UserContext())

	var ledger models.PointsLedger
	if err := db.Where("external_user_id = ?", userID).First(&ledger).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no points recorded for this user"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error", "cause": err.Error()})
	}

	var ahead int64
	if err := db.Model(&models.PointsLedger{}).
		Where("total_points > ?", ledger.TotalPoints).
		Count(&ahead).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to compute rank", "cause": err.Error()})
	}

	return c.JSON(fiber.Map{
		"user_id":        userID,
		"rank":           ahead + 1,
		"total_points":   ledger.TotalPoints,
		"weekly_points":  ledger.WeeklyPoints,
		"monthly_points": ledger.MonthlyPoints,
		"yearly_points":  ledger.YearlyPoints,
	})
}

// assignDenseRanks writes ranks into a list already ordered by points
// descending from the top of the board: equal points share a rank, the
// next distinct value takes 1 + the number of users ahead of it.
func assignDenseRanks(entries []LeaderboardEntry) {
	rank := 0
	for i := range entries {
		if i == 0 || entries[i].Points < entries[i-1].Points {
			rank = i + 1
		}
		entries[i].Rank = rank
	}
}

// parseLimit validates the page size. Out-of-range but numeric values clamp
// to the 100-row cap; garbage is the caller's problem and gets a 400.
func parseLimit(raw string) (int, error) {
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, errors.New("limit must be a positive integer")
	}
	if limit > 100 {
		return 100, nil
	}
	return limit, nil
}

func periodPoints(ledger *models.PointsLedger, period string) int64 {
	switch period {
	case "weekly":
		return ledger.WeeklyPoints
	case "monthly":
		return ledger.MonthlyPoints
	case "yearly":
		return ledger.YearlyPoints
	default:
		return ledger.TotalPoints
	}
}
