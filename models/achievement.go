package models

import (
	"time"
)

// CriteriaType tags how an achievement is earned. The evaluator maps each
// tag to a concrete criteria variant; an unknown tag is a construction error,
// never a silent false.
type CriteriaType string

const (
	CriteriaPoints          CriteriaType = "points"
	CriteriaChallenges      CriteriaType = "challenges"
	CriteriaCarbonReduction CriteriaType = "carbon_reduction"
	CriteriaDuration        CriteriaType = "duration"
	CriteriaHelpingOthers   CriteriaType = "helping_others"
)

// AchievementDefinition: static catalog entry. Immutable after creation.
type AchievementDefinition struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	Slug        string `gorm:"uniqueIndex;not null" json:"slug"` // e.g., "challenge-starter"
	Title       string `gorm:"not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	Points      int64  `gorm:"not null" json:"points"`
	IconURL     string `gorm:"type:text" json:"icon_url"`

	CriteriaType      CriteriaType `gorm:"type:varchar(32);not null;index" json:"criteria_type"`
	CriteriaValue     float64      `gorm:"not null" json:"criteria_value"`
	CriteriaThreshold *float64     `json:"criteria_threshold,omitempty"` // duration only; nil = default

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// AchievementUnlock: awarded instance. At most one per (user, achievement),
// enforced by the composite unique index — the award path relies on the
// duplicate-key error as its race safety net. Rows are never deleted.
type AchievementUnlock struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string    `gorm:"uniqueIndex:idx_user_achievement;not null" json:"external_user_id"`
	AchievementID  string    `gorm:"uniqueIndex:idx_user_achievement;not null" json:"achievement_id"`
	UnlockedAt     time.Time `gorm:"not null" json:"unlocked_at"`
}

// SeedAchievements is the shipped catalog, upserted at boot (by slug).
var SeedAchievements = []AchievementDefinition{
	{
		Slug:          "first-steps",
		Title:         "First Steps",
		Description:   "Earned your first 100 points",
		Points:        50,
		CriteriaType:  CriteriaPoints,
		CriteriaValue: 100,
	},
	{
		Slug:          "point-collector",
		Title:         "Point Collector",
		Description:   "Reached 1,000 points",
		Points:        150,
		CriteriaType:  CriteriaPoints,
		CriteriaValue: 1000,
	},
	{
		Slug:          "challenge-starter",
		Title:         "Challenge Starter",
		Description:   "Completed your first challenge",
		Points:        100,
		CriteriaType:  CriteriaChallenges,
		CriteriaValue: 1,
	},
	{
		Slug:          "challenge-veteran",
		Title:         "Challenge Veteran",
		Description:   "Completed 10 challenges",
		Points:        300,
		CriteriaType:  CriteriaChallenges,
		CriteriaValue: 10,
	},
	{
		Slug:          "carbon-cutter",
		Title:         "Carbon Cutter",
		Description:   "Reduced your carbon footprint by 20%",
		Points:        250,
		CriteriaType:  CriteriaCarbonReduction,
		CriteriaValue: 20,
	},
	{
		Slug:          "steady-reducer",
		Title:         "Steady Reducer",
		Description:   "Kept a low footprint for 3 months straight",
		Points:        400,
		CriteriaType:  CriteriaDuration,
		CriteriaValue: 3,
	},
	{
		Slug:          "community-helper",
		Title:         "Community Helper",
		Description:   "Helped 5 other members",
		Points:        200,
		CriteriaType:  CriteriaHelpingOthers,
		CriteriaValue: 5,
	},
}
