package models

import (
	"time"
)

type ChallengeStatus string

const (
	ChallengeStatusActive    ChallengeStatus = "active"
	ChallengeStatusCompleted ChallengeStatus = "completed"
	ChallengeStatusCancelled ChallengeStatus = "cancelled"
)

// ChallengeDefinition: a time-boxed challenge users can join.
type ChallengeDefinition struct {
	ID          string          `gorm:"primaryKey;type:uuid" json:"id"`
	Slug        string          `gorm:"uniqueIndex;not null" json:"slug"`
	Title       string          `gorm:"not null" json:"title"`
	Description string          `gorm:"type:text" json:"description"`
	Points      int64           `gorm:"not null" json:"points"`
	IconURL     string          `gorm:"type:text" json:"icon_url"`
	StartDate   time.Time       `gorm:"not null;index" json:"start_date"`
	EndDate     time.Time       `gorm:"not null" json:"end_date"`
	Status      ChallengeStatus `gorm:"type:varchar(16);default:'active'" json:"status"`

	Timestamps
}

// ChallengeParticipation: per-user challenge state.
// completed flips false→true exactly once and never reverts; progress only
// moves up. The (user, challenge) unique index makes join idempotent.
type ChallengeParticipation struct {
	ID             string     `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string     `gorm:"uniqueIndex:idx_user_challenge;not null" json:"external_user_id"`
	ChallengeID    string     `gorm:"uniqueIndex:idx_user_challenge;not null" json:"challenge_id"`
	Progress       int        `gorm:"default:0" json:"progress"` // 0–100
	Completed      bool       `gorm:"default:false" json:"completed"`
	JoinedAt       time.Time  `gorm:"not null" json:"joined_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}
