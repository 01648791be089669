package models

import (
	"time"

	"gorm.io/gorm"
)

// PointsLedger holds the denormalized point counters for one user.
// Exactly one row per user; every award credits all four counters in
// the same transaction. The weekly/monthly/yearly columns are zeroed
// by the period reset tasks, total_points never resets.
type PointsLedger struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex;not null" json:"external_user_id"` // links to profile service

	TotalPoints   int64 `json:"total_points" gorm:"default:0"`
	WeeklyPoints  int64 `json:"weekly_points" gorm:"default:0"`
	MonthlyPoints int64 `json:"monthly_points" gorm:"default:0"`
	YearlyPoints  int64 `json:"yearly_points" gorm:"default:0"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// PeriodReset marks that the counter for (period, period_start) has been
// zeroed. Whoever inserts the marker performs the reset; the unique index
// makes double invocation in the same period a no-op.
type PeriodReset struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	Period      string    `gorm:"uniqueIndex:idx_period_window;type:varchar(16);not null" json:"period"`
	PeriodStart time.Time `gorm:"uniqueIndex:idx_period_window;not null" json:"period_start"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// DigestLog records when a user last received the engagement digest so the
// scheduled job stays idempotent when it fires twice in the same window.
type DigestLog struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string    `gorm:"uniqueIndex;not null" json:"external_user_id"`
	LastSentAt     time.Time `gorm:"not null" json:"last_sent_at"`
}
