package models

import (
	"time"
)

// MirroredUser is the local copy of a profile-service user, maintained by
// the identity sync worker. The ledger engine never writes user identity;
// this table only speeds up leaderboard joins and survives profile-service
// outages.
type MirroredUser struct {
	ID             string  `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string  `gorm:"uniqueIndex;not null" json:"external_user_id"`
	Username       string  `gorm:"index;not null" json:"username"`
	Email          string  `gorm:"not null" json:"email"`
	DisplayName    string  `json:"display_name"`
	FirstName      *string `json:"first_name,omitempty"`
	LastName       *string `json:"last_name,omitempty"`

	// Counter maintained by the profile service; input to the
	// helping_others achievement criteria.
	UsersHelped int64 `gorm:"default:0" json:"users_helped"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
