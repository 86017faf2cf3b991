package models

import (
	"database/sql"
	"time"
)

type Platform string

const (
	PlatformTiktok    Platform = "tiktok"
	PlatformInstagram Platform = "instagram"
)

func (p Platform) Valid() bool {
	return p == PlatformTiktok || p == PlatformInstagram
}

type ConnectionStatus string

const (
	ConnectionActive       ConnectionStatus = "active"
	ConnectionExpired      ConnectionStatus = "expired"
	ConnectionRevoked      ConnectionStatus = "revoked"
	ConnectionDisconnected ConnectionStatus = "disconnected"
)

// SocialConnection is the stored credential set linking a user to one
// external platform. At most one row exists per (user_id, platform).
type SocialConnection struct {
	ID             int64            `db:"id" json:"id"`
	UserID         int64            `db:"user_id" json:"user_id"`
	Platform       Platform         `db:"platform" json:"platform"`
	PlatformUserID string           `db:"platform_user_id" json:"platform_user_id"`
	DisplayName    string           `db:"display_name" json:"display_name"`
	AccessToken    string           `db:"access_token" json:"-"`
	RefreshToken   sql.NullString   `db:"refresh_token" json:"-"`
	ExpiresAt      sql.NullTime     `db:"expires_at" json:"expires_at"`
	Status         ConnectionStatus `db:"status" json:"status"`
	ConnectedAt    time.Time        `db:"connected_at" json:"connected_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}
