package domain

import "time"

// RefreshToken is one issued refresh token.
//
// A row exists only while the token is usable: rotation, logout and expiry
// detection all delete it, so a deleted value can never validate again.
// UserID is a plain reference; the user row is not owned by the token.
type RefreshToken struct {
	Token     string    `json:"-" gorm:"primaryKey;size:64"`
	UserID    int64     `json:"user_id" gorm:"index;not null"`
	ExpiresAt time.Time `json:"expires_at" gorm:"index;not null"`
}

func (RefreshToken) TableName() string { return "refresh_tokens" }
