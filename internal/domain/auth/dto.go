package auth

import (
	"time"

	"authserver/internal/domain"
)

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72,bcrypt_len,password_policy"`
	FullName string `json:"fullName" validate:"notblank,max=255"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UserPublic is a user as shown to clients; it never carries the hash.
type UserPublic struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	CreatedAt time.Time `json:"createdAt"`
}

type SessionResponse struct {
	User        *UserPublic `json:"user,omitempty"`
	AccessToken string      `json:"accessToken"`
	ExpiresAt   time.Time   `json:"expiresAt"`
}

func toUserPublic(u *domain.User) *UserPublic {
	if u == nil {
		return nil
	}
	return &UserPublic{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		CreatedAt: u.CreatedAt,
	}
}
