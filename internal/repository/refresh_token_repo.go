package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"authserver/internal/domain"

	"gorm.io/gorm"
)

const refreshTokenBytes = 32

// RefreshTokenRepository provides DB access for refresh tokens.
type RefreshTokenRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRefreshTokenRepository(db *gorm.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db, now: time.Now}
}

// WithClock returns a copy of the repository that reads the current time from now.
func (r *RefreshTokenRepository) WithClock(now func() time.Time) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: r.db, now: now}
}

func (r *RefreshTokenRepository) Issue(ctx context.Context, userID int64, ttl time.Duration) (string, time.Time, error) {
	token, err := generateOpaqueToken()
	if err != nil {
		return "", time.Time{}, err
	}

	row := &domain.RefreshToken{
		Token:     token,
		UserID:    userID,
		ExpiresAt: r.now().UTC().Add(ttl),
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return "", time.Time{}, err
	}
	return token, row.ExpiresAt, nil
}

func (r *RefreshTokenRepository) Consume(ctx context.Context, token string) (*domain.RefreshToken, error) {
	var t domain.RefreshToken
	err := r.db.WithContext(ctx).Where("token = ?", token).Take(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *RefreshTokenRepository) Revoke(ctx context.Context, token string) (bool, error) {
	res := r.db.WithContext(ctx).Where("token = ?", token).Delete(&domain.RefreshToken{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *RefreshTokenRepository) IsExpired(expiresAt time.Time) bool {
	return !r.now().Before(expiresAt)
}

func (r *RefreshTokenRepository) InTx(ctx context.Context, fn func(domain.RefreshTokenStore) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&RefreshTokenRepository{db: tx, now: r.now})
	})
}

// RevokeAllForUser deletes every refresh token owned by userID.
func (r *RefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID int64) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&domain.RefreshToken{})
	return res.RowsAffected, res.Error
}

// DeleteExpired purges tokens whose expiry has passed.
func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", r.now().UTC()).Delete(&domain.RefreshToken{})
	return res.RowsAffected, res.Error
}

func generateOpaqueToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
