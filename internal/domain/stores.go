package domain

import (
	"context"
	"time"
)

// UserStore persists users. Lookups return (nil, nil) when nothing matches.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
}

// RefreshTokenStore persists refresh tokens.
type RefreshTokenStore interface {
	// Issue generates a random token for userID, stores it with an expiry of
	// now+ttl and returns it.
	Issue(ctx context.Context, userID int64, ttl time.Duration) (string, time.Time, error)
	// Consume looks a token up without deleting it. It returns (nil, nil)
	// when the token is unknown.
	Consume(ctx context.Context, token string) (*RefreshToken, error)
	// Revoke deletes the token. Deleting an unknown token is not an error;
	// the boolean reports whether a row was removed.
	Revoke(ctx context.Context, token string) (bool, error)
	IsExpired(expiresAt time.Time) bool
	// InTx runs fn against a store bound to a single transaction.
	InTx(ctx context.Context, fn func(RefreshTokenStore) error) error
}
