package auth

import "time"

// AccessTokenSigner mints signed, self-contained access tokens.
type AccessTokenSigner interface {
	GenerateToken(userID int64) (string, time.Time, error)
}
