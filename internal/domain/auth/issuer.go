package auth

import (
	"context"
	"fmt"
	"time"

	"authserver/internal/domain"
)

// TokenPair is an access token together with the refresh token that can
// renew it.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// TokenIssuer mints access/refresh token pairs.
type TokenIssuer struct {
	signer     AccessTokenSigner
	store      domain.RefreshTokenStore
	refreshTTL time.Duration
}

func NewTokenIssuer(signer AccessTokenSigner, store domain.RefreshTokenStore, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{signer: signer, store: store, refreshTTL: refreshTTL}
}

// WithStore returns an issuer that records refresh tokens in store, typically
// a transaction-bound one.
func (i *TokenIssuer) WithStore(store domain.RefreshTokenStore) *TokenIssuer {
	return &TokenIssuer{signer: i.signer, store: store, refreshTTL: i.refreshTTL}
}

func (i *TokenIssuer) RefreshTTL() time.Duration {
	return i.refreshTTL
}

// IssueTokenPair returns both tokens or neither: the access token is only
// handed out once the refresh token row has been written.
func (i *TokenIssuer) IssueTokenPair(ctx context.Context, userID int64) (*TokenPair, error) {
	access, accessExp, err := i.signer.GenerateToken(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: sign access token: %w", ErrInternal, err)
	}

	refresh, refreshExp, err := i.store.Issue(ctx, userID, i.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: persist refresh token: %w", ErrInternal, err)
	}

	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}
