package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"authserver/internal/domain"
)

// CredentialStore owns user identities and password verification.
type CredentialStore struct {
	users domain.UserStore
	cost  int

	dummyOnce sync.Once
	dummyHash string
}

func NewCredentialStore(users domain.UserStore, cost int) *CredentialStore {
	return &CredentialStore{users: users, cost: cost}
}

func (c *CredentialStore) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return c.users.FindByEmail(ctx, email)
}

func (c *CredentialStore) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	return c.users.FindByID(ctx, id)
}

// Create hashes password and stores a new user. The plaintext is never
// persisted.
func (c *CredentialStore) Create(ctx context.Context, email, password, fullName string) (*domain.User, error) {
	hash, err := HashPassword(password, c.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &domain.User{
		Email:        email,
		PasswordHash: hash,
		FullName:     fullName,
	}
	if err := c.users.Create(ctx, u); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return u, nil
}

func (c *CredentialStore) VerifyPassword(plaintext, hash string) (bool, error) {
	return CheckPassword(plaintext, hash)
}

// burnComparison spends the same bcrypt effort as a real check so a login
// for an unknown email takes as long as one with a wrong password.
func (c *CredentialStore) burnComparison(plaintext string) {
	c.dummyOnce.Do(func() {
		c.dummyHash, _ = HashPassword("not-a-real-password", c.cost)
	})
	_, _ = CheckPassword(plaintext, c.dummyHash)
}
