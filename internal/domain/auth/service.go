package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"authserver/internal/domain"
	"authserver/internal/metrics"
	"authserver/internal/telemetry"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Session is what a successful register, login or refresh hands back to the
// client. User is nil for refresh.
type Session struct {
	User *domain.User
	TokenPair
}

type RegisterInput struct {
	Email    string
	Password string
	FullName string
}

type LoginInput struct {
	Email    string
	Password string
}

// Service drives the session lifecycle: register, login, refresh and logout.
// It is the only writer of refresh tokens.
type Service struct {
	credentials *CredentialStore
	refresh     domain.RefreshTokenStore
	issuer      *TokenIssuer
	timeout     time.Duration
	log         zerolog.Logger
	tracer      trace.Tracer
}

func NewService(
	credentials *CredentialStore,
	refresh domain.RefreshTokenStore,
	issuer *TokenIssuer,
	storeTimeout time.Duration,
	log zerolog.Logger,
) *Service {
	return &Service{
		credentials: credentials,
		refresh:     refresh,
		issuer:      issuer,
		timeout:     storeTimeout,
		log:         log.With().Str("component", "auth").Logger(),
		tracer:      telemetry.Tracer("auth"),
	}
}

// RefreshTTL is the lifetime of refresh tokens issued by this service.
func (s *Service) RefreshTTL() time.Duration {
	return s.issuer.RefreshTTL()
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (sess *Session, err error) {
	ctx, end := s.begin(ctx, "register")
	defer func() { end(err) }()

	existing, err := s.findByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateEmail
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	user, err := s.credentials.Create(storeCtx, in.Email, in.Password, in.FullName)
	cancel()
	if err != nil {
		// The unique index catches a registration that raced past the check above.
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, ErrDuplicateEmail
		}
		return nil, s.internal(ctx, "create user", err)
	}

	pair, err := s.issue(ctx, s.issuer, user.ID)
	if err != nil {
		return nil, err
	}

	s.log.Info().Int64("user_id", user.ID).Msg("user registered")
	return &Session{User: user, TokenPair: *pair}, nil
}

// Login verifies credentials. An unknown email and a wrong password are
// indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, in LoginInput) (sess *Session, err error) {
	ctx, end := s.begin(ctx, "login")
	defer func() { end(err) }()

	user, err := s.findByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.credentials.burnComparison(in.Password)
		return nil, ErrInvalidCredentials
	}

	ok, err := s.credentials.VerifyPassword(in.Password, user.PasswordHash)
	if err != nil {
		return nil, s.internal(ctx, "verify password", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	pair, err := s.issue(ctx, s.issuer, user.ID)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, TokenPair: *pair}, nil
}

// Refresh rotates a refresh token: the presented value is deleted before a
// new pair is issued, all inside one transaction. Of several concurrent calls
// with the same token exactly one can delete the row; the rest get
// ErrInvalidToken.
func (s *Service) Refresh(ctx context.Context, token string) (sess *Session, err error) {
	ctx, end := s.begin(ctx, "refresh")
	defer func() { end(err) }()

	if strings.TrimSpace(token) == "" {
		return nil, ErrUnauthenticated
	}

	txCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		pair    *TokenPair
		userID  int64
		expired bool
	)
	err = s.refresh.InTx(txCtx, func(store domain.RefreshTokenStore) error {
		row, err := store.Consume(txCtx, token)
		if err != nil {
			return fmt.Errorf("consume refresh token: %w", err)
		}
		if row == nil {
			return ErrInvalidToken
		}

		if store.IsExpired(row.ExpiresAt) {
			if _, err := store.Revoke(txCtx, token); err != nil {
				return fmt.Errorf("revoke expired refresh token: %w", err)
			}
			// Commit the delete; the caller still sees TokenExpired.
			expired = true
			return nil
		}

		deleted, err := store.Revoke(txCtx, token)
		if err != nil {
			return fmt.Errorf("revoke refresh token: %w", err)
		}
		if !deleted {
			return ErrInvalidToken
		}

		pair, err = s.issuer.WithStore(store).IssueTokenPair(txCtx, row.UserID)
		if err != nil {
			return err
		}
		userID = row.UserID
		return nil
	})
	switch {
	case errors.Is(err, ErrInvalidToken):
		return nil, ErrInvalidToken
	case err != nil:
		return nil, s.internal(ctx, "rotate refresh token", err)
	case expired:
		return nil, ErrTokenExpired
	}

	trace.SpanFromContext(ctx).SetAttributes(attribute.Int64("user_id", userID))
	return &Session{TokenPair: *pair}, nil
}

// Logout revokes token if one was presented. Revocation failures are logged
// and swallowed so the client can always clear its own state.
func (s *Service) Logout(ctx context.Context, token string) {
	ctx, end := s.begin(ctx, "logout")
	defer end(nil)

	if strings.TrimSpace(token) == "" {
		return
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.refresh.Revoke(storeCtx, token); err != nil {
		s.log.Warn().Err(err).Msg("logout: refresh token revoke failed")
	}
}

// CurrentUser loads the profile of an authenticated user.
func (s *Service) CurrentUser(ctx context.Context, userID int64) (*domain.User, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.credentials.FindByID(storeCtx, userID)
	if err != nil {
		return nil, s.internal(ctx, "find user", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *Service) findByEmail(ctx context.Context, email string) (*domain.User, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.credentials.FindByEmail(storeCtx, email)
	if err != nil {
		return nil, s.internal(ctx, "find user by email", err)
	}
	return user, nil
}

func (s *Service) issue(ctx context.Context, issuer *TokenIssuer, userID int64) (*TokenPair, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	pair, err := issuer.IssueTokenPair(storeCtx, userID)
	if err != nil {
		return nil, s.internal(ctx, "issue token pair", err)
	}
	return pair, nil
}

// internal logs err and wraps it so that it classifies as ErrInternal.
func (s *Service) internal(ctx context.Context, op string, err error) error {
	s.log.Error().Err(err).Str("op", op).
		Str("trace_id", trace.SpanFromContext(ctx).SpanContext().TraceID().String()).
		Msg("auth operation failed")
	if errors.Is(err, ErrInternal) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrInternal, op, err)
}

// begin opens a span for operation and returns a closer that records the
// outcome on the span and in metrics.
func (s *Service) begin(ctx context.Context, operation string) (context.Context, func(error)) {
	ctx, span := s.tracer.Start(ctx, "auth."+operation)
	return ctx, func(err error) {
		outcome := "ok"
		if err != nil {
			outcome = string(KindOf(err))
			span.SetStatus(codes.Error, outcome)
		}
		span.SetAttributes(attribute.String("auth.outcome", outcome))
		metrics.AuthOperations.WithLabelValues(operation, outcome).Inc()
		span.End()
	}
}
