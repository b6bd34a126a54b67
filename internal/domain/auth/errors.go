package auth

import (
	"errors"
	"net/http"
)

var (
	ErrDuplicateEmail     = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrUserNotFound       = errors.New("user not found")
	ErrInternal           = errors.New("internal error")
)

// Kind is the stable, machine-readable name of a failure reported to clients.
type Kind string

const (
	KindDuplicateEmail     Kind = "DUPLICATE_EMAIL"
	KindInvalidCredentials Kind = "INVALID_CREDENTIALS"
	KindUnauthenticated    Kind = "UNAUTHENTICATED"
	KindInvalidToken       Kind = "INVALID_TOKEN"
	KindTokenExpired       Kind = "TOKEN_EXPIRED"
	KindUserNotFound       Kind = "USER_NOT_FOUND"
	KindInternal           Kind = "INTERNAL_ERROR"
)

type failure struct {
	status  int
	message string
}

var failures = map[Kind]failure{
	KindDuplicateEmail:     {http.StatusBadRequest, "User with this email already exists"},
	KindInvalidCredentials: {http.StatusUnauthorized, "Invalid email or password"},
	KindUnauthenticated:    {http.StatusUnauthorized, "Authentication required"},
	KindInvalidToken:       {http.StatusUnauthorized, "Invalid token"},
	KindTokenExpired:       {http.StatusUnauthorized, "Token expired"},
	KindUserNotFound:       {http.StatusNotFound, "User not found"},
	KindInternal:           {http.StatusInternalServerError, "Internal server error"},
}

// KindOf classifies err. Anything not produced deliberately by this package
// is reported as KindInternal.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrDuplicateEmail):
		return KindDuplicateEmail
	case errors.Is(err, ErrInvalidCredentials):
		return KindInvalidCredentials
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated
	case errors.Is(err, ErrInvalidToken):
		return KindInvalidToken
	case errors.Is(err, ErrTokenExpired):
		return KindTokenExpired
	case errors.Is(err, ErrUserNotFound):
		return KindUserNotFound
	default:
		return KindInternal
	}
}

// Status returns the HTTP status and client-facing message for k.
func (k Kind) Status() (int, string) {
	f, ok := failures[k]
	if !ok {
		f = failures[KindInternal]
	}
	return f.status, f.message
}
