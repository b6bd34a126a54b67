package middleware

import (
	"errors"
	"strings"

	"authserver/internal/domain/auth"
	"authserver/internal/metrics"
	"authserver/internal/pkg/jwt"

	"github.com/gin-gonic/gin"
)

const bearerPrefix = "Bearer "

// TokenValidator verifies an access token without touching storage.
type TokenValidator interface {
	ValidateToken(tokenStr string) (*jwt.Claims, error)
}

// JWTAuth admits a request only if it carries a valid bearer access token,
// and stores the caller's id under "user_id". It never reads the database.
func JWTAuth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(h, bearerPrefix) {
			reject(c, auth.ErrUnauthenticated)
			return
		}

		tokenStr := strings.TrimSpace(strings.TrimPrefix(h, bearerPrefix))
		if tokenStr == "" {
			reject(c, auth.ErrUnauthenticated)
			return
		}

		claims, err := validator.ValidateToken(tokenStr)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				reject(c, auth.ErrTokenExpired)
				return
			}
			reject(c, auth.ErrInvalidToken)
			return
		}

		c.Set("user_id", claims.UserID)
		c.Next()
	}
}

func reject(c *gin.Context, err error) {
	metrics.GateRejections.WithLabelValues(string(auth.KindOf(err))).Inc()
	auth.WriteError(c, err)
	c.Abort()
}
