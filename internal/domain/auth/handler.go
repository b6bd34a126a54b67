package auth

import (
	"net/http"
	"strings"
	"time"

	"authserver/internal/pkg/response"
	"authserver/internal/pkg/validator"

	"github.com/gin-gonic/gin"
)

const RefreshCookieName = "refreshToken"

// CookieConfig controls the refresh token cookie.
type CookieConfig struct {
	Path   string
	Secure bool
}

// Handler manages all HTTP interactions for authentication
type Handler struct {
	service *Service
	cookie  CookieConfig
}

func NewHandler(service *Service, cookie CookieConfig) *Handler {
	return &Handler{
		service: service,
		cookie:  cookie,
	}
}

// Register creates an account and starts a session.
// @Router /auth/register [post]
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if !bindAndValidate(c, &req) {
		return
	}

	sess, err := h.service.Register(c.Request.Context(), RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: strings.TrimSpace(req.FullName),
	})
	if err != nil {
		WriteError(c, err)
		return
	}

	h.setRefreshCookie(c, sess.RefreshToken)
	response.Success(c, http.StatusCreated, SessionResponse{
		User:        toUserPublic(sess.User),
		AccessToken: sess.AccessToken,
		ExpiresAt:   sess.AccessExpiresAt,
	})
}

// Login starts a session for an existing account.
// @Router /auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	sess, err := h.service.Login(c.Request.Context(), LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		WriteError(c, err)
		return
	}

	h.setRefreshCookie(c, sess.RefreshToken)
	response.Success(c, http.StatusOK, SessionResponse{
		User:        toUserPublic(sess.User),
		AccessToken: sess.AccessToken,
		ExpiresAt:   sess.AccessExpiresAt,
	})
}

// Refresh exchanges the refresh token cookie for a new token pair.
// @Router /auth/refresh [post]
func (h *Handler) Refresh(c *gin.Context) {
	refreshRaw, _ := c.Cookie(RefreshCookieName)

	sess, err := h.service.Refresh(c.Request.Context(), refreshRaw)
	if err != nil {
		WriteError(c, err)
		return
	}

	h.setRefreshCookie(c, sess.RefreshToken)
	response.Success(c, http.StatusOK, SessionResponse{
		AccessToken: sess.AccessToken,
		ExpiresAt:   sess.AccessExpiresAt,
	})
}

// Logout always succeeds and always clears the cookie.
// @Router /auth/logout [post]
func (h *Handler) Logout(c *gin.Context) {
	refreshRaw, _ := c.Cookie(RefreshCookieName)
	h.service.Logout(c.Request.Context(), refreshRaw)

	h.clearRefreshCookie(c)
	response.Success(c, http.StatusOK, gin.H{
		"message": "Logged out successfully",
	})
}

// Protected is a minimal gated endpoint that echoes the caller's identity.
// @Router /protected [get]
func (h *Handler) Protected(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{
		"message": "This is a protected route",
		"userId":  c.GetInt64("user_id"),
	})
}

// GetMe returns the authenticated user's profile.
// @Router /users/me [get]
func (h *Handler) GetMe(c *gin.Context) {
	userID := c.GetInt64("user_id")
	if userID == 0 {
		WriteError(c, ErrUnauthenticated)
		return
	}

	user, err := h.service.CurrentUser(c.Request.Context(), userID)
	if err != nil {
		WriteError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"user": toUserPublic(user),
	})
}

// WriteError renders err as a stable error kind and message. Internal
// details never reach the client.
func WriteError(c *gin.Context, err error) {
	kind := KindOf(err)
	status, message := kind.Status()
	response.Error(c, status, string(kind), message)
}

func bindAndValidate(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "Invalid request body")
		return false
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(c, errs)
		return false
	}
	return true
}

func (h *Handler) setRefreshCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(RefreshCookieName, token, int(h.service.RefreshTTL()/time.Second), h.cookie.Path, "", h.cookie.Secure, true)
}

func (h *Handler) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(RefreshCookieName, "", -1, h.cookie.Path, "", h.cookie.Secure, true)
}
