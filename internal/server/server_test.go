package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"authserver/internal/config"
	"authserver/internal/database"
	"authserver/internal/domain"
	"authserver/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details []struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"details"`
	} `json:"error"`
}

type sessionData struct {
	User *struct {
		ID       int64  `json:"id"`
		Email    string `json:"email"`
		FullName string `json:"fullName"`
	} `json:"user"`
	AccessToken string `json:"accessToken"`
}

type testEnv struct {
	t   *testing.T
	db  *gorm.DB
	srv *Server
	h   http.Handler
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg, err := config.LoadFrom(map[string]string{
		"APP_ENV":          "test",
		"DATABASE_URL":     ":memory:",
		"JWT_SECRET":       "test-secret",
		"BCRYPT_COST":      "4",
		"CLEANUP_INTERVAL": "0",
	})
	require.NoError(t, err)

	db, err := database.Connect(cfg.DatabaseURL)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(context.Background(), db))
	t.Cleanup(func() { _ = database.Close(db) })

	srv := New(cfg, db, zerolog.Nop())
	return &testEnv{t: t, db: db, srv: srv, h: srv.Handler()}
}

func (e *testEnv) do(method, path string, body any, cookie, bearer string) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: "refreshToken", Value: cookie})
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	e.h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func session(t *testing.T, w *httptest.ResponseRecorder) sessionData {
	t.Helper()
	env := decode(t, w)
	require.True(t, env.Success, w.Body.String())
	var s sessionData
	require.NoError(t, json.Unmarshal(env.Data, &s))
	return s
}

func refreshCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == "refreshToken" {
			return c
		}
	}
	t.Fatalf("no refreshToken cookie in response")
	return nil
}

func registerBody(email string) gin.H {
	return gin.H{"email": email, "password": "Passw0rd!", "fullName": "Ada Lovelace"}
}

func TestRegister_ReturnsSessionAndCookie(t *testing.T) {
	e := setup(t)

	w := e.do(http.MethodPost, "/api/auth/register", registerBody("ada@example.com"), "", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	s := session(t, w)
	require.NotNil(t, s.User)
	assert.Equal(t, "ada@example.com", s.User.Email)
	assert.Equal(t, "Ada Lovelace", s.User.FullName)
	assert.NotEmpty(t, s.AccessToken)
	assert.NotContains(t, w.Body.String(), "password")

	c := refreshCookie(t, w)
	assert.Len(t, c.Value, 64)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
	assert.Equal(t, "/api/auth", c.Path)
	assert.Equal(t, int((168 * time.Hour).Seconds()), c.MaxAge)
	assert.False(t, c.Secure)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	e := setup(t)

	require.Equal(t, http.StatusCreated, e.do(http.MethodPost, "/api/auth/register", registerBody("dup@example.com"), "", "").Code)

	w := e.do(http.MethodPost, "/api/auth/register", registerBody("dup@example.com"), "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "DUPLICATE_EMAIL", decode(t, w).Error.Code)

	var n int64
	require.NoError(t, e.db.Model(&domain.User{}).Where("email = ?", "dup@example.com").Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestRegister_ValidationDetails(t *testing.T) {
	e := setup(t)

	w := e.do(http.MethodPost, "/api/auth/register", gin.H{"email": "nope", "password": "short", "fullName": "  "}, "", "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	env := decode(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	fields := map[string]bool{}
	for _, d := range env.Error.Details {
		fields[d.Field] = true
	}
	assert.True(t, fields["email"])
	assert.True(t, fields["password"])
	assert.True(t, fields["fullName"])

	w = e.do(http.MethodPost, "/api/auth/register", nil, "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegister_MultibytePasswordOverBcryptLimit(t *testing.T) {
	e := setup(t)

	// Within 72 characters but 73 bytes.
	body := gin.H{"email": "zoe@example.com", "password": "Aa1" + strings.Repeat("é", 35), "fullName": "Zoe"}
	w := e.do(http.MethodPost, "/api/auth/register", body, "", "")
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	env := decode(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	require.Len(t, env.Error.Details, 1)
	assert.Equal(t, "password", env.Error.Details[0].Field)

	var n int64
	require.NoError(t, e.db.Model(&domain.User{}).Count(&n).Error)
	assert.Zero(t, n)

	body["password"] = "Aa1" + strings.Repeat("é", 34)
	w = e.do(http.MethodPost, "/api/auth/register", body, "", "")
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestLogin_UnknownEmailAndWrongPasswordLookTheSame(t *testing.T) {
	e := setup(t)
	require.Equal(t, http.StatusCreated, e.do(http.MethodPost, "/api/auth/register", registerBody("bob@example.com"), "", "").Code)

	wrong := e.do(http.MethodPost, "/api/auth/login", gin.H{"email": "bob@example.com", "password": "Wrong0ne!"}, "", "")
	missing := e.do(http.MethodPost, "/api/auth/login", gin.H{"email": "nobody@example.com", "password": "Wrong0ne!"}, "", "")

	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, wrong.Code, missing.Code)
	assert.JSONEq(t, wrong.Body.String(), missing.Body.String())
	assert.Empty(t, wrong.Result().Cookies())

	ok := e.do(http.MethodPost, "/api/auth/login", gin.H{"email": "bob@example.com", "password": "Passw0rd!"}, "", "")
	require.Equal(t, http.StatusOK, ok.Code)
	assert.Equal(t, "bob@example.com", session(t, ok).User.Email)
	refreshCookie(t, ok)
}

func TestRefresh_RotatesAndRejectsReuse(t *testing.T) {
	e := setup(t)

	reg := e.do(http.MethodPost, "/api/auth/register", registerBody("carol@example.com"), "", "")
	require.Equal(t, http.StatusCreated, reg.Code)
	r1 := refreshCookie(t, reg).Value

	first := e.do(http.MethodPost, "/api/auth/refresh", nil, r1, "")
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	s := session(t, first)
	assert.Nil(t, s.User)
	assert.NotEmpty(t, s.AccessToken)
	r2 := refreshCookie(t, first).Value
	assert.NotEqual(t, r1, r2)

	reuse := e.do(http.MethodPost, "/api/auth/refresh", nil, r1, "")
	assert.Equal(t, http.StatusUnauthorized, reuse.Code)
	assert.Equal(t, "INVALID_TOKEN", decode(t, reuse).Error.Code)

	second := e.do(http.MethodPost, "/api/auth/refresh-token", nil, r2, "")
	assert.Equal(t, http.StatusOK, second.Code)
}

func TestRefresh_MissingAndExpired(t *testing.T) {
	e := setup(t)

	w := e.do(http.MethodPost, "/api/auth/refresh", nil, "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHENTICATED", decode(t, w).Error.Code)

	w = e.do(http.MethodPost, "/api/auth/refresh", nil, "unknown", "")
	assert.Equal(t, "INVALID_TOKEN", decode(t, w).Error.Code)

	reg := e.do(http.MethodPost, "/api/auth/register", registerBody("dan@example.com"), "", "")
	token := refreshCookie(t, reg).Value
	require.NoError(t, e.db.Model(&domain.RefreshToken{}).
		Where("token = ?", token).
		Update("expires_at", time.Now().UTC().Add(-time.Minute)).Error)

	w = e.do(http.MethodPost, "/api/auth/refresh", nil, token, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "TOKEN_EXPIRED", decode(t, w).Error.Code)

	var n int64
	require.NoError(t, e.db.Model(&domain.RefreshToken{}).Where("token = ?", token).Count(&n).Error)
	assert.Zero(t, n, "expired token must be removed")
}

func TestRefresh_ConcurrentReuseHasOneWinner(t *testing.T) {
	e := setup(t)

	reg := e.do(http.MethodPost, "/api/auth/register", registerBody("erin@example.com"), "", "")
	token := refreshCookie(t, reg).Value

	const workers = 8
	codes := make([]int, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
			req.AddCookie(&http.Cookie{Name: "refreshToken", Value: token})
			w := httptest.NewRecorder()
			e.h.ServeHTTP(w, req)
			codes[i] = w.Code
		}()
	}
	wg.Wait()

	ok := 0
	for _, code := range codes {
		if code == http.StatusOK {
			ok++
		} else {
			assert.Equal(t, http.StatusUnauthorized, code)
		}
	}
	assert.Equal(t, 1, ok)
}

func TestLogout_AlwaysSucceedsAndClearsCookie(t *testing.T) {
	e := setup(t)

	w := e.do(http.MethodPost, "/api/auth/logout", nil, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode(t, w).Success)
	c := refreshCookie(t, w)
	assert.Empty(t, c.Value)
	assert.Negative(t, c.MaxAge)

	w = e.do(http.MethodPost, "/api/auth/logout", nil, "never-issued", "")
	assert.Equal(t, http.StatusOK, w.Code)

	reg := e.do(http.MethodPost, "/api/auth/register", registerBody("fay@example.com"), "", "")
	token := refreshCookie(t, reg).Value

	require.Equal(t, http.StatusOK, e.do(http.MethodPost, "/api/auth/logout", nil, token, "").Code)
	w = e.do(http.MethodPost, "/api/auth/refresh", nil, token, "")
	assert.Equal(t, "INVALID_TOKEN", decode(t, w).Error.Code)
}

func TestProtectedRoutes(t *testing.T) {
	e := setup(t)

	w := e.do(http.MethodGet, "/api/protected", nil, "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHENTICATED", decode(t, w).Error.Code)

	w = e.do(http.MethodGet, "/api/protected", nil, "", "not-a-jwt")
	assert.Equal(t, "INVALID_TOKEN", decode(t, w).Error.Code)

	reg := e.do(http.MethodPost, "/api/auth/register", registerBody("gus@example.com"), "", "")
	s := session(t, reg)

	w = e.do(http.MethodGet, "/api/protected", nil, "", s.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"userId":`+jsonInt(s.User.ID))

	w = e.do(http.MethodGet, "/api/users/me", nil, "", s.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "gus@example.com")
	assert.NotContains(t, w.Body.String(), "passwordHash")
}

func TestHealthAndMetrics(t *testing.T) {
	e := setup(t)

	w := e.do(http.MethodGet, "/healthz", nil, "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	e.do(http.MethodGet, "/api/protected", nil, "", "")
	w = e.do(http.MethodGet, "/metrics", nil, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "authserver_gate_rejections_total"))
}

func TestPurgeExpired(t *testing.T) {
	e := setup(t)
	repo := repository.NewRefreshTokenRepository(e.db)
	ctx := context.Background()

	_, _, err := repo.Issue(ctx, 1, -time.Minute)
	require.NoError(t, err)
	live, _, err := repo.Issue(ctx, 1, time.Hour)
	require.NoError(t, err)

	n, err := e.srv.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	row, err := repo.Consume(ctx, live)
	require.NoError(t, err)
	assert.NotNil(t, row)
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
