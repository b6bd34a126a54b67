package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.AppEnv)
	assert.Equal(t, 15*time.Minute, cfg.JWTAccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, defaultCookiePath, cfg.CookiePath)
	assert.False(t, cfg.CookieSecure)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.AllowedOrigins)
}

func TestLoadFrom_ProductionRequiresSecret(t *testing.T) {
	_, err := LoadFrom(map[string]string{"APP_ENV": "production"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadFrom_ProductionDefaultsToSecureCookie(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"APP_ENV":    "production",
		"JWT_SECRET": "a-real-secret",
	})
	require.NoError(t, err)
	assert.True(t, cfg.CookieSecure)
	assert.True(t, cfg.IsProduction())
}

func TestLoadFrom_ProductionRejectsInsecureCookie(t *testing.T) {
	_, err := LoadFrom(map[string]string{
		"APP_ENV":       "prod",
		"JWT_SECRET":    "a-real-secret",
		"COOKIE_SECURE": "false",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COOKIE_SECURE")
}

func TestLoadFrom_InvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"zero access ttl":  {"JWT_ACCESS_TTL": "0s"},
		"bad duration":     {"REFRESH_TTL": "soon"},
		"bcrypt too low":   {"BCRYPT_COST": "2"},
		"empty secret":     {"JWT_SECRET": " "},
		"negative cleanup": {"CLEANUP_INTERVAL": "-1m"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFrom(vars)
			assert.Error(t, err)
		})
	}
}

func TestLoadFrom_OriginsAreTrimmed(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"CORS_ALLOWED_ORIGINS": "https://app.example.com, ,https://admin.example.com ",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.AllowedOrigins)
}
