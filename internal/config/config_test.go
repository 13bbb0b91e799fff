package config_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-sso-server/internal/config"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Setenv("SESSION_TIMEOUT", "")
	t.Setenv("REFRESH_TOKEN_TIMEOUT", "")
	t.Setenv("PORT", "")

	c := config.New()
	require.Equal(t, time.Hour, c.GetSessionTimeout())
	require.Equal(t, 7*24*time.Hour, c.GetRefreshTokenTimeout())
	require.Equal(t, 10*time.Minute, c.GetAuthCodeTimeout())
	require.Equal(t, 24*time.Hour, c.GetEndedSessionRetention())
	require.Equal(t, ":8080", c.GetPort())
}

func TestMillisecondTimeouts(t *testing.T) {
	t.Setenv("SESSION_TIMEOUT", "120000")
	t.Setenv("REFRESH_TOKEN_TIMEOUT", "not-a-number")

	c := config.New()
	require.Equal(t, 2*time.Minute, c.GetSessionTimeout())
	require.Equal(t, 7*24*time.Hour, c.GetRefreshTokenTimeout())
}

func TestAllowedOrigins(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "https://erp.example.com, https://m.example.com,")

	origins := config.New().GetAllowedOrigins()
	require.True(t, origins.IsAllowedOrigin("https://erp.example.com"))
	require.True(t, origins.IsAllowedOrigin("https://m.example.com"))
	require.Len(t, origins.List(), 2)
}

func TestBaseURLTrimsSlash(t *testing.T) {
	t.Setenv("BASE_URL", "https://sso.example.com/")
	require.Equal(t, "https://sso.example.com", config.New().GetBaseURL())
}
