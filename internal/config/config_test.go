package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "3000", cfg.AppPort)
	assert.Equal(t, 10, cfg.RateLimit.MaxRequests)
	assert.Equal(t, 60*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, "memory", cfg.RateLimit.Backend)
	assert.False(t, cfg.RateLimit.TrustProxyHeaders)
	assert.Equal(t, 24*time.Hour, cfg.VerificationTTL)
	assert.Equal(t, "pending_registrations", cfg.DynamoTables.PendingRegistrations)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("RATE_LIMIT_MAX_REQUESTS", "25")
	t.Setenv("RATE_LIMIT_WINDOW", "2m")
	t.Setenv("TRUST_PROXY_HEADERS", "true")
	t.Setenv("VERIFICATION_TTL", "3600")
	t.Setenv("PUBLIC_BASE_URL", "https://books.example.com/")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com,https://b.example.com")

	cfg := Load()

	assert.Equal(t, 25, cfg.RateLimit.MaxRequests)
	assert.Equal(t, 2*time.Minute, cfg.RateLimit.Window)
	assert.True(t, cfg.RateLimit.TrustProxyHeaders)
	assert.Equal(t, time.Hour, cfg.VerificationTTL)
	assert.Equal(t, "https://books.example.com", cfg.PublicBaseURL)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
}

func TestGetEnvDuration_InvalidFallsBack(t *testing.T) {
	t.Setenv("SOME_DURATION", "soon")
	assert.Equal(t, time.Minute, getEnvDuration("SOME_DURATION", time.Minute))
}
