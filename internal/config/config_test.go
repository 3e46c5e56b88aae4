package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "3306", cfg.Database.Port)
	assert.Equal(t, 30*time.Minute, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, "Asia/Kolkata", cfg.Booking.DisplayZone)
	assert.Zero(t, cfg.Booking.CancelCutoff)
	assert.Equal(t, "mock", cfg.Payment.Provider)
	assert.Equal(t, "inr", cfg.Payment.Currency)
	assert.True(t, cfg.Cache.Methods["GET"])
	assert.Equal(t, 60, cfg.RateLimit.Capacity)

	_, offset := time.Date(2025, 1, 1, 0, 0, 0, 0, cfg.DisplayLocation()).Zone()
	assert.Equal(t, 5*3600+1800, offset)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("BOOKING_CANCEL_CUTOFF", "2h")
	t.Setenv("RATE_LIMIT_BURST", "5")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "3s")
	t.Setenv("CACHE_METHODS", "get, head")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
	assert.Equal(t, 2*time.Hour, cfg.Booking.CancelCutoff)
	assert.Equal(t, 5, cfg.RateLimit.Capacity)
	assert.Equal(t, 1, cfg.RateLimit.RefillTokens)
	assert.Equal(t, 3*time.Second, cfg.RateLimit.RefillInterval)
	assert.Equal(t, 10*time.Minute, cfg.RateLimit.TTL)
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, cfg.Cache.Methods)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		msg  string
	}{
		{"missing secret", map[string]string{"JWT_SECRET": ""}, "JWT_SECRET is required"},
		{"unknown driver", map[string]string{"DB_DRIVER": "sqlite"}, `unsupported DB_DRIVER "sqlite"`},
		{"bad zone", map[string]string{"BOOKING_DISPLAY_ZONE": "Mars/Olympus"}, "invalid BOOKING_DISPLAY_ZONE"},
		{"negative cutoff", map[string]string{"BOOKING_CANCEL_CUTOFF": "-1m"}, "must not be negative"},
		{"stripe without key", map[string]string{"PAYMENT_PROVIDER": "stripe"}, "STRIPE_SECRET_KEY is required"},
		{"unknown provider", map[string]string{"PAYMENT_PROVIDER": "paypal"}, `unsupported PAYMENT_PROVIDER "paypal"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "s3cret")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestMemoryDriverNeedsNoHost(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("DB_HOST", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Database.Driver)
}
