package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("STORE_URL", "postgres://localhost/relay")
	t.Setenv("CACHE_URL", "redis://localhost:6379/0")
	t.Setenv("PLATFORM_TOKEN", "token")
	t.Setenv("ADMIN_PASSWORD", "hunter2hunter2")
	t.Setenv("SECRET_KEY", "0123456789abcdef0123456789abcdef")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	assert.NoError(t, err, "expected config to load")

	assert.Equal(t, "admin", cfg.AdminUsername)
	assert.Equal(t, 1440, cfg.TokenExpireMinutes)
	assert.Equal(t, 100, cfg.RateLimitRequests)
	assert.Equal(t, 60, cfg.RateLimitWindowSec)
	assert.Equal(t, 20, cfg.StorePoolSize)
	assert.Equal(t, 30, cfg.StorePoolOverflow)
	assert.Equal(t, 20, cfg.CachePoolMax)
	assert.Equal(t, 32, cfg.FanoutPerRoomConcurrency)
	assert.Equal(t, 3, cfg.FanoutRetryMax)
	assert.Equal(t, ":8000", cfg.ServerAddr)
	assert.False(t, cfg.Debug)
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TOKEN_EXPIRE_MINUTES", "60")
	t.Setenv("FANOUT_PER_ROOM_CONCURRENCY", "8")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("DEBUG", "true")

	cfg, err := Load()
	assert.NoError(t, err)

	assert.Equal(t, 60, cfg.TokenExpireMinutes)
	assert.Equal(t, 8, cfg.FanoutPerRoomConcurrency)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.True(t, cfg.Debug)
}

func TestLoadValidation(t *testing.T) {
	tcases := []struct {
		name  string
		unset string
		set   map[string]string
	}{
		{name: "missing store url", unset: "STORE_URL"},
		{name: "missing cache url", unset: "CACHE_URL"},
		{name: "missing platform token", unset: "PLATFORM_TOKEN"},
		{name: "missing admin password", unset: "ADMIN_PASSWORD"},
		{name: "short secret key", set: map[string]string{"SECRET_KEY": "tooshort"}},
		{name: "zero pool size", set: map[string]string{"STORE_POOL_SIZE": "0"}},
		{name: "zero fanout concurrency", set: map[string]string{"FANOUT_PER_ROOM_CONCURRENCY": "0"}},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			setRequiredEnv(t)
			if tc.unset != "" {
				t.Setenv(tc.unset, "")
			}
			for k, v := range tc.set {
				t.Setenv(k, v)
			}

			_, err := Load()
			assert.Error(t, err, "expected validation to fail")
		})
	}
}
