package app

import (
	"testing"

	"github.com/cristalhq/aconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFromEnv(t *testing.T) (*Config, error) {
	t.Helper()
	return loadConfig(aconfig.Config{SkipFlags: true, SkipFiles: true})
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("KART_DATABASE_URL", "postgres://kart@localhost/kart")

	cfg, err := loadFromEnv(t)
	require.NoError(t, err)

	assert.Equal(t, defaultAddr, cfg.Addr)
	assert.Equal(t, CartStorePostgres, cfg.CartStore)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 20.0, cfg.RateLimit.RPS)
	assert.Equal(t, 40, cfg.RateLimit.Burst)
	assert.False(t, cfg.RateLimit.TrustProxy)
	assert.Equal(t, []string{"*"}, cfg.CORS.Origins)
}

func TestLoadConfig_TrustProxy(t *testing.T) {
	t.Setenv("KART_DATABASE_URL", "postgres://kart/db")
	t.Setenv("KART_RATE_LIMIT_TRUST_PROXY", "true")

	cfg, err := loadFromEnv(t)
	require.NoError(t, err)
	assert.True(t, cfg.RateLimit.TrustProxy)
}

func TestLoadConfig_PlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("PORT", "9000")

	cfg, err := loadFromEnv(t)
	require.NoError(t, err)

	assert.Equal(t, "postgres://platform/db", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)
}

func TestLoadConfig_PrefixedWinsOverPlatform(t *testing.T) {
	t.Setenv("KART_DATABASE_URL", "postgres://kart/db")
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("KART_ADDR", "127.0.0.1:7000")
	t.Setenv("PORT", "9000")

	cfg, err := loadFromEnv(t)
	require.NoError(t, err)

	assert.Equal(t, "postgres://kart/db", cfg.DatabaseURL)
	assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Run("missing database", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")
		_, err := loadFromEnv(t)
		assert.ErrorContains(t, err, "database URL is required")
	})

	t.Run("unknown cart store", func(t *testing.T) {
		t.Setenv("KART_DATABASE_URL", "postgres://kart/db")
		t.Setenv("KART_CART_STORE", "memcached")
		_, err := loadFromEnv(t)
		assert.ErrorContains(t, err, `unknown cart store "memcached"`)
	})
}
