package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StoreMySQL, cfg.StoreDriver)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.Equal(t, "127.0.0.1", cfg.MySQL.Host)
	assert.Equal(t, 25, cfg.MySQL.MaxOpenConns)
	assert.Equal(t, 30*time.Minute, cfg.MySQL.ConnMaxLifetime)
	assert.Equal(t, "localhost:6379", cfg.Redis.Address())
	assert.Equal(t, "reservations.events", cfg.RabbitMQ.Queue)
	assert.Equal(t, 3*time.Second, cfg.RabbitMQ.DialTimeout)
	assert.Equal(t, 30*time.Second, cfg.StatsCache.TTL)
	assert.True(t, cfg.BrowseCache.MethodSet()["GET"])
}

func TestParseRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Parse()
	assert.Error(t, err)
}

func TestParsePrefixedGroups(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "3307")
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	t.Setenv("CACHE_METHODS", "get, head")
	t.Setenv("ADMIN_EMAILS", "root@example.com, ops@example.com")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, "db.internal", cfg.MySQL.Host)
	assert.Equal(t, "3307", cfg.MySQL.Port)
	assert.Equal(t, "cache:6380", cfg.Redis.Address())

	// normalised
	assert.Equal(t, 1, cfg.RateLimit.Capacity)
	assert.Equal(t, 10*time.Second, cfg.RateLimit.TTL)

	methods := cfg.BrowseCache.MethodSet()
	assert.True(t, methods["GET"])
	assert.True(t, methods["HEAD"])

	assert.True(t, cfg.IsAdminEmail("ops@example.com"))
	assert.True(t, cfg.IsAdminEmail("ROOT@example.com"))
	assert.False(t, cfg.IsAdminEmail("guest@example.com"))
}

func TestParseRejectsUnknownStore(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORE_DRIVER", "postgres")
	_, err := Parse()
	assert.ErrorContains(t, err, "STORE_DRIVER")
}
