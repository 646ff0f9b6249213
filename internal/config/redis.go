package config

// Redis backs the rate limiter, the public browse cache and the stats cache.
// If connection fails during startup, NewRedisClient returns nil and callers
// degrade gracefully by disabling those features.

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig describes the redis connection. Addr (host:port) wins over
// Host and Port when set.
type RedisConfig struct {
	Addr     string `env:"ADDR"`
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     string `env:"PORT" envDefault:"6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
	TLS      bool   `env:"TLS" envDefault:"false"`
}

// Address returns the host:port to dial.
func (c RedisConfig) Address() string {
	if c.Addr != "" {
		return c.Addr
	}
	return c.Host + ":" + c.Port
}

// NewRedisClient instantiates a Redis client and pings it with a short
// timeout. The returned client is nil if a connection cannot be established.
func NewRedisClient(cfg RedisConfig) *redis.Client {
	var tlsConf *tls.Config
	if cfg.TLS {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      cfg.Address(),
		Password:  cfg.Password,
		DB:        cfg.DB,
		TLSConfig: tlsConf,
	})
	// Ping the server with a short timeout.  Return nil on failure.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
