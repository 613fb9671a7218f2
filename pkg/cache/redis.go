package cache

import (
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds the Redis connection settings.
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int

	// Timeout bounds dialing and each read/write on a connection.
	Timeout time.Duration

	// MaxBackoff caps the wait between command retries and reconnect attempts.
	MaxBackoff time.Duration
}

// DefaultConfig returns settings for a local development Redis.
func DefaultConfig() Config {
	return Config{
		Host:       "localhost",
		Port:       6379,
		Timeout:    2 * time.Second,
		MaxBackoff: 2 * time.Second,
	}
}

// Addr returns host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// NewClient creates a Redis client. It does not dial; connections are
// established lazily and re-dialed by the pool after a loss.
func NewClient(cfg Config) *redis.Client {
	maxBackoff := cfg.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = 2 * time.Second
	}

	return redis.NewClient(&redis.Options{
		Addr:            cfg.Addr(),
		Password:        cfg.Password,
		DB:              cfg.DB,
		DialTimeout:     cfg.Timeout,
		ReadTimeout:     cfg.Timeout,
		WriteTimeout:    cfg.Timeout,
		MaxRetries:      3,
		MinRetryBackoff: 50 * time.Millisecond,
		MaxRetryBackoff: maxBackoff,
	})
}
