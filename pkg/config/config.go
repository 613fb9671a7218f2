// Package config loads the service configuration from environment variables.
// Every variable has a default suitable for local development.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Sternrassler/product-catalog/pkg/cache"
	"github.com/Sternrassler/product-catalog/pkg/logging"
	"github.com/Sternrassler/product-catalog/pkg/store"
)

// Config is the complete service configuration.
type Config struct {
	// Port is the HTTP listen port.
	Port int

	Store   store.Config
	Cache   cache.Config
	Logging logging.Config

	// ListingTTL is the expiry of the cached product listing.
	ListingTTL time.Duration

	// ShutdownTimeout bounds the graceful drain on SIGINT/SIGTERM.
	ShutdownTimeout time.Duration
}

// Default returns the local development configuration.
func Default() Config {
	return Config{
		Port:            8080,
		Store:           store.DefaultConfig(),
		Cache:           cache.DefaultConfig(),
		Logging:         logging.DefaultConfig(),
		ListingTTL:      time.Hour,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Load reads the configuration from the environment on top of Default.
// Unparsable values are reported together.
func Load() (Config, error) {
	return load(os.LookupEnv)
}

type lookupFunc func(key string) (string, bool)

func load(lookup lookupFunc) (Config, error) {
	cfg := Default()
	p := parser{lookup: lookup}

	p.setInt("PORT", &cfg.Port)

	p.setString("MONGODB_URI", &cfg.Store.URI)
	p.setString("MONGODB_DATABASE", &cfg.Store.Database)
	p.setString("MONGODB_COLLECTION", &cfg.Store.Collection)
	p.setDuration("MONGODB_SERVER_SELECTION_TIMEOUT", &cfg.Store.ServerSelectionTimeout)
	p.setDuration("MONGODB_SOCKET_TIMEOUT", &cfg.Store.SocketTimeout)

	p.setString("REDIS_HOST", &cfg.Cache.Host)
	p.setInt("REDIS_PORT", &cfg.Cache.Port)
	p.setString("REDIS_PASSWORD", &cfg.Cache.Password)
	p.setInt("REDIS_DB", &cfg.Cache.DB)
	p.setDuration("REDIS_TIMEOUT", &cfg.Cache.Timeout)

	p.setDuration("CACHE_TTL", &cfg.ListingTTL)

	var level string
	if p.setString("LOG_LEVEL", &level) {
		cfg.Logging.Level = logging.LogLevel(level)
	}
	p.setBool("LOG_PRETTY", &cfg.Logging.Pretty)
	p.setString("LOG_FILE", &cfg.Logging.File.Path)

	p.setDuration("SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)

	if err := errors.Join(p.errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	if c.Cache.Port < 1 || c.Cache.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be between 1 and 65535, got %d", c.Cache.Port))
	}
	if c.Cache.DB < 0 {
		errs = append(errs, fmt.Errorf("REDIS_DB must not be negative, got %d", c.Cache.DB))
	}
	if c.Store.URI == "" {
		errs = append(errs, errors.New("MONGODB_URI must not be empty"))
	}
	if c.Store.Database == "" || c.Store.Collection == "" {
		errs = append(errs, errors.New("MONGODB_DATABASE and MONGODB_COLLECTION must not be empty"))
	}

	positive := []struct {
		name string
		d    time.Duration
	}{
		{"MONGODB_SERVER_SELECTION_TIMEOUT", c.Store.ServerSelectionTimeout},
		{"MONGODB_SOCKET_TIMEOUT", c.Store.SocketTimeout},
		{"REDIS_TIMEOUT", c.Cache.Timeout},
		{"CACHE_TTL", c.ListingTTL},
		{"SHUTDOWN_TIMEOUT", c.ShutdownTimeout},
	}
	for _, p := range positive {
		if p.d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", p.name, p.d))
		}
	}

	return errors.Join(errs...)
}

// Addr returns the HTTP listen address.
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

type parser struct {
	lookup lookupFunc
	errs   []error
}

// setString sets dst when key is set and non-empty and reports whether it did.
func (p *parser) setString(key string, dst *string) bool {
	v, ok := p.lookup(key)
	if !ok || v == "" {
		return false
	}
	*dst = v
	return true
}

func (p *parser) setInt(key string, dst *int) {
	var raw string
	if !p.setString(key, &raw) {
		return
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid integer %q", key, raw))
		return
	}
	*dst = v
}

func (p *parser) setBool(key string, dst *bool) {
	var raw string
	if !p.setString(key, &raw) {
		return
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid boolean %q", key, raw))
		return
	}
	*dst = v
}

// setDuration accepts Go duration strings and bare integers as seconds.
func (p *parser) setDuration(key string, dst *time.Duration) {
	var raw string
	if !p.setString(key, &raw) {
		return
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		*dst = time.Duration(secs) * time.Second
		return
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid duration %q", key, raw))
		return
	}
	*dst = v
}
