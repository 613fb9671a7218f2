package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// Pinger is implemented by anything that can probe cache connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SupervisorConfig holds the reconnect loop settings.
type SupervisorConfig struct {
	// CheckInterval is the pause between pings while Redis is reachable.
	CheckInterval time.Duration

	// PingTimeout bounds a single ping.
	PingTimeout time.Duration

	// InitialBackoff is the first wait after a failed ping.
	InitialBackoff time.Duration

	// MaxBackoff caps every wait between reconnect attempts.
	MaxBackoff time.Duration
}

// DefaultSupervisorConfig returns the default reconnect settings.
func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		CheckInterval:  5 * time.Second,
		PingTimeout:    1 * time.Second,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
	}
}

// Supervisor watches Redis connectivity in the background. While Redis is
// unreachable it keeps pinging with capped exponential backoff, forever;
// the client pool re-dials on its own, the supervisor tracks state and logs
// transitions.
type Supervisor struct {
	pinger    Pinger
	config    SupervisorConfig
	logger    zerolog.Logger
	connected atomic.Bool
	checked   atomic.Bool
}

// NewSupervisor creates a supervisor for p. Zero config fields take defaults.
func NewSupervisor(p Pinger, cfg SupervisorConfig, logger zerolog.Logger) *Supervisor {
	def := DefaultSupervisorConfig()
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = def.CheckInterval
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = def.PingTimeout
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}

	return &Supervisor{
		pinger: p,
		config: cfg,
		logger: logger,
	}
}

// Connected reports whether the last ping succeeded.
func (s *Supervisor) Connected() bool {
	return s.connected.Load()
}

// Run pings until ctx is cancelled. It always returns nil; cache loss is
// never fatal to the process.
func (s *Supervisor) Run(ctx context.Context) error {
	bo := s.newBackOff()

	for {
		err := s.ping(ctx)
		if ctx.Err() != nil {
			return nil
		}

		var wait time.Duration
		if err == nil {
			s.markUp()
			bo.Reset()
			wait = s.config.CheckInterval
		} else {
			s.markDown(err)
			wait = bo.NextBackOff()
			if wait == backoff.Stop || wait > s.config.MaxBackoff {
				wait = s.config.MaxBackoff
			}
			ReconnectAttempts.Inc()
			ReconnectBackoff.Observe(wait.Seconds())

			s.logger.Debug().
				Err(err).
				Dur("backoff", wait).
				Msg("Redis ping failed, retrying after backoff")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (s *Supervisor) newBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.config.InitialBackoff
	bo.MaxInterval = s.config.MaxBackoff
	bo.MaxElapsedTime = 0 // never give up
	bo.Reset()
	return bo
}

func (s *Supervisor) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.PingTimeout)
	defer cancel()
	return s.pinger.Ping(ctx)
}

func (s *Supervisor) markUp() {
	wasConnected := s.connected.Swap(true)
	s.checked.Store(true)
	Connected.Set(1)
	if !wasConnected {
		s.logger.Info().Msg("Redis connection established")
	}
}

func (s *Supervisor) markDown(err error) {
	wasConnected := s.connected.Swap(false)
	firstCheck := !s.checked.Swap(true)
	Connected.Set(0)
	if wasConnected || firstCheck {
		s.logger.Warn().
			Err(err).
			Msg("Redis unreachable, serving without cache while reconnecting")
	}
}
