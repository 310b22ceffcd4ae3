/*
Package presence contains the connected-user registry, per-user outbound
queues, broadcast fan-out, and the ping/idle timeout sweep.

This file defines the Sweeper struct, the periodic scheduler that drives the
registry's timeout sweep. The registry itself never self-schedules.
*/
package presence

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"partydeck/internal/pkg/logx"
)

// DefaultSweepInterval is how often the timeout sweep runs when no interval
// is configured.
const DefaultSweepInterval = 20 * time.Second

// Sweeper periodically invokes the registry's ping/idle timeout check.
type Sweeper struct {
	registry *ConnectedUsers
	interval time.Duration
	logger   zerolog.Logger
}

// NewSweeper constructs a sweeper for registry. A non-positive interval falls
// back to DefaultSweepInterval.
func NewSweeper(registry *ConnectedUsers, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	sweeperLogger := logx.Logger().With().Str("component", "Sweeper").Logger()

	return &Sweeper{
		registry: registry,
		interval: interval,
		logger:   sweeperLogger,
	}
}

// Run executes the sweep every interval until ctx is cancelled. It blocks;
// callers start it on its own goroutine.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Msg("Timeout sweeper started.")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Timeout sweeper stopped.")
			return
		case <-ticker.C:
			s.registry.CheckForPingAndIdleTimeouts()
		}
	}
}
