// Package jobs contains background maintenance tasks.
package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TokenSweeper deletes refresh-token rows that can never be used again.
type TokenSweeper interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Cleanup periodically purges expired and revoked refresh tokens.  The
// tokens stay functionally dead the moment they expire or get revoked; the
// sweep only reclaims storage.
type Cleanup struct {
	tokens   TokenSweeper
	interval time.Duration
	log      zerolog.Logger
}

func NewCleanup(tokens TokenSweeper, interval time.Duration, log zerolog.Logger) *Cleanup {
	return &Cleanup{tokens: tokens, interval: interval, log: log}
}

// RunOnce performs a single sweep and returns the number of deleted rows.
func (c *Cleanup) RunOnce(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return c.tokens.DeleteExpired(ctx)
}

// Run sweeps on every interval tick until the context is canceled.  Sweep
// failures are logged and the loop keeps going.
func (c *Cleanup) Run(ctx context.Context) {
	c.log.Info().Dur("interval", c.interval).Msg("token cleanup job started")
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("token cleanup job stopped")
			return
		case <-ticker.C:
			n, err := c.RunOnce(ctx)
			if err != nil {
				c.log.Error().Err(err).Msg("token cleanup failed")
				continue
			}
			c.log.Info().Int64("tokens_deleted", n).Msg("token cleanup completed")
		}
	}
}
