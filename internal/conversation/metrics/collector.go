// Package metrics keeps an in-memory snapshot of conversation statistics for
// the health endpoint, refreshed periodically from the database.
package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/copp1723/seorylie-sub005/internal/conversation/repository"
	"github.com/copp1723/seorylie-sub005/platform/logger"
)

// Snapshot is a point-in-time view of conversation metrics.
type Snapshot struct {
	TotalConversations  int64
	ActiveConversations int64
	AverageTurns        float64
	SampledAt           time.Time
}

// StatsSource provides aggregated conversation counts.
type StatsSource interface {
	ConversationStats(ctx context.Context) (repository.Stats, error)
}

type Collector struct {
	source StatsSource
	log    *logger.Logger

	mu   sync.RWMutex
	snap Snapshot
}

func NewCollector(source StatsSource, log *logger.Logger) *Collector {
	return &Collector{source: source, log: log}
}

// Refresh pulls fresh statistics from the source. A failed refresh keeps the
// previous snapshot so the health endpoint never loses data it already had.
func (c *Collector) Refresh(ctx context.Context) error {
	stats, err := c.source.ConversationStats(ctx)
	if err != nil {
		c.log.DatabaseError("conversation stats refresh", err)
		return err
	}

	c.mu.Lock()
	c.snap = Snapshot{
		TotalConversations:  stats.Total,
		ActiveConversations: stats.Active,
		AverageTurns:        stats.AverageTurns,
		SampledAt:           time.Now(),
	}
	c.mu.Unlock()
	return nil
}

// Run refreshes the snapshot on the given interval until ctx is cancelled.
func (c *Collector) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if err := c.Refresh(ctx); err != nil && ctx.Err() != nil {
		return ctx.Err()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.Refresh(ctx)
		}
	}
}

func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}
