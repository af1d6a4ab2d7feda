package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/copp1723/seorylie-sub005/internal/conversation/repository"
	"github.com/copp1723/seorylie-sub005/platform/logger"
)

type fakeSource struct {
	stats repository.Stats
	err   error
}

func (f *fakeSource) ConversationStats(context.Context) (repository.Stats, error) {
	return f.stats, f.err
}

func TestRefreshUpdatesSnapshot(t *testing.T) {
	source := &fakeSource{stats: repository.Stats{Total: 10, Active: 3, AverageTurns: 2.5}}
	c := NewCollector(source, logger.NewNop())

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	snap := c.Snapshot()
	if snap.TotalConversations != 10 || snap.ActiveConversations != 3 {
		t.Fatalf("snapshot counts = %d/%d, want 10/3", snap.TotalConversations, snap.ActiveConversations)
	}
	if snap.AverageTurns != 2.5 {
		t.Fatalf("AverageTurns = %v, want 2.5", snap.AverageTurns)
	}
	if snap.SampledAt.IsZero() {
		t.Fatalf("SampledAt not stamped")
	}
}

func TestFailedRefreshKeepsPreviousSnapshot(t *testing.T) {
	source := &fakeSource{stats: repository.Stats{Total: 4, Active: 1, AverageTurns: 1.0}}
	c := NewCollector(source, logger.NewNop())

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	source.err = errors.New("connection reset")
	if err := c.Refresh(context.Background()); err == nil {
		t.Fatalf("expected refresh error")
	}

	snap := c.Snapshot()
	if snap.TotalConversations != 4 {
		t.Fatalf("TotalConversations = %d, want previous value 4", snap.TotalConversations)
	}
}

func TestSnapshotZeroBeforeFirstRefresh(t *testing.T) {
	c := NewCollector(&fakeSource{}, logger.NewNop())

	snap := c.Snapshot()
	if snap.TotalConversations != 0 || snap.ActiveConversations != 0 || snap.AverageTurns != 0 {
		t.Fatalf("expected zero snapshot, got %+v", snap)
	}
}
