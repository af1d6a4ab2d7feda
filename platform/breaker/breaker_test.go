package breaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func newTestBreaker(t *testing.T) (*Breaker, *time.Time) {
	t.Helper()
	b := New("ai-responder", Options{
		FailureThreshold:         3,
		ResetTimeout:             time.Minute,
		HalfOpenSuccessThreshold: 2,
	})
	now := time.Now()
	b.now = func() time.Time { return now }
	return b, &now
}

func fail(ctx context.Context) error { return errBoom }
func ok(ctx context.Context) error   { return nil }

func TestOpensAfterThresholdFailures(t *testing.T) {
	b, _ := newTestBreaker(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := b.Execute(ctx, fail); !errors.Is(err, errBoom) {
			t.Fatalf("expected operation error, got %v", err)
		}
	}

	snap := b.Snapshot()
	if snap.State != StateOpen {
		t.Fatalf("expected open after 3 failures, got %s", snap.State)
	}
	if snap.Failures != 3 {
		t.Fatalf("expected 3 recorded failures, got %d", snap.Failures)
	}
}

func TestOpenShortCircuitsWithoutInvoking(t *testing.T) {
	b, _ := newTestBreaker(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = b.Execute(ctx, fail)
	}

	invoked := false
	err := b.Execute(ctx, func(ctx context.Context) error {
		invoked = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if invoked {
		t.Fatalf("expected wrapped operation not to be invoked while open")
	}
}

func TestHalfOpenClosesAfterSuccessStreak(t *testing.T) {
	b, now := newTestBreaker(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = b.Execute(ctx, fail)
	}

	*now = now.Add(61 * time.Second)

	if err := b.Execute(ctx, ok); err != nil {
		t.Fatalf("expected trial call to proceed, got %v", err)
	}
	if snap := b.Snapshot(); snap.State != StateHalfOpen {
		t.Fatalf("expected half-open after one success, got %s", snap.State)
	}

	if err := b.Execute(ctx, ok); err != nil {
		t.Fatalf("expected second trial call to proceed, got %v", err)
	}

	snap := b.Snapshot()
	if snap.State != StateClosed {
		t.Fatalf("expected closed after success streak, got %s", snap.State)
	}
	if snap.Failures != 0 {
		t.Fatalf("expected failure count reset to 0, got %d", snap.Failures)
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	b, now := newTestBreaker(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = b.Execute(ctx, fail)
	}

	*now = now.Add(61 * time.Second)

	if err := b.Execute(ctx, fail); !errors.Is(err, errBoom) {
		t.Fatalf("expected trial call failure, got %v", err)
	}
	if snap := b.Snapshot(); snap.State != StateOpen {
		t.Fatalf("expected reopened after half-open failure, got %s", snap.State)
	}

	// The open window restarts from the half-open failure.
	if err := b.Execute(ctx, ok); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected short circuit after reopen, got %v", err)
	}
}

func TestClosedSuccessResetsFailures(t *testing.T) {
	b, _ := newTestBreaker(t)
	ctx := context.Background()

	_ = b.Execute(ctx, fail)
	_ = b.Execute(ctx, fail)
	if err := b.Execute(ctx, ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap := b.Snapshot()
	if snap.State != StateClosed {
		t.Fatalf("expected closed, got %s", snap.State)
	}
	if snap.Failures != 0 {
		t.Fatalf("expected failures reset on success, got %d", snap.Failures)
	}
}
