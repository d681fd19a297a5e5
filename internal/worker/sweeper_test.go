package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type fakeSweeper struct {
	calls atomic.Int64
	err   error
}

func (f *fakeSweeper) SweepSessions(ctx context.Context) (int64, error) {
	f.calls.Add(1)
	return 3, f.err
}

func TestSweeperRunsImmediatelyAndOnTick(t *testing.T) {
	fake := &fakeSweeper{}
	sweeper := NewSweeper(fake, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for fake.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 2 sweeps, got %d", fake.calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop after context cancellation")
	}
}

func TestSweeperSurvivesErrors(t *testing.T) {
	fake := &fakeSweeper{err: context.DeadlineExceeded}
	sweeper := NewSweeper(fake, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	sweeper.Run(ctx)

	if fake.calls.Load() < 2 {
		t.Errorf("sweeper should keep running after errors, got %d calls", fake.calls.Load())
	}
}
