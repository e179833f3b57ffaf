package tasks

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestRunnerTicksAndStops(t *testing.T) {
	var runs atomic.Int32
	r := NewRunner(zap.NewNop())
	r.Add(Job{
		Name:     "counter",
		Interval: 10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})
	r.Start()

	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if runs.Load() < 2 {
		t.Fatalf("job ran %d times, want at least 2", runs.Load())
	}

	r.Stop()
	after := runs.Load()
	time.Sleep(50 * time.Millisecond)
	if got := runs.Load(); got != after {
		t.Errorf("job ran after Stop: %d -> %d", after, got)
	}
}

func TestRunnerStopWithoutStart(t *testing.T) {
	r := NewRunner(nil)
	r.Stop()
}

func TestRunnerDoesNotRunImmediately(t *testing.T) {
	var runs atomic.Int32
	r := NewRunner(zap.NewNop())
	r.Add(Job{
		Name:     "slow",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})
	r.Start()
	time.Sleep(30 * time.Millisecond)
	r.Stop()
	if got := runs.Load(); got != 0 {
		t.Errorf("job ran %d times before its first interval", got)
	}
}
