package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type countingWarmer struct {
	calls atomic.Int32
}

func (w *countingWarmer) WarmUp(ctx context.Context) {
	w.calls.Add(1)
}

func TestSchedulerRunsImmediately(t *testing.T) {
	w := &countingWarmer{}
	s := New(w, time.Hour, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for w.calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("warm-up job did not run at start")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
