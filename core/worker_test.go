package core

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func newTestWorker(t *testing.T, fn JobFunc, metrics Metrics) *familyWorker {
	t.Helper()
	cfg := (&ManagerConfig{Logger: NewNoOpLogger(), Metrics: metrics}).withDefaults()
	return newFamilyWorker(NewJobHandle(0, 1), "worker", fn, &cfg)
}

// TestFamilyWorker_StopDiscardsResidual verifies no queued job leaks on stop
// Given: A worker whose context is already cancelled with jobs and a barrier queued
// When: The worker runs and is stopped
// Then: No job function runs, every job is counted as discarded and the barrier completes
func TestFamilyWorker_StopDiscardsResidual(t *testing.T) {
	// Arrange
	var ran atomic.Int64
	metrics := NewTestMetrics()
	w := newTestWorker(t, func(context.Context, any) error {
		ran.Add(1)
		return nil
	}, metrics)

	for i := range uint64(5) {
		if err := w.post(nil, i); err != nil {
			t.Fatalf("post failed: %v", err)
		}
	}
	barrier := newFlushBarrier(true)
	w.queue.Push(&RuntimeJob{Handle: w.handle, barrier: barrier})
	w.flushing.Add(1)

	// Act
	w.cancel()
	w.start()
	w.stop()

	// Assert
	if got := ran.Load(); got != 0 {
		t.Errorf("%d jobs ran after cancellation, want 0", got)
	}
	select {
	case <-barrier.done:
	case <-time.After(time.Second):
		t.Fatal("barrier never completed")
	}

	stats := w.stats()
	if stats.Discarded != 5 || stats.Posted != 5 {
		t.Errorf("stats = %+v, want 5 posted and 5 discarded", stats)
	}
	if stats.Status != ThreadStatusStopped {
		t.Errorf("Status = %v, want stopped", stats.Status)
	}
	if got := metrics.count(metrics.discarded, "stopped"); got != 5 {
		t.Errorf("stopped discards = %d, want 5", got)
	}
}

// TestFamilyWorker_PostAfterClose verifies posts are rejected once closing starts
func TestFamilyWorker_PostAfterClose(t *testing.T) {
	metrics := NewTestMetrics()
	w := newTestWorker(t, func(context.Context, any) error { return nil }, metrics)
	w.start()
	defer w.stop()

	if !w.beginClose() {
		t.Fatal("first beginClose returned false")
	}
	if w.beginClose() {
		t.Fatal("second beginClose returned true")
	}

	if err := w.post("late", 1); !errors.Is(err, ErrInvalidHandle) {
		t.Fatalf("post after close error = %v, want ErrInvalidHandle", err)
	}
	if got := metrics.count(metrics.rejected, "closing"); got != 1 {
		t.Errorf("rejections = %d, want 1", got)
	}
	if err := w.flush(context.Background(), true, true); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("guarded flush after close error = %v, want ErrInvalidHandle", err)
	}
	// The shutdown flush is unguarded and still goes through.
	if err := w.flush(context.Background(), false, false); err != nil {
		t.Errorf("unguarded flush after close error = %v", err)
	}
}

// TestFamilyWorker_FlushAfterStop verifies flushing a stopped worker returns at once
func TestFamilyWorker_FlushAfterStop(t *testing.T) {
	w := newTestWorker(t, func(context.Context, any) error { return nil }, nil)
	w.start()
	w.stop()

	done := make(chan error, 1)
	go func() { done <- w.flush(context.Background(), true, false) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("flush on stopped worker error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("flush on stopped worker blocked")
	}
}
