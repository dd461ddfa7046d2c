package core

import (
	"context"
	"fmt"
	"math"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// familyWorker binds a dedicated goroutine to one job family.
// Jobs posted to the family run one at a time, in queue order, on that goroutine.
//
// Flush does not use a separate monitor: it pushes a barrier entry through
// the same queue and waits for the worker to reach it.
type familyWorker struct {
	handle JobHandle
	name   string
	fn     JobFunc
	queue  JobQueue

	// submitMu serialises Post against flush initiation and shutdown, so a
	// job can never slip in between a flush decision and its barrier.
	submitMu    sync.Mutex
	closing     bool
	flushStatus atomic.Int32
	// Jobs with discardAfter < seq <= discardUntil are dropped. Reaching a
	// "leave flushed" barrier opens the window; resetFlush closes it at the
	// last job posted so far.
	discardAfter atomic.Uint64
	discardUntil atomic.Uint64
	lastSeq      uint64 // guarded by submitMu
	// pendingLeave is the "leave flushed" barrier queued but not yet
	// reached, if any. Guarded by submitMu.
	pendingLeave *flushBarrier

	// wake is the pending flag: one buffered token, raised by Post and Flush.
	wake     chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	stopped  chan struct{}
	stopOnce sync.Once
	status   atomic.Int32

	flushing      atomic.Int32
	posted        atomic.Int64
	dispatched    atomic.Int64
	discarded     atomic.Int64
	removed       atomic.Int64
	failed        atomic.Int64
	panicked      atomic.Int64
	rejected      atomic.Int64
	lastRequestID atomic.Uint64
	lastJobAt     atomic.Int64

	history *jobHistory

	logger       Logger
	metrics      Metrics
	panicHandler PanicHandler
	tracer       trace.Tracer
}

func newFamilyWorker(handle JobHandle, name string, fn JobFunc, cfg *ManagerConfig) *familyWorker {
	ctx, cancel := context.WithCancel(context.Background())
	return &familyWorker{
		handle:       handle,
		name:         name,
		fn:           fn,
		queue:        NewJobQueue(cfg.QueueOrder),
		wake:         make(chan struct{}, 1),
		ctx:          ctx,
		cancel:       cancel,
		stopped:      make(chan struct{}),
		history:      newJobHistory(cfg.HistoryCapacity),
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		panicHandler: cfg.PanicHandler,
		tracer:       cfg.Tracer,
	}
}

// start spawns the dedicated goroutine. The worker is Initialized from here on.
func (w *familyWorker) start() {
	w.status.Store(int32(ThreadStatusInitialized))
	go w.runLoop()
}

// =============================================================================
// Posting
// =============================================================================

func (w *familyWorker) post(payload any, requestID uint64) error {
	w.submitMu.Lock()
	if w.closing || ThreadStatus(w.status.Load()) == ThreadStatusStopped {
		w.submitMu.Unlock()
		w.rejected.Add(1)
		w.metrics.RecordJobRejected(w.name, "closing")
		return fmt.Errorf("post to %s (%s): %w", w.name, w.handle, ErrInvalidHandle)
	}
	job := &RuntimeJob{
		Handle:    w.handle,
		Payload:   payload,
		RequestID: requestID,
		Status:    JobStatusSubmitted,
		PostedAt:  time.Now(),
	}
	w.queue.Push(job)
	w.lastSeq = job.seq
	w.posted.Add(1)
	w.submitMu.Unlock()

	w.trigger()
	return nil
}

// trigger raises the pending flag; a worker mid-drain picks the job up on
// its next pass.
func (w *familyWorker) trigger() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *familyWorker) removeJobs(payload any) int {
	removed := w.queue.RemoveIf(func(job *RuntimeJob) bool {
		return payloadEqual(job.Payload, payload)
	})
	for range removed {
		w.metrics.RecordJobDiscarded(w.name, "removed")
	}
	w.removed.Add(int64(len(removed)))
	return len(removed)
}

func (w *familyWorker) postedJobs() []any {
	return w.queue.Submitted()
}

// =============================================================================
// Flush
// =============================================================================

// flush blocks until the worker reaches a barrier queued behind every job
// already posted. With resume the family goes back to NoFlush at the
// barrier; without it later jobs are discarded until resetFlush.
//
// A guarded flush is a no-op while another flush is requested.
func (w *familyWorker) flush(ctx context.Context, resume bool, guarded bool) error {
	w.submitMu.Lock()
	if guarded && w.closing {
		w.submitMu.Unlock()
		return fmt.Errorf("flush %s (%s): %w", w.name, w.handle, ErrInvalidHandle)
	}
	if ThreadStatus(w.status.Load()) == ThreadStatusStopped {
		w.submitMu.Unlock()
		return nil
	}
	if guarded && FlushStatus(w.flushStatus.Load()) == FlushRequested {
		w.submitMu.Unlock()
		w.logger.Debug("flush already in progress", F("family", w.name), F("handle", w.handle.String()))
		return nil
	}
	w.flushStatus.Store(int32(FlushRequested))
	barrier := newFlushBarrier(resume)
	marker := &RuntimeJob{Handle: w.handle, PostedAt: time.Now(), barrier: barrier}
	w.queue.Push(marker)
	w.lastSeq = marker.seq
	if !resume {
		w.pendingLeave = barrier
	}
	w.flushing.Add(1)
	w.submitMu.Unlock()

	w.trigger()

	select {
	case <-barrier.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *familyWorker) reachBarrier(job *RuntimeJob) {
	w.submitMu.Lock()
	if job.barrier.resume {
		w.flushStatus.Store(int32(NoFlush))
	} else {
		if w.pendingLeave == job.barrier {
			w.pendingLeave = nil
		}
		w.discardAfter.Store(job.seq)
		if reset := job.barrier.resetSeq; reset != 0 {
			// Resumed before the worker got here.
			w.discardUntil.Store(reset)
		} else {
			w.discardUntil.Store(math.MaxUint64)
		}
	}
	w.submitMu.Unlock()

	w.completeBarrier(job)
}

func (w *familyWorker) completeBarrier(job *RuntimeJob) {
	w.flushing.Add(-1)
	close(job.barrier.done)
}

// resetFlush returns the family to NoFlush. Jobs posted while it was
// flushed are still discarded; jobs posted from now on run.
func (w *familyWorker) resetFlush() {
	w.submitMu.Lock()
	if w.pendingLeave != nil {
		w.pendingLeave.resetSeq = w.lastSeq
		w.pendingLeave = nil
	}
	if w.discardUntil.Load() == math.MaxUint64 {
		w.discardUntil.Store(w.lastSeq)
	}
	w.flushStatus.Store(int32(NoFlush))
	w.submitMu.Unlock()
}

func (w *familyWorker) shouldDiscard(job *RuntimeJob) bool {
	return job.seq > w.discardAfter.Load() && job.seq <= w.discardUntil.Load()
}

// =============================================================================
// Lifecycle
// =============================================================================

// beginClose makes every later Post fail. It returns false if another
// caller already started closing the family.
func (w *familyWorker) beginClose() bool {
	w.submitMu.Lock()
	defer w.submitMu.Unlock()
	if w.closing {
		return false
	}
	w.closing = true
	return true
}

// stop marks the worker Stopped, wakes it and joins it. Jobs still queued
// are discarded by the worker before it exits.
func (w *familyWorker) stop() {
	w.stopOnce.Do(func() {
		w.submitMu.Lock()
		w.status.Store(int32(ThreadStatusStopped))
		w.submitMu.Unlock()

		w.cancel()
		<-w.stopped
	})
}

// runLoop is the core of the family, it occupies a dedicated goroutine
func (w *familyWorker) runLoop() {
	defer close(w.stopped)

	runCtx := context.WithValue(w.ctx, familyKey, FamilyInfo{Handle: w.handle, Name: w.name})

	for {
		select {
		case <-w.ctx.Done():
			w.discardRemaining()
			return
		case <-w.wake:
			w.drain(runCtx)
		}
	}
}

func (w *familyWorker) drain(ctx context.Context) {
	for w.ctx.Err() == nil {
		job, ok := w.queue.Pop()
		if !ok {
			return
		}
		w.metrics.RecordQueueDepth(w.name, w.pendingJobs(job))

		switch {
		case job.IsBarrier():
			w.reachBarrier(job)
		case w.shouldDiscard(job):
			w.discard(job, "flushed")
		default:
			w.dispatch(ctx, job)
		}
	}
}

// pendingJobs is the number of queued jobs after popped was dequeued.
// Barriers still waiting in the queue are not jobs.
func (w *familyWorker) pendingJobs(popped *RuntimeJob) int {
	barriers := int(w.flushing.Load())
	if popped.IsBarrier() {
		// Popped but not yet completed.
		barriers--
	}
	return max(w.queue.Len()-barriers, 0)
}

func (w *familyWorker) discardRemaining() {
	dropped := 0
	for _, job := range w.queue.Drain() {
		if job.IsBarrier() {
			w.completeBarrier(job)
			continue
		}
		w.discard(job, "stopped")
		dropped++
	}
	if dropped > 0 {
		w.logger.Warn("discarded queued jobs on stop",
			F("family", w.name),
			F("handle", w.handle.String()),
			F("count", dropped))
	}
}

func (w *familyWorker) discard(job *RuntimeJob, reason string) {
	job.Status = JobStatusStopped
	w.discarded.Add(1)
	w.metrics.RecordJobDiscarded(w.name, reason)
}

// =============================================================================
// Dispatch
// =============================================================================

func (w *familyWorker) dispatch(ctx context.Context, job *RuntimeJob) {
	job.Status = JobStatusReady

	ctx = context.WithValue(ctx, requestIDKey, job.RequestID)

	startedAt := time.Now()
	spanCtx, span := startDispatchSpan(ctx, w.tracer, w.name, job)
	err, panicked := w.invoke(spanCtx, job)
	finishedAt := time.Now()
	endDispatchSpan(span, err, panicked)

	duration := finishedAt.Sub(startedAt)
	w.dispatched.Add(1)
	w.lastRequestID.Store(job.RequestID)
	w.lastJobAt.Store(finishedAt.UnixNano())
	w.metrics.RecordJobDuration(w.name, duration)

	switch {
	case panicked:
		w.panicked.Add(1)
	case err != nil:
		w.failed.Add(1)
		w.metrics.RecordJobFailed(w.name)
		w.logger.Warn("job failed",
			F("family", w.name),
			F("handle", w.handle.String()),
			F("requestID", job.RequestID),
			F("error", err))
	}

	w.history.Add(JobExecutionRecord{
		ID:         uuid.New(),
		Family:     w.name,
		Handle:     w.handle,
		RequestID:  job.RequestID,
		PostedAt:   job.PostedAt,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Duration:   duration,
		QueueDelay: startedAt.Sub(job.PostedAt),
		Err:        err,
		Panicked:   panicked,
	})
}

// invoke runs the job function and converts a panic into an error.
func (w *familyWorker) invoke(ctx context.Context, job *RuntimeJob) (err error, panicked bool) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job panicked: %v", rec)
			panicked = true
			w.metrics.RecordJobPanic(w.name, rec)
			w.panicHandler.HandlePanic(ctx, w.name, w.handle, rec, debug.Stack())
		}
	}()
	return w.fn(ctx, job.Payload), false
}

// =============================================================================
// Observability
// =============================================================================

func (w *familyWorker) stats() FamilyStats {
	stats := FamilyStats{
		Name:          w.name,
		Handle:        w.handle,
		Slot:          w.handle.Slot(),
		Generation:    w.handle.Generation(),
		Status:        ThreadStatus(w.status.Load()),
		FlushState:    FlushStatus(w.flushStatus.Load()),
		Pending:       w.queue.Len() - int(w.flushing.Load()),
		Posted:        w.posted.Load(),
		Dispatched:    w.dispatched.Load(),
		Discarded:     w.discarded.Load(),
		Removed:       w.removed.Load(),
		Failed:        w.failed.Load(),
		Panicked:      w.panicked.Load(),
		Rejected:      w.rejected.Load(),
		Flushing:      int(w.flushing.Load()),
		LastRequestID: w.lastRequestID.Load(),
	}
	if stats.Pending < 0 {
		stats.Pending = 0
	}
	if ns := w.lastJobAt.Load(); ns != 0 {
		stats.LastJobAt = time.Unix(0, ns)
	}
	return stats
}
