package core

import (
	"context"
	"fmt"
)

// ThreadManager runs job families, each on its own dedicated goroutine.
//
// A family is registered once with a job function and a name. Jobs posted to
// the family run one at a time, in posting order, on the family goroutine.
// Families never share a goroutine, so a slow job in one family cannot delay
// another.
type ThreadManager struct {
	registry *jobRegistry
	config   ManagerConfig
	logger   Logger
}

// NewThreadManager creates a ThreadManager. A nil config uses DefaultManagerConfig.
func NewThreadManager(config *ManagerConfig) *ThreadManager {
	if config == nil {
		config = DefaultManagerConfig()
	}
	cfg := config.withDefaults()
	return &ThreadManager{
		registry: newJobRegistry(cfg.MaxFamilies),
		config:   cfg,
		logger:   cfg.Logger,
	}
}

// =============================================================================
// Registration
// =============================================================================

// Register creates a job family and starts its goroutine.
//
// Returns ErrCapacityExhausted when MaxFamilies families are live,
// ErrAllocationFailure for a nil job function, ErrManagerClosed after Close.
func (m *ThreadManager) Register(fn JobFunc, name string) (JobHandle, error) {
	if fn == nil {
		return InvalidJobHandle, fmt.Errorf("register %q: %w: nil job function", name, ErrAllocationFailure)
	}

	w, err := m.registry.allocate(func(h JobHandle) (*familyWorker, error) {
		w := newFamilyWorker(h, name, fn, &m.config)
		w.start()
		return w, nil
	})
	if err != nil {
		m.logger.Warn("register failed", F("family", name), F("error", err))
		return InvalidJobHandle, fmt.Errorf("register %q: %w", name, err)
	}

	m.logger.Info("job family registered",
		F("family", name),
		F("handle", w.handle.String()))
	return w.handle, nil
}

// Unregister flushes the family, stops and joins its goroutine and frees
// its slot for reuse.
//
// Jobs queued before the call are dispatched. Posts racing with Unregister
// fail with ErrInvalidHandle; anything that still slipped into the queue is
// discarded, never leaked.
func (m *ThreadManager) Unregister(h JobHandle) error {
	w := m.registry.lookup(h)
	if w == nil || !w.beginClose() {
		return fmt.Errorf("unregister %s: %w", h, ErrInvalidHandle)
	}

	m.shutdownFamily(w)

	if !m.registry.release(h) {
		return fmt.Errorf("unregister %s: %w", h, ErrInvalidHandle)
	}
	return nil
}

func (m *ThreadManager) shutdownFamily(w *familyWorker) {
	// Leave-flushed mode: anything behind the barrier is discarded.
	_ = w.flush(context.Background(), false, false)
	w.resetFlush()
	w.stop()

	stats := w.stats()
	m.logger.Info("job family unregistered",
		F("family", w.name),
		F("handle", w.handle.String()),
		F("dispatched", stats.Dispatched),
		F("discarded", stats.Discarded))
}

// Close unregisters every family and rejects further Register calls.
// It is safe to call more than once.
func (m *ThreadManager) Close() {
	for _, w := range m.registry.close() {
		if !w.beginClose() {
			continue
		}
		m.shutdownFamily(w)
		m.registry.release(w.handle)
	}
}

// =============================================================================
// Jobs
// =============================================================================

// Post queues a job on the family. It never blocks beyond lock acquisition.
func (m *ThreadManager) Post(h JobHandle, payload any, requestID uint64) error {
	w := m.registry.lookup(h)
	if w == nil {
		return fmt.Errorf("post to %s: %w", h, ErrInvalidHandle)
	}
	return w.post(payload, requestID)
}

// RemoveJob drops every queued job whose payload equals payload and returns
// how many were removed. Pointers match by identity. A job already handed
// to the job function is not affected.
func (m *ThreadManager) RemoveJob(h JobHandle, payload any) (int, error) {
	w := m.registry.lookup(h)
	if w == nil {
		return 0, fmt.Errorf("remove job from %s: %w", h, ErrInvalidHandle)
	}
	return w.removeJobs(payload), nil
}

// GetAllPostedJobs returns the payloads of jobs still waiting in the queue,
// in dispatch order.
func (m *ThreadManager) GetAllPostedJobs(h JobHandle) ([]any, error) {
	w := m.registry.lookup(h)
	if w == nil {
		return nil, fmt.Errorf("list jobs of %s: %w", h, ErrInvalidHandle)
	}
	return w.postedJobs(), nil
}

// Flush blocks until every job queued before the call has been dispatched.
//
// With forceFlush the family resumes normal dispatch once drained. Without
// it the family stays flushed: jobs posted afterwards are discarded until
// Resume or Unregister. Calling Flush while a flush is already requested
// returns nil immediately.
func (m *ThreadManager) Flush(h JobHandle, forceFlush bool) error {
	return m.FlushContext(context.Background(), h, forceFlush)
}

// FlushContext is Flush with a bounded wait. When ctx ends first the flush
// still completes in the background and ctx.Err() is returned.
func (m *ThreadManager) FlushContext(ctx context.Context, h JobHandle, forceFlush bool) error {
	w := m.registry.lookup(h)
	if w == nil {
		return fmt.Errorf("flush %s: %w", h, ErrInvalidHandle)
	}

	m.logger.Debug("flush requested",
		F("family", w.name),
		F("handle", h.String()),
		F("force", forceFlush))
	if err := w.flush(ctx, forceFlush, true); err != nil {
		return err
	}
	m.logger.Debug("flush completed", F("family", w.name), F("handle", h.String()))
	return nil
}

// Resume returns a family left flushed by Flush(h, false) to normal dispatch.
func (m *ThreadManager) Resume(h JobHandle) error {
	w := m.registry.lookup(h)
	if w == nil {
		return fmt.Errorf("resume %s: %w", h, ErrInvalidHandle)
	}
	w.resetFlush()
	return nil
}

// =============================================================================
// Observability
// =============================================================================

// Stats returns a snapshot of one family.
func (m *ThreadManager) Stats(h JobHandle) (FamilyStats, error) {
	w := m.registry.lookup(h)
	if w == nil {
		return FamilyStats{}, fmt.Errorf("stats of %s: %w", h, ErrInvalidHandle)
	}
	return w.stats(), nil
}

// Families returns snapshots of every live family in slot order.
func (m *ThreadManager) Families() []FamilyStats {
	workers := m.registry.all()
	out := make([]FamilyStats, 0, len(workers))
	for _, w := range workers {
		out = append(out, w.stats())
	}
	return out
}

// History returns up to limit execution records of the family, newest first.
func (m *ThreadManager) History(h JobHandle, limit int) ([]JobExecutionRecord, error) {
	w := m.registry.lookup(h)
	if w == nil {
		return nil, fmt.Errorf("history of %s: %w", h, ErrInvalidHandle)
	}
	return w.history.Recent(limit), nil
}

// Len returns the number of live families.
func (m *ThreadManager) Len() int {
	live, _, _, _ := m.registry.stats()
	return live
}

// ManagerStats returns a snapshot of the registry.
func (m *ThreadManager) ManagerStats() ManagerStats {
	live, capacity, generation, closed := m.registry.stats()
	return ManagerStats{
		Families:   live,
		Capacity:   capacity,
		Generation: generation,
		QueueOrder: m.config.QueueOrder,
		Closed:     closed,
	}
}
