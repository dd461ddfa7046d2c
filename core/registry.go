package core

import (
	"fmt"
	"math"
	"sync"
)

// jobRegistry is the slot arena behind ThreadManager.
//
// Slots are reused after Unregister; the generation counter is bumped on
// every successful registration regardless of slot, so handles never alias.
type jobRegistry struct {
	mu         sync.RWMutex
	slots      []*familyWorker // nil = free
	generation uint32
	live       int
	closed     bool
}

func newJobRegistry(capacity int) *jobRegistry {
	return &jobRegistry{slots: make([]*familyWorker, capacity)}
}

// allocate reserves the lowest free slot and builds the family in it.
// build runs under the registry lock and must not call back into the registry.
func (r *jobRegistry) allocate(build func(JobHandle) (*familyWorker, error)) (*familyWorker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrManagerClosed
	}

	slot := -1
	for i, w := range r.slots {
		if w == nil {
			slot = i
			break
		}
	}
	if slot < 0 {
		return nil, fmt.Errorf("%w: %d families registered", ErrCapacityExhausted, r.live)
	}
	if r.generation == math.MaxUint32 {
		return nil, fmt.Errorf("%w: generation counter exhausted", ErrAllocationFailure)
	}

	next := r.generation + 1
	w, err := build(NewJobHandle(uint32(slot), next))
	if err != nil {
		return nil, err
	}

	r.generation = next
	r.slots[slot] = w
	r.live++
	return w, nil
}

// lookup resolves a handle to its live family, or nil.
func (r *jobRegistry) lookup(h JobHandle) *familyWorker {
	if !h.IsValid() {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	slot := int(h.Slot())
	if slot >= len(r.slots) {
		return nil
	}
	w := r.slots[slot]
	if w == nil || w.handle != h {
		return nil
	}
	return w
}

// release frees the slot held by h. It reports false if h is not live.
func (r *jobRegistry) release(h JobHandle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot := int(h.Slot())
	if slot >= len(r.slots) || r.slots[slot] == nil || r.slots[slot].handle != h {
		return false
	}
	r.slots[slot] = nil
	r.live--
	return true
}

// close rejects further allocations and returns the live families in slot order.
func (r *jobRegistry) close() []*familyWorker {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return r.liveLocked()
}

func (r *jobRegistry) all() []*familyWorker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.liveLocked()
}

func (r *jobRegistry) liveLocked() []*familyWorker {
	out := make([]*familyWorker, 0, r.live)
	for _, w := range r.slots {
		if w != nil {
			out = append(out, w)
		}
	}
	return out
}

func (r *jobRegistry) stats() (live int, capacity int, generation uint32, closed bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.live, len(r.slots), r.generation, r.closed
}
