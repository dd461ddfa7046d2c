package threadmanager

import (
	"context"
	"fmt"

	"github.com/Swind/go-thread-manager/core"
)

// Family is a typed view of one job family.
//
// The job function receives P directly instead of an untyped payload, and
// Remove matches payloads with == on P.
type Family[P comparable] struct {
	manager *ThreadManager
	handle  JobHandle
	name    string
}

// RegisterFamily registers a job family whose payloads are of type P.
func RegisterFamily[P comparable](m *ThreadManager, name string, fn func(ctx context.Context, payload P) error) (*Family[P], error) {
	if fn == nil {
		return nil, fmt.Errorf("register %q: %w: nil job function", name, core.ErrAllocationFailure)
	}

	h, err := m.Register(func(ctx context.Context, payload any) error {
		p, ok := payload.(P)
		if !ok && payload != nil {
			return fmt.Errorf("family %q: unexpected payload type %T", name, payload)
		}
		return fn(ctx, p)
	}, name)
	if err != nil {
		return nil, err
	}

	return &Family[P]{manager: m, handle: h, name: name}, nil
}

// Handle returns the underlying family handle.
func (f *Family[P]) Handle() JobHandle { return f.handle }

// Name returns the name the family was registered with.
func (f *Family[P]) Name() string { return f.name }

// Post queues payload on the family.
func (f *Family[P]) Post(payload P, requestID uint64) error {
	return f.manager.Post(f.handle, payload, requestID)
}

// Remove drops every queued job whose payload equals payload.
func (f *Family[P]) Remove(payload P) (int, error) {
	return f.manager.RemoveJob(f.handle, payload)
}

// Pending returns the payloads still waiting in the queue, in dispatch order.
func (f *Family[P]) Pending() ([]P, error) {
	jobs, err := f.manager.GetAllPostedJobs(f.handle)
	if err != nil {
		return nil, err
	}
	out := make([]P, 0, len(jobs))
	for _, j := range jobs {
		if p, ok := j.(P); ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// Flush waits for every job queued so far. See ThreadManager.Flush.
func (f *Family[P]) Flush(force bool) error {
	return f.manager.Flush(f.handle, force)
}

// Stats returns a snapshot of the family.
func (f *Family[P]) Stats() (FamilyStats, error) {
	return f.manager.Stats(f.handle)
}

// Unregister drains and stops the family.
func (f *Family[P]) Unregister() error {
	return f.manager.Unregister(f.handle)
}
