package core

import (
	"context"
	"reflect"
	"time"
)

// JobFunc is the function a job family runs for every posted job.
//
// The payload is whatever the caller passed to Post; the scheduler never
// inspects it. A returned error is logged and counted but the job is never
// retried.
type JobFunc func(ctx context.Context, payload any) error

// JobStatus is the lifecycle state of a posted job.
type JobStatus int32

const (
	// JobStatusSubmitted: queued, waiting for the family worker.
	JobStatusSubmitted JobStatus = iota
	// JobStatusReady: dequeued and handed to the job function.
	JobStatusReady
	// JobStatusStopped: dequeued and discarded without running.
	JobStatusStopped
)

func (s JobStatus) String() string {
	switch s {
	case JobStatusSubmitted:
		return "submitted"
	case JobStatusReady:
		return "ready"
	case JobStatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// FlushStatus tells whether a flush has been requested on a family.
type FlushStatus int32

const (
	NoFlush FlushStatus = iota
	FlushRequested
)

func (s FlushStatus) String() string {
	if s == FlushRequested {
		return "flush_requested"
	}
	return "no_flush"
}

// ThreadStatus is the lifecycle state of a family worker.
type ThreadStatus int32

const (
	ThreadStatusInitialized ThreadStatus = iota
	ThreadStatusStopped
)

func (s ThreadStatus) String() string {
	if s == ThreadStatusStopped {
		return "stopped"
	}
	return "initialized"
}

// RuntimeJob is one queued unit of work.
//
// Barrier entries (used by Flush) travel through the same queue but never
// reach the job function.
type RuntimeJob struct {
	Handle    JobHandle
	Payload   any
	RequestID uint64
	Status    JobStatus
	PostedAt  time.Time

	seq     uint64
	epoch   uint64
	barrier *flushBarrier
}

// IsBarrier reports whether the entry is a flush marker rather than a job.
func (j *RuntimeJob) IsBarrier() bool {
	return j.barrier != nil
}

// flushBarrier is completed by the worker when it dequeues the marker.
type flushBarrier struct {
	// resume resets the family to NoFlush when the barrier is reached.
	resume bool
	// resetSeq is set when a "leave flushed" barrier is resumed before the
	// worker reaches it: the last sequence posted at that point. Zero keeps
	// the discard window open.
	resetSeq uint64
	done     chan struct{}
}

func newFlushBarrier(resume bool) *flushBarrier {
	return &flushBarrier{resume: resume, done: make(chan struct{})}
}

// payloadEqual compares two payloads the way RemoveJob matches them:
// pointers by identity, other comparable values with ==. Payloads whose
// dynamic type is not comparable never match.
func payloadEqual(a, b any) (equal bool) {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	// Structs holding interfaces can still panic on ==.
	defer func() {
		if recover() != nil {
			equal = false
		}
	}()
	return a == b
}

// =============================================================================
// Context Helper
// =============================================================================

// FamilyInfo identifies the family a job function is running for.
type FamilyInfo struct {
	Handle JobHandle
	Name   string
}

type familyKeyType struct{}

var familyKey familyKeyType

// FamilyFromContext returns the family whose worker is running the current job.
func FamilyFromContext(ctx context.Context) (FamilyInfo, bool) {
	info, ok := ctx.Value(familyKey).(FamilyInfo)
	return info, ok
}

type requestIDKeyType struct{}

var requestIDKey requestIDKeyType

// RequestIDFromContext returns the request id the current job was posted with.
func RequestIDFromContext(ctx context.Context) (uint64, bool) {
	id, ok := ctx.Value(requestIDKey).(uint64)
	return id, ok
}
