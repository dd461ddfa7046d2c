package core

import (
	"time"

	"github.com/google/uuid"
)

// JobExecutionRecord captures one dispatched job.
type JobExecutionRecord struct {
	ID         uuid.UUID
	Family     string
	Handle     JobHandle
	RequestID  uint64
	PostedAt   time.Time
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
	// QueueDelay is the time between Post and dispatch.
	QueueDelay time.Duration
	Err        error
	Panicked   bool
}

// FamilyStats represents runtime observability state for a job family.
type FamilyStats struct {
	Name       string
	Handle     JobHandle
	Slot       uint32
	Generation uint32
	Status     ThreadStatus
	FlushState FlushStatus

	Pending    int
	Posted     int64
	Dispatched int64
	Discarded  int64
	Removed    int64
	Failed     int64
	Panicked   int64
	Rejected   int64

	// Flushing counts flush callers currently waiting on this family.
	Flushing      int
	LastRequestID uint64
	LastJobAt     time.Time
}

// ManagerStats represents runtime observability state for a ThreadManager.
type ManagerStats struct {
	Families   int
	Capacity   int
	Generation uint32
	QueueOrder QueueOrder
	Closed     bool
}
