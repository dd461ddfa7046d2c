package threadmanager

import "github.com/Swind/go-thread-manager/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the threadmanager package for most use cases.

// ThreadManager runs job families on dedicated goroutines
type ThreadManager = core.ThreadManager

// ManagerConfig configures a ThreadManager
type ManagerConfig = core.ManagerConfig

// JobHandle identifies a registered job family
type JobHandle = core.JobHandle

// JobFunc is the function a family runs for every job
type JobFunc = core.JobFunc

// FamilyStats is a snapshot of one job family
type FamilyStats = core.FamilyStats

// ManagerStats is a snapshot of the family registry
type ManagerStats = core.ManagerStats

// JobExecutionRecord is one entry of a family's execution history
type JobExecutionRecord = core.JobExecutionRecord

// FamilyInfo identifies the family running the current job
type FamilyInfo = core.FamilyInfo

// QueueOrder selects the dispatch order inside a family
type QueueOrder = core.QueueOrder

// Queue order constants
const (
	QueueOrderFIFO      QueueOrder = core.QueueOrderFIFO
	QueueOrderRequestID QueueOrder = core.QueueOrderRequestID
)

// InvalidJobHandle is never returned by a successful Register
const InvalidJobHandle = core.InvalidJobHandle

// Errors returned by ThreadManager operations; match them with errors.Is.
var (
	ErrInvalidHandle     = core.ErrInvalidHandle
	ErrCapacityExhausted = core.ErrCapacityExhausted
	ErrAllocationFailure = core.ErrAllocationFailure
	ErrManagerClosed     = core.ErrManagerClosed
)

// NewThreadManager creates a ThreadManager. A nil config uses the defaults.
func NewThreadManager(cfg *ManagerConfig) *ThreadManager {
	return core.NewThreadManager(cfg)
}

// DefaultManagerConfig returns a config with default handlers.
var DefaultManagerConfig = core.DefaultManagerConfig

// FamilyFromContext retrieves the running family from a job context
var FamilyFromContext = core.FamilyFromContext

// RequestIDFromContext retrieves the request id of the running job
var RequestIDFromContext = core.RequestIDFromContext
