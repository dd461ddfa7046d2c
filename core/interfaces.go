package core

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// =============================================================================
// PanicHandler: Interface for handling job panics
// =============================================================================

// PanicHandler is called when a job function panics.
//
// Implementations should be thread-safe as they are called from every
// family worker.
type PanicHandler interface {
	// HandlePanic is called when a job panics.
	//
	// Parameters:
	// - ctx: The context the job ran with (carries FamilyInfo)
	// - family: The name of the job family
	// - handle: The handle of the job family
	// - panicInfo: The panic value recovered from the job
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, family string, handle JobHandle, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler logs panics at error level.
type DefaultPanicHandler struct {
	Logger Logger
}

// HandlePanic logs the panic value and stack trace.
func (h *DefaultPanicHandler) HandlePanic(ctx context.Context, family string, handle JobHandle, panicInfo any, stackTrace []byte) {
	logger := h.Logger
	if logger == nil {
		logger = NewDefaultLogger()
	}
	logger.Error("job panicked",
		F("family", family),
		F("handle", handle.String()),
		F("panic", panicInfo),
		F("stack", string(stackTrace)))
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics collects job execution metrics.
//
// Methods are called on the family worker goroutine (or the posting
// goroutine for RecordJobRejected) and must not block.
type Metrics interface {
	// RecordJobDuration records how long a job function ran.
	RecordJobDuration(family string, duration time.Duration)

	// RecordJobFailed records a job function that returned an error.
	RecordJobFailed(family string)

	// RecordJobPanic records a job function that panicked.
	RecordJobPanic(family string, panicInfo any)

	// RecordJobDiscarded records a job dropped without running.
	// reason is "flushed", "stopped" or "removed".
	RecordJobDiscarded(family string, reason string)

	// RecordQueueDepth records the family queue length after a dequeue.
	RecordQueueDepth(family string, depth int)

	// RecordJobRejected records a Post refused by a family that is shutting down.
	RecordJobRejected(family string, reason string)
}

// NilMetrics provides a no-op metrics implementation.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

func (m *NilMetrics) RecordJobDuration(family string, duration time.Duration) {}
func (m *NilMetrics) RecordJobFailed(family string)                           {}
func (m *NilMetrics) RecordJobPanic(family string, panicInfo any)             {}
func (m *NilMetrics) RecordJobDiscarded(family string, reason string)         {}
func (m *NilMetrics) RecordQueueDepth(family string, depth int)               {}
func (m *NilMetrics) RecordJobRejected(family string, reason string)          {}

// =============================================================================
// ManagerConfig: Configuration for ThreadManager
// =============================================================================

// DefaultMaxFamilies is the registry capacity used when none is configured.
const DefaultMaxFamilies = 64

// ManagerConfig holds configuration options for ThreadManager.
// All handlers are optional; if not provided, default implementations will be used.
type ManagerConfig struct {
	// MaxFamilies caps the number of live families. Defaults to DefaultMaxFamilies.
	MaxFamilies int

	// QueueOrder selects the dispatch order inside a family. Defaults to QueueOrderFIFO.
	QueueOrder QueueOrder

	// HistoryCapacity is the number of execution records kept per family.
	HistoryCapacity int

	// Logger defaults to a logrus-backed logger on the standard logrus instance.
	Logger Logger

	// Metrics defaults to NilMetrics.
	Metrics Metrics

	// PanicHandler defaults to DefaultPanicHandler writing to Logger.
	PanicHandler PanicHandler

	// Tracer defaults to the global OpenTelemetry tracer (a no-op unless a provider is installed).
	Tracer trace.Tracer
}

// DefaultManagerConfig returns a config with default handlers.
func DefaultManagerConfig() *ManagerConfig {
	logger := NewDefaultLogger()
	return &ManagerConfig{
		MaxFamilies:     DefaultMaxFamilies,
		QueueOrder:      QueueOrderFIFO,
		HistoryCapacity: defaultJobHistoryCapacity,
		Logger:          logger,
		Metrics:         &NilMetrics{},
		PanicHandler:    &DefaultPanicHandler{Logger: logger},
		Tracer:          defaultTracer(),
	}
}

func (c *ManagerConfig) withDefaults() ManagerConfig {
	out := ManagerConfig{}
	if c != nil {
		out = *c
	}
	if out.MaxFamilies <= 0 {
		out.MaxFamilies = DefaultMaxFamilies
	}
	if out.HistoryCapacity <= 0 {
		out.HistoryCapacity = defaultJobHistoryCapacity
	}
	if out.Logger == nil {
		out.Logger = NewDefaultLogger()
	}
	if out.Metrics == nil {
		out.Metrics = &NilMetrics{}
	}
	if out.PanicHandler == nil {
		out.PanicHandler = &DefaultPanicHandler{Logger: out.Logger}
	}
	if out.Tracer == nil {
		out.Tracer = defaultTracer()
	}
	return out
}
