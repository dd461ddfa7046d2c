package core

import (
	"container/heap"
	"fmt"
	"sort"
	"strings"
	"sync"
)

const (
	defaultQueueCap     = 16
	compactMinCap       = 64 // Don't compact if capacity is less than this
	compactShrinkFactor = 4  // Trigger compaction when len < cap/4
)

// QueueOrder selects how a family queue orders its jobs.
type QueueOrder int

const (
	// QueueOrderFIFO dispatches jobs in the order they were posted.
	QueueOrderFIFO QueueOrder = iota

	// QueueOrderRequestID dispatches the lowest request id first, falling
	// back to posting order for equal ids. Jobs never cross a flush barrier.
	QueueOrderRequestID
)

func (o QueueOrder) String() string {
	switch o {
	case QueueOrderFIFO:
		return "fifo"
	case QueueOrderRequestID:
		return "request_id"
	default:
		return "unknown"
	}
}

// ParseQueueOrder parses the names produced by QueueOrder.String.
func ParseQueueOrder(s string) (QueueOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fifo":
		return QueueOrderFIFO, nil
	case "request_id", "requestid", "request-id":
		return QueueOrderRequestID, nil
	default:
		return QueueOrderFIFO, fmt.Errorf("unknown queue order %q", s)
	}
}

// JobQueue holds the pending RuntimeJobs of one family.
// Implementations guard their own state; every method is safe for concurrent use.
type JobQueue interface {
	// Push appends the job and stamps its sequence number.
	Push(job *RuntimeJob)
	Pop() (*RuntimeJob, bool)
	// RemoveIf drops every job (never a barrier) for which match returns true.
	RemoveIf(match func(*RuntimeJob) bool) []*RuntimeJob
	// Submitted returns the payloads of queued jobs still in Submitted status, in dispatch order.
	Submitted() []any
	Len() int
	IsEmpty() bool
	// Drain removes and returns everything, barriers included.
	Drain() []*RuntimeJob
}

// NewJobQueue returns an empty queue for the given order.
func NewJobQueue(order QueueOrder) JobQueue {
	if order == QueueOrderRequestID {
		return NewRequestOrderedJobQueue()
	}
	return NewFIFOJobQueue()
}

// =============================================================================
// FIFOJobQueue
// =============================================================================

type FIFOJobQueue struct {
	mu      sync.Mutex
	jobs    []*RuntimeJob
	nextSeq uint64
}

func NewFIFOJobQueue() *FIFOJobQueue {
	return &FIFOJobQueue{
		jobs: make([]*RuntimeJob, 0, defaultQueueCap),
	}
}

func (q *FIFOJobQueue) Push(job *RuntimeJob) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextSeq++
	job.seq = q.nextSeq
	q.jobs = append(q.jobs, job)
}

func (q *FIFOJobQueue) Pop() (*RuntimeJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		return nil, false
	}

	job := q.jobs[0]
	// Clear the slot so the backing array does not pin the payload.
	q.jobs[0] = nil
	q.jobs = q.jobs[1:]
	q.maybeCompactLocked()

	return job, true
}

func (q *FIFOJobQueue) RemoveIf(match func(*RuntimeJob) bool) []*RuntimeJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	var removed []*RuntimeJob
	kept := q.jobs[:0]
	for _, job := range q.jobs {
		if !job.IsBarrier() && match(job) {
			removed = append(removed, job)
			continue
		}
		kept = append(kept, job)
	}
	for i := len(kept); i < len(q.jobs); i++ {
		q.jobs[i] = nil
	}
	q.jobs = kept
	q.maybeCompactLocked()

	return removed
}

func (q *FIFOJobQueue) Submitted() []any {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]any, 0, len(q.jobs))
	for _, job := range q.jobs {
		if job.IsBarrier() || job.Status != JobStatusSubmitted {
			continue
		}
		out = append(out, job.Payload)
	}
	return out
}

func (q *FIFOJobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

func (q *FIFOJobQueue) IsEmpty() bool {
	return q.Len() == 0
}

func (q *FIFOJobQueue) Drain() []*RuntimeJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.jobs
	q.jobs = make([]*RuntimeJob, 0, defaultQueueCap)
	return out
}

func (q *FIFOJobQueue) maybeCompactLocked() {
	n := len(q.jobs)
	c := cap(q.jobs)

	if c < compactMinCap {
		return
	}
	if n == 0 {
		q.jobs = make([]*RuntimeJob, 0, defaultQueueCap)
		return
	}
	if n*compactShrinkFactor >= c {
		return
	}

	newCap := max(max(c/2, defaultQueueCap), n)

	compacted := make([]*RuntimeJob, n, newCap)
	copy(compacted, q.jobs)
	q.jobs = compacted
}

// =============================================================================
// RequestOrderedJobQueue: min-heap on request id, stable for equal ids
// =============================================================================

// requestHeap implements heap.Interface
type requestHeap []*RuntimeJob

func (h requestHeap) Len() int { return len(h) }

func (h requestHeap) Less(i, j int) bool {
	if h[i].epoch != h[j].epoch {
		return h[i].epoch < h[j].epoch
	}
	if bi, bj := h[i].IsBarrier(), h[j].IsBarrier(); bi != bj {
		return bj
	}
	if h[i].RequestID != h[j].RequestID {
		return h[i].RequestID < h[j].RequestID
	}
	return h[i].seq < h[j].seq
}

func (h requestHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *requestHeap) Push(x any) {
	*h = append(*h, x.(*RuntimeJob))
}

func (h *requestHeap) Pop() any {
	old := *h
	n := len(old)
	job := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return job
}

// RequestOrderedJobQueue dispatches the lowest request id first.
//
// Every barrier closes a flush epoch. Jobs are ordered by request id only
// within their epoch, so a job never overtakes a barrier pushed before it
// and a barrier never overtakes a job pushed before it.
type RequestOrderedJobQueue struct {
	mu      sync.Mutex
	pq      requestHeap
	nextSeq uint64
	epoch   uint64
}

func NewRequestOrderedJobQueue() *RequestOrderedJobQueue {
	return &RequestOrderedJobQueue{
		pq: make(requestHeap, 0, defaultQueueCap),
	}
}

func (q *RequestOrderedJobQueue) Push(job *RuntimeJob) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.nextSeq++
	job.seq = q.nextSeq
	job.epoch = q.epoch
	if job.IsBarrier() {
		q.epoch++
	}
	heap.Push(&q.pq, job)
}

func (q *RequestOrderedJobQueue) Pop() (*RuntimeJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pq) == 0 {
		return nil, false
	}
	return heap.Pop(&q.pq).(*RuntimeJob), true
}

func (q *RequestOrderedJobQueue) RemoveIf(match func(*RuntimeJob) bool) []*RuntimeJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	var removed []*RuntimeJob
	kept := make(requestHeap, 0, len(q.pq))
	for _, job := range q.pq {
		if !job.IsBarrier() && match(job) {
			removed = append(removed, job)
			continue
		}
		kept = append(kept, job)
	}
	if len(removed) > 0 {
		heap.Init(&kept)
		q.pq = kept
	}
	return removed
}

func (q *RequestOrderedJobQueue) Submitted() []any {
	q.mu.Lock()
	ordered := make(requestHeap, len(q.pq))
	copy(ordered, q.pq)
	q.mu.Unlock()

	sort.Sort(ordered)

	out := make([]any, 0, len(ordered))
	for _, job := range ordered {
		if job.IsBarrier() || job.Status != JobStatusSubmitted {
			continue
		}
		out = append(out, job.Payload)
	}
	return out
}

func (q *RequestOrderedJobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pq)
}

func (q *RequestOrderedJobQueue) IsEmpty() bool {
	return q.Len() == 0
}

func (q *RequestOrderedJobQueue) Drain() []*RuntimeJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*RuntimeJob, 0, len(q.pq))
	for len(q.pq) > 0 {
		out = append(out, heap.Pop(&q.pq).(*RuntimeJob))
	}
	q.pq = make(requestHeap, 0, defaultQueueCap)
	return out
}
