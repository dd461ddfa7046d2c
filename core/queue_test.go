package core

import (
	"testing"
)

func newTestJob(requestID uint64, payload any) *RuntimeJob {
	return &RuntimeJob{RequestID: requestID, Payload: payload, Status: JobStatusSubmitted}
}

func popRequestIDs(t *testing.T, q JobQueue) []uint64 {
	t.Helper()
	var ids []uint64
	for {
		job, ok := q.Pop()
		if !ok {
			return ids
		}
		if job.IsBarrier() {
			ids = append(ids, 0)
			continue
		}
		ids = append(ids, job.RequestID)
	}
}

func assertIDs(t *testing.T, got, want []uint64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

// TestFIFOJobQueue_Order verifies arrival order is kept regardless of request id
// Given: A FIFO queue with out-of-order request ids
// When: Jobs are popped
// Then: They come out in push order
func TestFIFOJobQueue_Order(t *testing.T) {
	// Arrange
	q := NewFIFOJobQueue()

	// Act
	for _, id := range []uint64{3, 1, 2} {
		q.Push(newTestJob(id, nil))
	}

	// Assert
	assertIDs(t, popRequestIDs(t, q), []uint64{3, 1, 2})
	if !q.IsEmpty() {
		t.Error("queue should be empty after popping everything")
	}
}

// TestFIFOJobQueue_SequenceStamped verifies Push assigns increasing sequences
func TestFIFOJobQueue_SequenceStamped(t *testing.T) {
	q := NewFIFOJobQueue()
	a, b := newTestJob(1, nil), newTestJob(2, nil)
	q.Push(a)
	q.Push(b)
	if a.seq == 0 || b.seq <= a.seq {
		t.Fatalf("sequences not increasing: a=%d b=%d", a.seq, b.seq)
	}
}

// TestFIFOJobQueue_RemoveIfKeepsBarriers verifies barriers survive payload removal
// Given: A queue holding jobs and a barrier
// When: RemoveIf matches everything
// Then: Only the jobs are removed and the barrier stays queued
func TestFIFOJobQueue_RemoveIfKeepsBarriers(t *testing.T) {
	q := NewFIFOJobQueue()
	q.Push(newTestJob(1, "a"))
	q.Push(&RuntimeJob{barrier: newFlushBarrier(true)})
	q.Push(newTestJob(2, "b"))

	removed := q.RemoveIf(func(*RuntimeJob) bool { return true })
	if len(removed) != 2 {
		t.Fatalf("removed %d jobs, want 2", len(removed))
	}
	if q.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", q.Len())
	}
	job, _ := q.Pop()
	if !job.IsBarrier() {
		t.Error("remaining entry should be the barrier")
	}
}

// TestFIFOJobQueue_Submitted verifies introspection skips barriers and non-submitted jobs
func TestFIFOJobQueue_Submitted(t *testing.T) {
	q := NewFIFOJobQueue()
	q.Push(newTestJob(1, "a"))
	q.Push(&RuntimeJob{barrier: newFlushBarrier(false)})
	stopped := newTestJob(2, "stopped")
	stopped.Status = JobStatusStopped
	q.Push(stopped)
	q.Push(newTestJob(3, "c"))

	got := q.Submitted()
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("Submitted() = %v, want [a c]", got)
	}
}

// TestFIFOJobQueue_Compaction verifies the backing array shrinks after a burst
// Given: A queue grown well past compactMinCap
// When: Most jobs are popped
// Then: Capacity is reduced but the remaining jobs are intact
func TestFIFOJobQueue_Compaction(t *testing.T) {
	q := NewFIFOJobQueue()
	for i := range 512 {
		q.Push(newTestJob(uint64(i), nil))
	}
	grown := cap(q.jobs)

	for range 500 {
		q.Pop()
	}

	if cap(q.jobs) >= grown {
		t.Errorf("capacity %d not reduced from %d", cap(q.jobs), grown)
	}
	ids := popRequestIDs(t, q)
	if len(ids) != 12 || ids[0] != 500 || ids[11] != 511 {
		t.Errorf("remaining ids = %v, want 500..511", ids)
	}
}

// TestFIFOJobQueue_Drain verifies Drain empties the queue in order
func TestFIFOJobQueue_Drain(t *testing.T) {
	q := NewFIFOJobQueue()
	q.Push(newTestJob(1, nil))
	q.Push(newTestJob(2, nil))

	drained := q.Drain()
	if len(drained) != 2 || drained[0].RequestID != 1 || drained[1].RequestID != 2 {
		t.Fatalf("Drain() returned unexpected jobs: %v", drained)
	}
	if !q.IsEmpty() {
		t.Error("queue not empty after Drain")
	}
}

// TestRequestOrderedJobQueue_Order verifies lowest request id first, FIFO on ties
func TestRequestOrderedJobQueue_Order(t *testing.T) {
	q := NewRequestOrderedJobQueue()
	first := newTestJob(2, "first")
	second := newTestJob(2, "second")
	q.Push(newTestJob(5, nil))
	q.Push(first)
	q.Push(newTestJob(1, nil))
	q.Push(second)

	job, _ := q.Pop()
	if job.RequestID != 1 {
		t.Fatalf("first pop request id = %d, want 1", job.RequestID)
	}
	job, _ = q.Pop()
	if job != first {
		t.Fatal("equal request ids should pop in push order")
	}
	job, _ = q.Pop()
	if job != second {
		t.Fatal("equal request ids should pop in push order")
	}
	job, _ = q.Pop()
	if job.RequestID != 5 {
		t.Fatalf("last pop request id = %d, want 5", job.RequestID)
	}
}

// TestRequestOrderedJobQueue_BarrierAfterQueuedJobs verifies a flush barrier
// never overtakes jobs queued before it
// Given: Jobs with high request ids, then a barrier, then a later job
// When: The queue is drained
// Then: The barrier comes after every earlier job
func TestRequestOrderedJobQueue_BarrierAfterQueuedJobs(t *testing.T) {
	q := NewRequestOrderedJobQueue()
	q.Push(newTestJob(10, nil))
	q.Push(newTestJob(7, nil))
	q.Push(&RuntimeJob{barrier: newFlushBarrier(true)})
	q.Push(newTestJob(20, nil))

	assertIDs(t, popRequestIDs(t, q), []uint64{7, 10, 0, 20})
}

// TestRequestOrderedJobQueue_LaterJobsStayBehindBarrier verifies request id
// ordering stops at a barrier
// Given: A job with id 10, a barrier, then jobs with ids 5 and 3
// When: The queue is drained
// Then: Job 10 and the barrier come first, and the later jobs follow in id order
func TestRequestOrderedJobQueue_LaterJobsStayBehindBarrier(t *testing.T) {
	q := NewRequestOrderedJobQueue()
	q.Push(newTestJob(10, nil))
	q.Push(&RuntimeJob{barrier: newFlushBarrier(false)})
	q.Push(newTestJob(5, "x"))
	q.Push(newTestJob(3, "y"))

	got := q.Submitted()
	if len(got) != 3 || got[0] != nil || got[1] != "y" || got[2] != "x" {
		t.Fatalf("Submitted() = %v, want [<nil> y x]", got)
	}
	assertIDs(t, popRequestIDs(t, q), []uint64{10, 0, 3, 5})
}

// TestRequestOrderedJobQueue_RemoveAndSubmitted verifies removal and sorted introspection
func TestRequestOrderedJobQueue_RemoveAndSubmitted(t *testing.T) {
	q := NewRequestOrderedJobQueue()
	q.Push(newTestJob(3, "c"))
	q.Push(newTestJob(1, "a"))
	q.Push(newTestJob(2, "b"))

	removed := q.RemoveIf(func(j *RuntimeJob) bool { return j.Payload == "b" })
	if len(removed) != 1 {
		t.Fatalf("removed %d, want 1", len(removed))
	}

	got := q.Submitted()
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("Submitted() = %v, want [a c]", got)
	}
	assertIDs(t, popRequestIDs(t, q), []uint64{1, 3})
}

func TestParseQueueOrder(t *testing.T) {
	cases := map[string]QueueOrder{
		"":           QueueOrderFIFO,
		"fifo":       QueueOrderFIFO,
		"FIFO":       QueueOrderFIFO,
		"request_id": QueueOrderRequestID,
		"request-id": QueueOrderRequestID,
	}
	for in, want := range cases {
		got, err := ParseQueueOrder(in)
		if err != nil {
			t.Errorf("ParseQueueOrder(%q) error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseQueueOrder(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseQueueOrder("lifo"); err == nil {
		t.Error("ParseQueueOrder(lifo) should fail")
	}
}

// TestPayloadEqual verifies the RemoveJob matching rules
func TestPayloadEqual(t *testing.T) {
	type frame struct{ id int }
	a, b := &frame{1}, &frame{1}

	if !payloadEqual(a, a) {
		t.Error("same pointer should match")
	}
	if payloadEqual(a, b) {
		t.Error("distinct pointers should not match")
	}
	if !payloadEqual("x", "x") {
		t.Error("equal strings should match")
	}
	if payloadEqual(1, int64(1)) {
		t.Error("different dynamic types should not match")
	}
	if payloadEqual([]int{1}, []int{1}) {
		t.Error("non-comparable payloads should never match")
	}
	if !payloadEqual(nil, nil) {
		t.Error("nil should match nil")
	}
	type holder struct{ v any }
	if payloadEqual(holder{[]int{1}}, holder{[]int{1}}) {
		t.Error("struct holding a slice should not match (and must not panic)")
	}
}
