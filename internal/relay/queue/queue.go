package queue

import (
	"sync"

	"github.com/Chichichkin/LogRelay/internal/relay"
)

// Queue is a FIFO of serialized lines with two capacity ceilings enforced on
// every mutation: total bytes and total line count. Capacity is resolved by
// eviction (drop_oldest) or refusal (drop_newest), never by blocking the
// producer. All drops are accounted on the shared metrics.
type Queue struct {
	mu         sync.Mutex
	lines      [][]byte
	bytes      int
	maxBytes   int
	maxLines   int
	batchBytes int
	policy     relay.DropPolicy
	metrics    *relay.Metrics
}

func New(config relay.Config, metrics *relay.Metrics) *Queue {
	return &Queue{
		maxBytes:   config.QueueBytes,
		maxLines:   config.QueueLines,
		batchBytes: config.BatchBytes,
		policy:     config.Policy,
		metrics:    metrics,
	}
}

// Enqueue appends a line to the tail, evicting or refusing per policy.
// The capacity check and the insert happen under one lock.
func (q *Queue) Enqueue(line []byte) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	// A line larger than one batch could never be sent.
	if len(line) > q.batchBytes || len(line) > q.maxBytes {
		q.metrics.AddDropped(1, len(line))
		return false
	}

	if q.bytes+len(line) > q.maxBytes {
		if q.policy == relay.DropNewest {
			q.metrics.AddDropped(1, len(line))
			return false
		}
		q.evictWhile(func() bool { return q.bytes+len(line) > q.maxBytes })
	}

	if len(q.lines)+1 > q.maxLines {
		if q.policy == relay.DropNewest {
			q.metrics.AddDropped(1, len(line))
			return false
		}
		q.evictWhile(func() bool { return len(q.lines)+1 > q.maxLines })
	}

	q.lines = append(q.lines, line)
	q.bytes += len(line)
	return true
}

// evictWhile pops from the head while over is true. Caller holds the lock.
func (q *Queue) evictWhile(over func() bool) {
	for len(q.lines) > 0 && over() {
		head := q.lines[0]
		q.lines[0] = nil
		q.lines = q.lines[1:]
		q.bytes -= len(head)
		q.metrics.AddDropped(1, len(head))
	}
}

// DrainBatch pops lines from the head until adding the next one would exceed
// maxBytes, and returns their concatenation. A batch never splits a line.
// Returns nil when nothing was drained.
func (q *Queue) DrainBatch(maxBytes int) []byte {
	q.mu.Lock()
	defer q.mu.Unlock()

	total := 0
	count := 0
	for _, line := range q.lines {
		if total+len(line) > maxBytes {
			break
		}
		total += len(line)
		count++
	}
	if count == 0 {
		return nil
	}

	batch := make([]byte, 0, total)
	for i := 0; i < count; i++ {
		batch = append(batch, q.lines[i]...)
		q.lines[i] = nil
	}
	q.lines = q.lines[count:]
	q.bytes -= total
	return batch
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lines)
}

func (q *Queue) Bytes() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.bytes
}
