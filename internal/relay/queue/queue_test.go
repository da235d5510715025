package queue

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Chichichkin/LogRelay/internal/relay"
)

func testConfig(queueBytes, queueLines, batchBytes int, policy relay.DropPolicy) relay.Config {
	config := relay.DefaultConfig("tcp://localhost:9000")
	config.QueueBytes = queueBytes
	config.QueueLines = queueLines
	config.BatchBytes = batchBytes
	config.Policy = policy
	return config
}

func tenByteLine(tag byte) []byte {
	l := bytes.Repeat([]byte{tag}, 9)
	return append(l, '\n')
}

func TestQueue_EnqueueAndDrain(t *testing.T) {
	metrics := &relay.Metrics{}
	q := New(testConfig(1000, 100, 500, relay.DropOldest), metrics)

	assert.True(t, q.Enqueue([]byte("one\n")))
	assert.True(t, q.Enqueue([]byte("two\n")))
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, 8, q.Bytes())

	batch := q.DrainBatch(500)
	assert.Equal(t, "one\ntwo\n", string(batch))
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 0, q.Bytes())
}

func TestQueue_DrainEmpty(t *testing.T) {
	q := New(testConfig(1000, 100, 500, relay.DropOldest), &relay.Metrics{})
	assert.Nil(t, q.DrainBatch(500))
}

func TestQueue_OversizeLineRejected(t *testing.T) {
	metrics := &relay.Metrics{}
	q := New(testConfig(1000, 100, 20, relay.DropOldest), metrics)

	big := bytes.Repeat([]byte("x"), 21)
	assert.False(t, q.Enqueue(big))
	assert.Equal(t, 0, q.Len())

	stamp := metrics.GetMetricsStamp()
	assert.Equal(t, 1, stamp.Dropped)
	assert.Equal(t, 21, stamp.DroppedBytes)
}

func TestQueue_LineLargerThanByteCeilingRejected(t *testing.T) {
	metrics := &relay.Metrics{}
	q := New(testConfig(15, 100, 500, relay.DropOldest), metrics)

	assert.True(t, q.Enqueue(tenByteLine('a')))
	assert.False(t, q.Enqueue(bytes.Repeat([]byte("x"), 16)))

	// The existing queue is untouched: no pointless eviction happened.
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, 1, metrics.GetMetricsStamp().Dropped)
}

func TestQueue_DropOldest_ByteCeiling(t *testing.T) {
	metrics := &relay.Metrics{}
	q := New(testConfig(25, 100, 500, relay.DropOldest), metrics)

	a, b, c := tenByteLine('a'), tenByteLine('b'), tenByteLine('c')
	assert.True(t, q.Enqueue(a))
	assert.True(t, q.Enqueue(b))
	assert.True(t, q.Enqueue(c))

	assert.Equal(t, 2, q.Len())
	assert.Equal(t, 20, q.Bytes())

	batch := q.DrainBatch(500)
	assert.Equal(t, string(b)+string(c), string(batch))

	stamp := metrics.GetMetricsStamp()
	assert.Equal(t, 1, stamp.Dropped)
	assert.Equal(t, 10, stamp.DroppedBytes)
}

func TestQueue_DropNewest_QueueUnchanged(t *testing.T) {
	metrics := &relay.Metrics{}
	q := New(testConfig(20, 100, 500, relay.DropNewest), metrics)

	a, b, c := tenByteLine('a'), tenByteLine('b'), tenByteLine('c')
	assert.True(t, q.Enqueue(a))
	assert.True(t, q.Enqueue(b))
	assert.False(t, q.Enqueue(c))

	assert.Equal(t, 2, q.Len())
	assert.Equal(t, 20, q.Bytes())

	batch := q.DrainBatch(500)
	assert.Equal(t, string(a)+string(b), string(batch))

	stamp := metrics.GetMetricsStamp()
	assert.Equal(t, 1, stamp.Dropped)
	assert.Equal(t, 10, stamp.DroppedBytes)
}

// maxQueue=2, drop_oldest: three lines in, lines 2 and 3 survive.
func TestQueue_LineCeilingEvictsOldest(t *testing.T) {
	metrics := &relay.Metrics{}
	q := New(testConfig(1000, 2, 500, relay.DropOldest), metrics)

	a, b, c := tenByteLine('1'), tenByteLine('2'), tenByteLine('3')
	assert.True(t, q.Enqueue(a))
	assert.True(t, q.Enqueue(b))
	assert.True(t, q.Enqueue(c))

	assert.Equal(t, 2, q.Len())
	batch := q.DrainBatch(500)
	assert.Equal(t, string(b)+string(c), string(batch))

	stamp := metrics.GetMetricsStamp()
	assert.Equal(t, 1, stamp.Dropped)
	assert.Equal(t, 10, stamp.DroppedBytes)
}

func TestQueue_LineCeilingDropNewest(t *testing.T) {
	metrics := &relay.Metrics{}
	q := New(testConfig(1000, 2, 500, relay.DropNewest), metrics)

	assert.True(t, q.Enqueue(tenByteLine('1')))
	assert.True(t, q.Enqueue(tenByteLine('2')))
	assert.False(t, q.Enqueue(tenByteLine('3')))
	assert.Equal(t, 2, q.Len())
}

// batchBytes=50, five 20-byte lines: one drain returns exactly two lines.
func TestQueue_DrainNeverSplitsALine(t *testing.T) {
	q := New(testConfig(1000, 100, 500, relay.DropOldest), &relay.Metrics{})

	for i := 0; i < 5; i++ {
		l := bytes.Repeat([]byte{byte('a' + i)}, 19)
		assert.True(t, q.Enqueue(append(l, '\n')))
	}

	batch := q.DrainBatch(50)
	assert.Equal(t, 40, len(batch))
	assert.Equal(t, 3, q.Len())
	assert.Equal(t, 60, q.Bytes())
}

func TestQueue_TrackedBytesInvariant(t *testing.T) {
	metrics := &relay.Metrics{}
	q := New(testConfig(200, 15, 100, relay.DropOldest), metrics)

	for i := 0; i < 50; i++ {
		q.Enqueue([]byte(fmt.Sprintf("line-%02d with some padding %d\n", i, i*i)))
		if i%7 == 0 {
			q.DrainBatch(64)
		}

		assert.LessOrEqual(t, q.Len(), 15)
		assert.LessOrEqual(t, q.Bytes(), 200)
	}

	// Drain everything and check the byte count drops to exactly zero.
	for q.Len() > 0 {
		assert.NotNil(t, q.DrainBatch(100))
	}
	assert.Equal(t, 0, q.Bytes())
}

func TestQueue_ConcurrentEnqueue(t *testing.T) {
	metrics := &relay.Metrics{}
	q := New(testConfig(5000, 100, 500, relay.DropOldest), metrics)

	var wg sync.WaitGroup
	wg.Add(5)
	for w := 0; w < 5; w++ {
		go func(id int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				q.Enqueue([]byte(fmt.Sprintf("w%d-%d\n", id, i)))
			}
		}(w)
	}
	wg.Wait()

	stamp := metrics.GetMetricsStamp()
	// Accepted plus dropped must account for all 500 lines.
	assert.Equal(t, 500, q.Len()+stamp.Dropped)
	assert.LessOrEqual(t, q.Len(), 100)
}
