package relay

import (
	"sync"
	"time"
)

// Metrics holds the monotonic counters of one relay instance. Capacity drops,
// sample drops and encode failures all land in Dropped/DroppedBytes; the
// counters reset only when the instance is recreated.
type Metrics struct {
	Dropped       int
	DroppedBytes  int
	SentBatches   int
	SentBytes     int
	FailedFlushes int
	LastError     string
	LastFlushMs   int64
	mu            sync.RWMutex
}

func (m *Metrics) AddDropped(lines, bytes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Dropped += lines
	m.DroppedBytes += bytes
}

func (m *Metrics) AddSentBatch(bytes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentBatches++
	m.SentBytes += bytes
}

func (m *Metrics) AddFailedFlush(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailedFlushes++
	if err != nil {
		m.LastError = err.Error()
	}
}

func (m *Metrics) SetLastFlushDuration(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastFlushMs = d.Milliseconds()
}

func (m *Metrics) GetMetricsStamp() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Metrics{
		Dropped:       m.Dropped,
		DroppedBytes:  m.DroppedBytes,
		SentBatches:   m.SentBatches,
		SentBytes:     m.SentBytes,
		FailedFlushes: m.FailedFlushes,
		LastError:     m.LastError,
		LastFlushMs:   m.LastFlushMs,
	}
}
