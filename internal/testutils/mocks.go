package testutils

import (
	"fmt"
	"sync"
	"time"
)

// MockTransport records every batch handed to it and can be told to fail or
// to stall. It also tracks how many SendBatch calls overlap, which tests use
// to assert the single in-flight batch invariant.
type MockTransport struct {
	SentBatches [][]byte
	ShouldFail  bool
	Delay       time.Duration
	LaneLabel   string

	mu          sync.Mutex
	inFlight    int
	maxInFlight int
	closed      bool
}

func (m *MockTransport) SendBatch(batch []byte) error {
	m.mu.Lock()
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	m.mu.Unlock()

	if m.Delay > 0 {
		time.Sleep(m.Delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight--

	if m.ShouldFail {
		return fmt.Errorf("mock send failed")
	}

	copied := make([]byte, len(batch))
	copy(copied, batch)
	m.SentBatches = append(m.SentBatches, copied)
	return nil
}

func (m *MockTransport) Lane() string {
	if m.LaneLabel != "" {
		return m.LaneLabel
	}
	return "mock"
}

func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockTransport) GetSentBatches() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	batches := make([][]byte, len(m.SentBatches))
	copy(batches, m.SentBatches)
	return batches
}

func (m *MockTransport) TotalSentBytes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, b := range m.SentBatches {
		total += len(b)
	}
	return total
}

func (m *MockTransport) MaxInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxInFlight
}

func (m *MockTransport) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MockLineSink collects raw lines, for follower tests.
type MockLineSink struct {
	Lines []string
	mu    sync.Mutex
}

func (m *MockLineSink) SendChunk(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Lines = append(m.Lines, text)
}

func (m *MockLineSink) GetLines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	lines := make([]string, len(m.Lines))
	copy(lines, m.Lines)
	return lines
}
