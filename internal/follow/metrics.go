package follow

import (
	"sync"
)

type Metrics struct {
	FilesDiscovered int
	FilesClosed     int
	LinesForwarded  int
	mu              sync.RWMutex
}

func (m *Metrics) IncFilesDiscovered() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FilesDiscovered++
}

func (m *Metrics) IncFilesClosed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FilesClosed++
}

func (m *Metrics) IncLinesForwarded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LinesForwarded++
}

func (m *Metrics) GetMetricsStamp() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Metrics{
		FilesDiscovered: m.FilesDiscovered,
		FilesClosed:     m.FilesClosed,
		LinesForwarded:  m.LinesForwarded,
	}
}
