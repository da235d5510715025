package transport

import (
	"fmt"
	"net"
	"sync"
	"time"
)

const (
	dialTimeout  = 5 * time.Second
	writeTimeout = 5 * time.Second
)

// stream is the tcp:// lane: one persistent connection, batches written as
// concatenated NDJSON with no additional framing. The connection is dialed on
// first use; a failed write closes it so the next flush attempt starts clean.
type stream struct {
	mu   sync.Mutex
	addr string
	conn net.Conn
}

func newStream(addr string) *stream {
	return &stream{addr: addr}
}

func (s *stream) SendBatch(batch []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		conn, err := net.DialTimeout("tcp", s.addr, dialTimeout)
		if err != nil {
			return fmt.Errorf("dial %s: %w", s.addr, err)
		}
		s.conn = conn
	}

	if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		s.dropConn()
		return fmt.Errorf("set deadline %s: %w", s.addr, err)
	}

	if _, err := s.conn.Write(batch); err != nil {
		s.dropConn()
		return fmt.Errorf("write %s: %w", s.addr, err)
	}
	return nil
}

func (s *stream) dropConn() {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

func (s *stream) Lane() string {
	return "stream"
}

func (s *stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
