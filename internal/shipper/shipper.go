// Package shipper ties the bounded queue, the transport and the flush
// scheduler into one relay instance. Producers hand it payloads and it ships
// them in batches, shedding load instead of ever blocking the caller.
package shipper

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Chichichkin/LogRelay/internal/relay"
	"github.com/Chichichkin/LogRelay/internal/relay/queue"
	"github.com/Chichichkin/LogRelay/internal/relay/transport"
)

type Shipper struct {
	config  relay.Config
	queue   *queue.Queue
	metrics *relay.Metrics
	encode  relay.Encoder

	// newTransport is swapped in tests.
	newTransport func(relay.Config) (relay.Transport, error)

	mu        sync.Mutex
	transport relay.Transport
	connected bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	// flushing is the exclusive-flush guard: at most one in-flight batch.
	flushing atomic.Bool
	closed   atomic.Bool
}

// New builds a relay instance from the config. No I/O happens until Connect.
func New(config relay.Config) *Shipper {
	config = config.WithDefaults()

	metrics := &relay.Metrics{}
	encode := config.Encoder
	if encode == nil {
		encode = relay.NewEncoder(config.DefaultTopic, config.Source)
	}

	return &Shipper{
		config:       config,
		queue:        queue.New(config, metrics),
		metrics:      metrics,
		encode:       encode,
		newTransport: transport.Connect,
	}
}

// Connect opens the transport handle and starts the flush ticker. The only
// fatal outcome is an unsupported endpoint scheme; in that case no timer is
// started. Connect on an already connected or closed instance is a no-op.
func (s *Shipper) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected || s.closed.Load() {
		return nil
	}

	t, err := s.newTransport(s.config)
	if err != nil {
		return err
	}
	s.transport = t
	s.connected = true

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go s.flushLoop(ctx)
	return nil
}

func (s *Shipper) flushLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tryFlush()
		case <-ctx.Done():
			return
		}
	}
}

// Send encodes a payload and enqueues the resulting line. Every failure mode
// (encode error, sampling, capacity) is a counted drop; nothing propagates to
// the producer and nothing blocks.
func (s *Shipper) Send(payload any) {
	if s.closed.Load() {
		return
	}

	line, err := s.encode(payload)
	if err != nil {
		s.metrics.AddDropped(1, 0)
		return
	}
	s.offer(line)
}

// SendLine enqueues an already-framed line, bypassing the encoder. A missing
// trailing newline is added so the wire stays NDJSON.
func (s *Shipper) SendLine(line []byte) {
	if s.closed.Load() || len(line) == 0 {
		return
	}
	if line[len(line)-1] != '\n' {
		framed := make([]byte, 0, len(line)+1)
		framed = append(framed, line...)
		line = append(framed, '\n')
	}
	s.offer(line)
}

// SendChunk enqueues raw text as one framed line, bypassing the encoder.
func (s *Shipper) SendChunk(text string) {
	s.SendLine([]byte(text))
}

func (s *Shipper) offer(line []byte) {
	if s.config.SampleRate < 1 && rand.Float64() >= s.config.SampleRate {
		s.metrics.AddDropped(1, len(line))
		return
	}
	s.queue.Enqueue(line)
}

// FlushNow forces one out-of-band flush attempt. It is safe to call
// concurrently with the ticker; the exclusive-flush guard serializes them.
func (s *Shipper) FlushNow() {
	if s.closed.Load() {
		return
	}
	s.tryFlush()
}

func (s *Shipper) tryFlush() {
	if !s.flushing.CompareAndSwap(false, true) {
		return
	}
	defer s.flushing.Store(false)

	s.mu.Lock()
	t := s.transport
	s.mu.Unlock()
	if t == nil {
		return
	}

	batch := s.queue.DrainBatch(s.config.BatchBytes)
	if len(batch) == 0 {
		return
	}

	start := time.Now()
	err := t.SendBatch(batch)
	s.metrics.SetLastFlushDuration(time.Since(start))

	if err != nil {
		// The drained batch is gone by design; no re-queue, no retry.
		s.metrics.AddFailedFlush(err)
		log.Printf("Failed to flush batch of %d bytes: %v", len(batch), err)
		return
	}
	s.metrics.AddSentBatch(len(batch))
}

// Close stops the scheduler and releases the transport handle. Idempotent.
// An attempt already in flight runs to completion and its outcome is
// discarded along with anything still queued.
func (s *Shipper) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	t := s.transport
	s.mu.Unlock()

	s.wg.Wait()

	if t != nil {
		if err := t.Close(); err != nil {
			log.Printf("Failed to close transport: %v", err)
		}
	}
}

// Status returns a snapshot of the counters plus queue occupancy.
func (s *Shipper) Status() relay.Status {
	stamp := s.metrics.GetMetricsStamp()

	s.mu.Lock()
	lane := ""
	if s.transport != nil {
		lane = s.transport.Lane()
	}
	s.mu.Unlock()

	return relay.Status{
		Endpoint:      s.config.Endpoint,
		Lane:          lane,
		QueuedLines:   s.queue.Len(),
		QueuedBytes:   s.queue.Bytes(),
		Dropped:       stamp.Dropped,
		DroppedBytes:  stamp.DroppedBytes,
		SentBatches:   stamp.SentBatches,
		SentBytes:     stamp.SentBytes,
		FailedFlushes: stamp.FailedFlushes,
		LastError:     stamp.LastError,
		LastFlushMs:   stamp.LastFlushMs,
	}
}
