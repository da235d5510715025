package relay

import (
	"time"
)

type DropPolicy string

const (
	DropOldest DropPolicy = "drop_oldest"
	DropNewest DropPolicy = "drop_newest"
)

const (
	DefaultFlushInterval = 100 * time.Millisecond
	DefaultBatchBytes    = 262144
	DefaultQueueBytes    = 5242880
	DefaultQueueLines    = 10000
	DefaultTopic         = "raw"
)

// Config is the immutable configuration snapshot of one relay instance.
// Build it with DefaultConfig and override fields as needed; a zero SampleRate
// really means "sample everything out", so hand-built configs must set it.
type Config struct {
	// Endpoint is scheme-qualified: tcp://host:port, http://... or https://...
	Endpoint string

	FlushInterval time.Duration
	BatchBytes    int
	QueueBytes    int
	QueueLines    int
	Policy        DropPolicy

	// SampleRate is the probability in [0,1] that an outbound line is kept.
	SampleRate float64

	// KeepAlive controls connection reuse on the request lane.
	KeepAlive bool
	// Compress gzips request-lane bodies.
	Compress bool
	// Headers are set verbatim on every request-lane POST.
	Headers map[string]string

	// Encoder, when non-nil, fully replaces the default envelope encoder.
	Encoder Encoder
	// Source is a static identity merged into every default-encoded envelope.
	Source map[string]any

	DefaultTopic string
}

// DefaultConfig returns a Config for the given endpoint with every knob at
// its documented default.
func DefaultConfig(endpoint string) Config {
	return Config{
		Endpoint:      endpoint,
		FlushInterval: DefaultFlushInterval,
		BatchBytes:    DefaultBatchBytes,
		QueueBytes:    DefaultQueueBytes,
		QueueLines:    DefaultQueueLines,
		Policy:        DropOldest,
		SampleRate:    1,
		KeepAlive:     true,
		DefaultTopic:  DefaultTopic,
	}
}

// WithDefaults fills zero-valued capacity and timing fields and clamps the
// sample rate into [0,1]. SampleRate zero is preserved: it is a valid setting
// that drops everything.
func (c Config) WithDefaults() Config {
	if c.FlushInterval <= 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.BatchBytes <= 0 {
		c.BatchBytes = DefaultBatchBytes
	}
	if c.QueueBytes <= 0 {
		c.QueueBytes = DefaultQueueBytes
	}
	if c.QueueLines <= 0 {
		c.QueueLines = DefaultQueueLines
	}
	if c.Policy != DropNewest {
		c.Policy = DropOldest
	}
	if c.SampleRate < 0 {
		c.SampleRate = 0
	}
	if c.SampleRate > 1 {
		c.SampleRate = 1
	}
	if c.DefaultTopic == "" {
		c.DefaultTopic = DefaultTopic
	}
	return c
}
