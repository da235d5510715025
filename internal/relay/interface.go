package relay

// Transport ships one drained batch to the collector over a single lane.
// Implementations are best-effort: SendBatch returns an error for accounting
// only, the caller never retries and never re-queues the batch.
type Transport interface {
	SendBatch(batch []byte) error
	Lane() string
	Close() error
}

// Encoder turns an arbitrary payload into one newline-terminated NDJSON line.
// A configured custom encoder fully replaces the default envelope logic.
type Encoder func(payload any) ([]byte, error)

// Status is a point-in-time snapshot of one relay instance.
type Status struct {
	Endpoint      string
	Lane          string
	QueuedLines   int
	QueuedBytes   int
	Dropped       int
	DroppedBytes  int
	SentBatches   int
	SentBytes     int
	FailedFlushes int
	LastError     string
	LastFlushMs   int64
}
