package transport

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/Chichichkin/LogRelay/internal/relay"
)

const requestTimeout = 10 * time.Second

// request is the http(s):// lane: one POST per batch with an NDJSON body,
// optionally gzipped, over a keep-alive client. Response bodies are drained
// and discarded so connections can be reused.
type request struct {
	endpoint string
	headers  map[string]string
	compress bool
	client   *http.Client
}

func newRequest(config relay.Config) *request {
	return &request{
		endpoint: config.Endpoint,
		headers:  config.Headers,
		compress: config.Compress,
		client: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				DisableKeepAlives:   !config.KeepAlive,
				MaxIdleConnsPerHost: 2,
			},
		},
	}
}

func (r *request) SendBatch(batch []byte) error {
	body := batch
	if r.compress {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(batch); err != nil {
			zw.Close()
			return fmt.Errorf("compress batch: %w", err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("compress batch: %w", err)
		}
		body = buf.Bytes()
	}

	req, err := http.NewRequest(http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-ndjson")
	if r.compress {
		req.Header.Set("Content-Encoding", "gzip")
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", r.endpoint, err)
	}
	defer resp.Body.Close()

	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("collector returned status %d", resp.StatusCode)
	}
	return nil
}

func (r *request) Lane() string {
	return "request"
}

func (r *request) Close() error {
	r.client.CloseIdleConnections()
	return nil
}
