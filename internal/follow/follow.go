// Package follow feeds a relay from log files on disk: it discovers *.log
// files under a root path and tails each one, forwarding every new line.
// There is no worker pool; the relay's bounded queue is the backpressure
// point, so one goroutine per followed file is enough.
package follow

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hpcloud/tail"
)

// LineSink receives raw log lines. Satisfied by shipper.Shipper.
type LineSink interface {
	SendChunk(text string)
}

type Config struct {
	// Path is a log file or a directory scanned recursively for *.log files.
	Path         string
	ScanInterval time.Duration
	// If > 0, stop tailing a file after this period without new lines.
	IdleTimeout time.Duration
}

type Follower struct {
	config  Config
	sink    LineSink
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	metrics *Metrics

	mu   sync.Mutex
	seen map[string]struct{}
}

func New(ctx context.Context, config Config, sink LineSink) *Follower {
	nCtx, cancel := context.WithCancel(ctx)
	return &Follower{
		config:  config,
		sink:    sink,
		ctx:     nCtx,
		cancel:  cancel,
		metrics: &Metrics{},
		seen:    make(map[string]struct{}),
	}
}

func (f *Follower) Start() {
	f.scan()

	f.wg.Add(1)
	go f.scanner()
}

func (f *Follower) Stop() {
	f.cancel()
	f.wg.Wait()
}

func (f *Follower) Metrics() Metrics {
	return f.metrics.GetMetricsStamp()
}

func (f *Follower) scanner() {
	defer f.wg.Done()

	interval := f.config.ScanInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			f.scan()
		case <-f.ctx.Done():
			return
		}
	}
}

func (f *Follower) scan() {
	files, err := f.discover()
	if err != nil {
		log.Printf("Error discovering log files: %v", err)
		return
	}

	for _, file := range files {
		f.mu.Lock()
		_, known := f.seen[file]
		if !known {
			f.seen[file] = struct{}{}
		}
		f.mu.Unlock()

		if known {
			continue
		}

		f.metrics.IncFilesDiscovered()
		f.wg.Add(1)
		go f.followFile(file)
	}
}

func (f *Follower) discover() ([]string, error) {
	info, err := os.Stat(f.config.Path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{f.config.Path}, nil
	}

	var files []string
	err = filepath.Walk(f.config.Path, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			log.Printf("Error accessing path %s: %v", path, err)
			return nil
		}
		if !info.IsDir() && strings.HasSuffix(info.Name(), ".log") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func (f *Follower) followFile(path string) {
	defer f.wg.Done()
	defer f.forget(path)

	t, err := tail.TailFile(path, tail.Config{
		Follow:   true,
		ReOpen:   true,
		Poll:     true,
		Location: &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
		Logger:   tail.DiscardingLogger,
	})
	if err != nil {
		log.Printf("Failed to tail file %s: %v", path, err)
		return
	}
	defer t.Cleanup()

	checkTicker := time.NewTicker(1 * time.Second)
	defer checkTicker.Stop()

	lastActivity := time.Now()

	for {
		select {
		case line := <-t.Lines:
			if line == nil {
				continue
			}
			if line.Err != nil {
				log.Printf("Error reading from %s: %v", path, line.Err)
				continue
			}
			f.sink.SendChunk(line.Text)
			f.metrics.IncLinesForwarded()
			lastActivity = time.Now()

		case <-checkTicker.C:
			// waking up from blocking line reading to check context status and idle timeout
			if f.config.IdleTimeout > 0 && time.Since(lastActivity) > f.config.IdleTimeout {
				f.metrics.IncFilesClosed()
				return
			}
		case <-f.ctx.Done():
			return
		}
	}
}

// forget lets a later scan pick the file up again after an idle close.
func (f *Follower) forget(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.seen, path)
}
