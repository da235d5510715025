package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Chichichkin/LogRelay/internal/emitter"
	"github.com/Chichichkin/LogRelay/internal/follow"
	"github.com/Chichichkin/LogRelay/internal/preset"
	"github.com/Chichichkin/LogRelay/internal/relay"
	"github.com/Chichichkin/LogRelay/internal/shipper"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	config := loadConfig()

	relayConfig := relay.DefaultConfig(config.Endpoint)
	relayConfig.FlushInterval = config.FlushInterval
	relayConfig.BatchBytes = config.BatchBytes
	relayConfig.QueueBytes = config.QueueBytes
	relayConfig.QueueLines = config.QueueLines
	relayConfig.Policy = relay.DropPolicy(config.DropPolicy)
	relayConfig.SampleRate = config.SampleRate
	relayConfig.KeepAlive = config.KeepAlive
	relayConfig.Compress = config.Compress
	relayConfig.Headers = config.Headers
	relayConfig.Source = preset.Detect(config.Service)

	ship := shipper.New(relayConfig)
	if err := ship.Connect(); err != nil {
		log.Fatalf("Failed to connect relay: %v", err)
	}

	agentLog := emitter.New(emitter.Options{
		Patterns: config.Patterns,
		Relay:    ship,
	}).Topic("agent")
	agentLog.Logf("relay connected to %s", config.Endpoint)

	var follower *follow.Follower
	if config.FollowPath != "" {
		follower = follow.New(ctx, follow.Config{
			Path:         config.FollowPath,
			ScanInterval: config.ScanInterval,
			IdleTimeout:  config.IdleTimeout,
		}, ship)
		follower.Start()
		agentLog.Logf("following logs under %s", config.FollowPath)
	} else {
		go readStdin(ctx, ship, cancel)
		agentLog.Log("reading log lines from stdin")
	}

	go statusReporter(ctx, ship, config.StatusInterval)

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-signalChan:
		log.Println("Received shutdown signal")
		cancel()
	case <-ctx.Done():
	}

	if follower != nil {
		follower.Stop()
	}

	agentLog.Log("shutting down")
	ship.FlushNow()
	ship.Close()
}

func readStdin(ctx context.Context, ship *shipper.Shipper, done context.CancelFunc) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		ship.SendChunk(scanner.Text())
	}
	done()
}

func statusReporter(ctx context.Context, ship *shipper.Shipper, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			status := ship.Status()
			log.Printf(
				"Status: lane=%s queued=%d/%dB sent=%d/%dB dropped=%d/%dB failed=%d lastFlush=%dms",
				status.Lane,
				status.QueuedLines, status.QueuedBytes,
				status.SentBatches, status.SentBytes,
				status.Dropped, status.DroppedBytes,
				status.FailedFlushes,
				status.LastFlushMs,
			)
		case <-ctx.Done():
			return
		}
	}
}

// ------------------------------------  code for reading config -----------------------------------------------------

type AppConfig struct {
	Endpoint       string            `yaml:"endpoint"`
	Service        string            `yaml:"service"`
	Patterns       string            `yaml:"patterns"`
	FlushInterval  time.Duration     `yaml:"flush_interval"`
	BatchBytes     int               `yaml:"batch_bytes"`
	QueueBytes     int               `yaml:"queue_bytes"`
	QueueLines     int               `yaml:"queue_lines"`
	DropPolicy     string            `yaml:"drop_policy"`
	SampleRate     float64           `yaml:"sample_rate"`
	KeepAlive      bool              `yaml:"keep_alive"`
	Compress       bool              `yaml:"compress"`
	Headers        map[string]string `yaml:"headers"`
	FollowPath     string            `yaml:"follow_path"`
	ScanInterval   time.Duration     `yaml:"scan_interval"`
	IdleTimeout    time.Duration     `yaml:"idle_timeout"`
	StatusInterval time.Duration     `yaml:"status_interval"`
}

// loadConfig layers defaults, an optional YAML file (CONFIG_FILE) and
// environment variables, with the environment winning.
func loadConfig() AppConfig {
	config := AppConfig{
		Endpoint:       "http://localhost:8080/ingest",
		Service:        "agent",
		SampleRate:     1,
		KeepAlive:      true,
		ScanInterval:   30 * time.Second,
		IdleTimeout:    5 * time.Minute,
		StatusInterval: 30 * time.Second,
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("Failed to read config file %s: %v", path, err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			log.Fatalf("Failed to parse config file %s: %v", path, err)
		}
	}

	config.Endpoint = getEnv("RELAY_ENDPOINT", config.Endpoint)
	config.Service = getEnv("RELAY_SERVICE", config.Service)
	config.Patterns = getEnv("RELAY_PATTERNS", config.Patterns)
	config.FlushInterval = getEnvAsDuration("FLUSH_INTERVAL", config.FlushInterval)
	config.BatchBytes = getEnvAsInt("BATCH_BYTES", config.BatchBytes)
	config.QueueBytes = getEnvAsInt("QUEUE_BYTES", config.QueueBytes)
	config.QueueLines = getEnvAsInt("QUEUE_LINES", config.QueueLines)
	config.DropPolicy = getEnv("DROP_POLICY", config.DropPolicy)
	config.SampleRate = getEnvAsFloat("SAMPLE_RATE", config.SampleRate)
	config.KeepAlive = getEnvAsBool("KEEP_ALIVE", config.KeepAlive)
	config.Compress = getEnvAsBool("COMPRESS", config.Compress)
	config.FollowPath = getEnv("FOLLOW_PATH", config.FollowPath)
	config.ScanInterval = getEnvAsDuration("SCAN_INTERVAL", config.ScanInterval)
	config.IdleTimeout = getEnvAsDuration("IDLE_TIMEOUT", config.IdleTimeout)
	config.StatusInterval = getEnvAsDuration("STATUS_INTERVAL", config.StatusInterval)

	if token := os.Getenv("RELAY_TOKEN"); token != "" {
		if config.Headers == nil {
			config.Headers = make(map[string]string)
		}
		config.Headers["Authorization"] = "Bearer " + token
	}

	return config
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.ParseFloat(value, 64); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.ParseBool(value); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if result, err := time.ParseDuration(value); err == nil {
			return result
		}
	}
	return defaultValue
}
