package metrics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const defaultQueueSize = 512

// Collector buffers resolution records on a bounded channel and persists
// them from a single background consumer. Record never blocks the request
// path; when the queue is full the record is dropped and counted.
type Collector struct {
	sink     RecordSink
	exporter *PrometheusExporter

	queue   chan *Record
	dropped atomic.Int64

	closeOnce sync.Once
	done      chan struct{}
}

// CollectorConfig configures the collector.
type CollectorConfig struct {
	// Sink persists records; nil keeps only Prometheus counters.
	Sink RecordSink
	// Exporter receives per-record Prometheus updates; optional.
	Exporter *PrometheusExporter
	// QueueSize bounds the in-flight buffer (default 512).
	QueueSize int
}

// NewCollector creates a collector and starts its consumer goroutine.
func NewCollector(cfg CollectorConfig) *Collector {
	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	c := &Collector{
		sink:     cfg.Sink,
		exporter: cfg.Exporter,
		queue:    make(chan *Record, size),
		done:     make(chan struct{}),
	}
	go c.consume()
	return c
}

// Record enqueues a resolution record without blocking.
func (c *Collector) Record(rec *Record) {
	if rec == nil {
		return
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	select {
	case c.queue <- rec:
	default:
		n := c.dropped.Add(1)
		if n == 1 || n%100 == 0 {
			slog.Warn("metrics queue full, dropping records", "dropped_total", n)
		}
	}
}

// RecordTrustDecision forwards a gate outcome to the exporter.
func (c *Collector) RecordTrustDecision(mode, channel string) {
	if c.exporter != nil {
		c.exporter.RecordTrustDecision(mode, channel)
	}
}

// Dropped reports how many records were discarded because the queue was full.
func (c *Collector) Dropped() int64 {
	return c.dropped.Load()
}

// Close stops the consumer after draining queued records.
func (c *Collector) Close() {
	c.closeOnce.Do(func() {
		close(c.queue)
		<-c.done
	})
}

func (c *Collector) consume() {
	defer close(c.done)
	for rec := range c.queue {
		if c.exporter != nil {
			c.exporter.RecordResolution(rec)
		}
		if c.sink == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := c.sink.AppendResolutionRecord(ctx, rec); err != nil {
			slog.Warn("failed to persist resolution record", "record_id", rec.ID, "error", err)
		}
		cancel()
	}
}
