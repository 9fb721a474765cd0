package trust

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// AuditSink persists trust decisions. The store implements it.
type AuditSink interface {
	AppendTrustDecision(ctx context.Context, decision *Decision) error
}

// AuditWriter decouples the user-facing turn from audit persistence: a
// bounded channel feeds a single background consumer, so a slow storage
// backend can neither block an evaluation nor spawn unbounded write
// goroutines. Write errors are logged and swallowed; when the buffer is full
// the decision is dropped and counted.
type AuditWriter struct {
	sink    AuditSink
	queue   chan *Decision
	done    chan struct{}
	wg      sync.WaitGroup
	dropped int64
	mu      sync.Mutex
}

// NewAuditWriter creates and starts an audit writer. bufferSize caps the
// number of decisions waiting for persistence.
func NewAuditWriter(sink AuditSink, bufferSize int) *AuditWriter {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	w := &AuditWriter{
		sink:  sink,
		queue: make(chan *Decision, bufferSize),
		done:  make(chan struct{}),
	}
	w.wg.Add(1)
	go w.consume()
	return w
}

// Append enqueues a decision without blocking. A full buffer drops the
// record rather than delaying the turn.
func (w *AuditWriter) Append(decision *Decision) {
	select {
	case <-w.done:
	case w.queue <- decision:
	default:
		w.mu.Lock()
		w.dropped++
		dropped := w.dropped
		w.mu.Unlock()
		slog.Warn("audit buffer full, dropping decision", "dropped_total", dropped)
	}
}

// Dropped returns the number of decisions lost to a full buffer.
func (w *AuditWriter) Dropped() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped
}

// Close stops the consumer after draining whatever is already queued.
func (w *AuditWriter) Close() {
	close(w.done)
	w.wg.Wait()
}

func (w *AuditWriter) consume() {
	defer w.wg.Done()
	for {
		select {
		case decision := <-w.queue:
			w.persist(decision)
		case <-w.done:
			// Drain remaining entries before exit.
			for {
				select {
				case decision := <-w.queue:
					w.persist(decision)
				default:
					return
				}
			}
		}
	}
}

func (w *AuditWriter) persist(decision *Decision) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.sink.AppendTrustDecision(ctx, decision); err != nil {
		slog.Warn("failed to persist trust decision", "decision_id", decision.ID, "error", err)
	}
}
