package audit

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Worker persists entries in the background so evaluations never wait on a
// sink. When the buffer is full new entries are dropped and counted.
type Worker struct {
	sink    Sink
	inbox   chan Entry
	logger  *slog.Logger
	failed  prometheus.Counter
	dropped prometheus.Counter
	timeout time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

func WithLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithCounters wires failure and drop counters.
func WithCounters(failed, dropped prometheus.Counter) WorkerOption {
	return func(w *Worker) {
		w.failed = failed
		w.dropped = dropped
	}
}

// WithBuffer sets the inbox capacity.
func WithBuffer(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.inbox = make(chan Entry, n)
		}
	}
}

// WithAppendTimeout bounds each sink call.
func WithAppendTimeout(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.timeout = d
		}
	}
}

func NewWorker(sink Sink, opts ...WorkerOption) *Worker {
	w := &Worker{
		sink:    sink,
		inbox:   make(chan Entry, 256),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		timeout: 5 * time.Second,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Append enqueues entry without blocking. It satisfies Sink and never fails.
func (w *Worker) Append(ctx context.Context, entry Entry) error {
	select {
	case w.inbox <- entry:
	default:
		if w.dropped != nil {
			w.dropped.Inc()
		}
		w.logger.WarnContext(ctx, "audit buffer full, entry dropped",
			"application_id", entry.ApplicationID,
			"kind", entry.Kind,
		)
	}
	return nil
}

// Run drains the inbox until Close is called or ctx ends. Entries still
// buffered at Close are flushed before Run returns.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.flush(context.WithoutCancel(ctx))
			return
		case <-w.done:
			w.flush(ctx)
			return
		case entry := <-w.inbox:
			w.persist(ctx, entry)
		}
	}
}

// Close stops Run after it flushes the buffer.
func (w *Worker) Close() {
	w.closeOnce.Do(func() { close(w.done) })
}

func (w *Worker) flush(ctx context.Context) {
	for {
		select {
		case entry := <-w.inbox:
			w.persist(ctx, entry)
		default:
			return
		}
	}
}

func (w *Worker) persist(ctx context.Context, entry Entry) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	if err := w.sink.Append(ctx, entry); err != nil {
		if w.failed != nil {
			w.failed.Inc()
		}
		w.logger.ErrorContext(ctx, "audit append failed",
			"application_id", entry.ApplicationID,
			"kind", entry.Kind,
			"stage", entry.Stage,
			"error", err,
		)
	}
}
