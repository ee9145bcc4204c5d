package journal

import (
	"context"
	"log/slog"

	"github.com/roach88/sheetsync/internal/queue"
)

// Appender is the write side of a Journal.
type Appender interface {
	Append(ctx context.Context, r Record) error
}

// Writer queues records and appends them on a background goroutine so the
// caller never waits on SQLite.
type Writer struct {
	dst   Appender
	queue *queue.Queue[Record]
}

// NewWriter creates a writer appending to dst.
func NewWriter(dst Appender) *Writer {
	return &Writer{dst: dst, queue: queue.New[Record]()}
}

// Record enqueues r. Never blocks. Dropped silently after Close.
func (w *Writer) Record(r Record) {
	if !w.queue.Enqueue(r) {
		slog.Debug("journal closed, record dropped", "seq", r.Seq, "kind", r.Kind)
	}
}

// Close stops intake. Run returns once the backlog is written.
func (w *Writer) Close() {
	w.queue.Close()
}

// Run appends records until the writer is closed and drained. Append
// errors are logged and the record is skipped.
func (w *Writer) Run(ctx context.Context) {
	for {
		r, ok := w.queue.Dequeue()
		if !ok {
			return
		}
		if err := w.dst.Append(context.WithoutCancel(ctx), r); err != nil {
			slog.Error("journal append failed", "seq", r.Seq, "kind", r.Kind, "error", err)
		}
	}
}
