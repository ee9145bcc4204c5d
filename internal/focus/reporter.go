package focus

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/sheetsync/internal/ui"
)

// DefaultInterval is the polling cadence.
const DefaultInterval = time.Second

// Sink receives focus changes. *transport.Client implements it.
type Sink interface {
	FocusedWindow(ctx context.Context, info ui.FocusedWindow) error
}

// Reporter polls a Source and forwards each change to a Sink.
type Reporter struct {
	src      Source
	sink     Sink
	interval time.Duration

	last     ui.FocusedWindow
	reported bool
}

// NewReporter creates a reporter. A non-positive interval uses
// DefaultInterval.
func NewReporter(src Source, sink Sink, interval time.Duration) *Reporter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Reporter{src: src, sink: sink, interval: interval}
}

// Run polls until ctx is done. Source and sink errors are logged and
// polling continues.
func (r *Reporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.Poll(ctx); err != nil && ctx.Err() == nil {
			slog.Warn("focus poll failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Poll queries the source once and forwards the result if it differs from
// the last one delivered. A failed delivery is retried on the next poll.
func (r *Reporter) Poll(ctx context.Context) (bool, error) {
	w, err := r.src.Focused(ctx)
	if err != nil {
		return false, err
	}
	if r.reported && w == r.last {
		return false, nil
	}
	if err := r.sink.FocusedWindow(ctx, w); err != nil {
		return false, err
	}
	slog.Debug("focused window reported", "wm_class", w.WmClass, "title", w.Title)
	r.last, r.reported = w, true
	return true, nil
}
