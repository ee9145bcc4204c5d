// Package display draws ui.Frames onto an output surface.
//
// The dispatch loop is the only caller. A surface is never used from two
// goroutines.
package display

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/roach88/sheetsync/internal/ui"
)

// ErrUnavailable is returned when a surface cannot report geometry or draw.
var ErrUnavailable = errors.New("display unavailable")

// Surface is an output device.
type Surface interface {
	// Geometry reports the current screen size and orientation.
	Geometry() (ui.ScreenInfo, error)
	// Draw lays out a frame. Nothing is visible until Flush.
	Draw(f ui.Frame) error
	// Flush pushes the drawn frame to the device.
	Flush() error
}

// Headless is a fixed-geometry surface that discards frames.
type Headless struct {
	Screen ui.ScreenInfo
	frames int
}

// NewHeadless creates a headless surface reporting width x height.
func NewHeadless(width, height uint32) *Headless {
	return &Headless{Screen: ui.ScreenInfo{Width: width, Height: height, Orientation: ui.Portrait0}}
}

func (h *Headless) Geometry() (ui.ScreenInfo, error) { return h.Screen, nil }

func (h *Headless) Draw(f ui.Frame) error {
	h.frames++
	slog.Debug("frame", "badge", f.Badge(), "name", f.Name, "placeholder", f.Placeholder)
	return nil
}

func (h *Headless) Flush() error { return nil }

// Frames is the number of frames drawn.
func (h *Headless) Frames() int { return h.frames }

// Recorder keeps every flushed frame. Used by tests and the scenario harness.
type Recorder struct {
	Screen ui.ScreenInfo

	// DrawErr, when set, is returned by Draw and nothing is recorded.
	DrawErr error

	mu      sync.Mutex
	pending *ui.Frame
	frames  []ui.Frame
}

// NewRecorder creates a recorder reporting screen.
func NewRecorder(screen ui.ScreenInfo) *Recorder {
	return &Recorder{Screen: screen}
}

func (r *Recorder) Geometry() (ui.ScreenInfo, error) { return r.Screen, nil }

func (r *Recorder) Draw(f ui.Frame) error {
	if r.DrawErr != nil {
		return r.DrawErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = &f
	return nil
}

func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending != nil {
		r.frames = append(r.frames, *r.pending)
		r.pending = nil
	}
	return nil
}

// Frames returns a copy of the flushed frames.
func (r *Recorder) Frames() []ui.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ui.Frame(nil), r.frames...)
}

// Last returns the most recent flushed frame.
func (r *Recorder) Last() (ui.Frame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.frames) == 0 {
		return ui.Frame{}, false
	}
	return r.frames[len(r.frames)-1], true
}

// Reset forgets recorded frames.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = nil
	r.pending = nil
}
