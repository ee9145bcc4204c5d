package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/sheetsync/internal/content"
	"github.com/roach88/sheetsync/internal/ui"
)

// TraceEvent is one processed message.
type TraceEvent struct {
	Seq       int64  `json:"seq"`
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Subject   string `json:"subject,omitempty"`
	Outcome   string `json:"outcome"`
	Error     string `json:"error,omitempty"`
	Rendered  bool   `json:"rendered"`
	Persisted bool   `json:"persisted"`

	// Frame summarizes what was drawn, when Rendered.
	Frame string `json:"frame,omitempty"`
	// Result is the reply of a query.
	Result string `json:"result,omitempty"`
}

// String is the golden-file line for e.
func (e TraceEvent) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%03d %s %s", e.Seq, e.ID, e.Kind)
	if e.Subject != "" {
		fmt.Fprintf(&b, " %q", e.Subject)
	}
	fmt.Fprintf(&b, " -> %s", e.Outcome)
	if e.Error != "" {
		fmt.Fprintf(&b, " (%s)", e.Error)
	}
	if e.Persisted {
		b.WriteString(" saved")
	}
	if e.Frame != "" {
		fmt.Fprintf(&b, " | %s", e.Frame)
	}
	if e.Result != "" {
		fmt.Fprintf(&b, " = %s", e.Result)
	}
	return b.String()
}

// FrameSummary is a one-line description of a drawn frame.
func FrameSummary(f ui.Frame) string {
	var s string
	switch f.Kind {
	case ui.FrameEntry:
		s = fmt.Sprintf("%s entry %s", f.Badge(), f.Name)
	case ui.FrameTransient:
		s = fmt.Sprintf("%s transient %s", f.Badge(), f.Name)
	default:
		s = fmt.Sprintf("%s placeholder %q", f.Badge(), f.Placeholder)
	}
	if f.Overlay != nil {
		s += " +overlay"
	}
	return s
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every processed message in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	Errors []string `json:"errors,omitempty"`

	// Frames are all frames drawn, in order.
	Frames []ui.Frame `json:"-"`

	// Store and State are the final engine state.
	Store *content.Store `json:"-"`
	State *ui.State      `json:"-"`

	// Jobs counts persistence jobs dispatched.
	Jobs int `json:"jobs"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
