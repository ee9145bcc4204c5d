package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/sheetsync/internal/content"
	"github.com/roach88/sheetsync/internal/display"
	"github.com/roach88/sheetsync/internal/engine"
	"github.com/roach88/sheetsync/internal/journal"
	"github.com/roach88/sheetsync/internal/persist"
	"github.com/roach88/sheetsync/internal/testutil"
	"github.com/roach88/sheetsync/internal/ui"
)

// DataDir is the directory save jobs are encoded for. Nothing is written.
const DataDir = "/data"

// jobCounter is a persistence dispatcher that only counts.
type jobCounter struct{ n int }

func (c *jobCounter) Submit(jobs ...persist.Job) bool {
	c.n += len(jobs)
	return true
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh engine with an empty store, a
// recording display, and deterministic ids and timestamps.
func Run(scenario *Scenario) (*Result, error) {
	screen := ui.ScreenInfo{Width: 1072, Height: 1448, Orientation: ui.Portrait0}
	if scenario.Screen != nil {
		screen.Width, screen.Height = scenario.Screen.Width, scenario.Screen.Height
	}

	store := content.NewStore()
	surface := display.NewRecorder(screen)
	clock := testutil.NewFakeClock(testutil.Epoch)
	jobs := &jobCounter{}

	opts := []engine.Option{
		engine.WithSurface(surface),
		engine.WithPersister(jobs, DataDir),
		engine.WithIDs(testutil.NewSequentialIDs("msg")),
		engine.WithNow(clock.Now),
	}
	if scenario.LongPressMS > 0 {
		opts = append(opts, engine.WithLongPress(time.Duration(scenario.LongPressMS)*time.Millisecond))
	}
	eng := engine.New(store, opts...)

	ctx := context.Background()
	result := NewResult()

	for i, step := range scenario.Steps {
		msg, read, err := buildMessage(step)
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}

		out := eng.Step(ctx, msg)
		ev := TraceEvent{
			Seq:       out.Seq,
			ID:        out.ID,
			Kind:      out.Kind,
			Subject:   out.Subject,
			Outcome:   outcomeName(out),
			Rendered:  out.Rendered,
			Persisted: out.Persisted,
		}
		if out.Err != nil {
			ev.Error = string(engine.Classify(out.Err))
		}
		if out.Rendered {
			if f, ok := surface.Last(); ok {
				ev.Frame = FrameSummary(f)
			}
		}
		if read != nil {
			res, err := read(ctx)
			if err != nil {
				ev.Outcome = journal.OutcomeError
				ev.Error = string(engine.Classify(err))
			} else {
				ev.Result = res
			}
		}
		result.Trace = append(result.Trace, ev)

		if step.Expect != nil {
			for _, msg := range checkExpect(ev, *step.Expect) {
				result.AddError(fmt.Sprintf("steps[%d] %s: %s", i, step.Message, msg))
			}
		}

		if out.Stop {
			if rest := len(scenario.Steps) - i - 1; rest > 0 {
				result.AddError(fmt.Sprintf("steps[%d] %s: loop stopped with %d steps left", i, step.Message, rest))
			}
			break
		}
	}

	result.Frames = surface.Frames()
	result.Store = eng.Store()
	result.State = eng.State()
	result.Jobs = jobs.n

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}
	return result, nil
}

func outcomeName(out engine.Outcome) string {
	switch {
	case out.Err != nil:
		return journal.OutcomeError
	case out.Stop:
		return journal.OutcomeStopped
	case out.Noop:
		return journal.OutcomeNoop
	default:
		return journal.OutcomeOK
	}
}

// reader fetches a query reply after its message was processed.
type reader func(ctx context.Context) (string, error)

func buildMessage(step Step) (engine.Message, reader, error) {
	img := bitmap(step.Image)

	switch step.Message {
	case MsgFocusedWindow:
		return engine.FocusedWindowChanged{Info: ui.FocusedWindow{
			Title:   step.Title,
			WmClass: step.WmClass,
			PID:     ui.UnknownPID,
			Focus:   true,
		}}, nil, nil
	case MsgScreenInfo:
		reply := engine.NewReply[ui.ScreenInfo]()
		return engine.GetScreenInfo{Reply: reply}, func(ctx context.Context) (string, error) {
			si, err := reply.Wait(ctx)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%dx%d %s", si.Width, si.Height, si.Orientation), nil
		}, nil
	case MsgContentInfo:
		reply := engine.NewReply[content.ContentInfo]()
		return engine.GetContentInfo{Reply: reply}, func(ctx context.Context) (string, error) {
			info, err := reply.Wait(ctx)
			if err != nil {
				return "", err
			}
			data, err := json.Marshal(info)
			return string(data), err
		}, nil
	case MsgUploadEntry:
		return engine.UploadEntry{Name: step.Name, Image: img, Tags: content.NewTagSet(step.Tags...)}, nil, nil
	case MsgRemoveEntry:
		return engine.RemoveEntry{Name: step.Name}, nil, nil
	case MsgUploadTransient:
		return engine.UploadTransient{Name: step.Name, Image: img}, nil, nil
	case MsgClearTransient:
		return engine.ClearTransient{}, nil, nil
	case MsgAddEntryTags:
		return engine.AddEntryTags{Name: step.Name, Tags: step.Tags}, nil, nil
	case MsgRemoveEntryTags:
		return engine.RemoveEntryTags{Name: step.Name, Selector: selector(step)}, nil, nil
	case MsgAddWmClassTags:
		return engine.AddWmClassTags{WmClass: step.WmClass, Tags: step.Tags}, nil, nil
	case MsgRemoveWmClassTags:
		return engine.RemoveWmClassTags{WmClass: step.WmClass, Selector: selector(step)}, nil, nil
	case MsgInput:
		ev, err := deviceEvent(step)
		if err != nil {
			return nil, nil, err
		}
		return engine.DeviceInputEvent{Event: ev}, nil, nil
	case MsgShutdown:
		return engine.Shutdown{}, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown message %q", step.Message)
	}
}

func selector(step Step) content.TagSelector {
	if step.All {
		return content.AllTags()
	}
	return content.Only(step.Tags...)
}

func deviceEvent(step Step) (ui.DeviceEvent, error) {
	typ, err := ui.ParseEventType(step.Event)
	if err != nil {
		return ui.DeviceEvent{}, err
	}
	ev := ui.DeviceEvent{Type: typ, At: testutil.Epoch.Add(time.Duration(step.AtMS) * time.Millisecond)}
	if typ == ui.EventKeyDown || typ == ui.EventKeyUp {
		if ev.Key, err = ui.ParseKey(step.Key); err != nil {
			return ui.DeviceEvent{}, err
		}
	}
	return ev, nil
}

func bitmap(spec *ImageSpec) content.RawBitmap {
	w, h, fill := uint32(1), uint32(1), uint8(0)
	if spec != nil {
		w, h, fill = spec.Width, spec.Height, spec.Fill
	}
	px := make([]byte, int(w)*int(h))
	for i := range px {
		px[i] = fill
	}
	return content.RawBitmap{Format: content.FormatGray8, Order: content.LittleEndian, Width: w, Height: h, Pixels: px}
}

func checkExpect(ev TraceEvent, want Expect) []string {
	var errs []string
	if want.Outcome != "" && want.Outcome != ev.Outcome {
		errs = append(errs, fmt.Sprintf("outcome = %s, want %s", ev.Outcome, want.Outcome))
	}
	if want.Error != "" && want.Error != ev.Error {
		errs = append(errs, fmt.Sprintf("error = %q, want %q", ev.Error, want.Error))
	}
	if want.Rendered != nil && *want.Rendered != ev.Rendered {
		errs = append(errs, fmt.Sprintf("rendered = %t, want %t", ev.Rendered, *want.Rendered))
	}
	if want.Persisted != nil && *want.Persisted != ev.Persisted {
		errs = append(errs, fmt.Sprintf("persisted = %t, want %t", ev.Persisted, *want.Persisted))
	}
	return errs
}
