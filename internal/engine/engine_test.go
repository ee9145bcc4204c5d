package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/roach88/sheetsync/internal/content"
	"github.com/roach88/sheetsync/internal/display"
	"github.com/roach88/sheetsync/internal/journal"
	"github.com/roach88/sheetsync/internal/persist"
	"github.com/roach88/sheetsync/internal/ui"
)

const dataDir = "/data"

// jobSink collects submitted save rounds.
type jobSink struct {
	mu     sync.Mutex
	rounds [][]persist.Job
}

func (s *jobSink) Submit(jobs ...persist.Job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rounds = append(s.rounds, jobs)
	return true
}

func (s *jobSink) Rounds() [][]persist.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]persist.Job(nil), s.rounds...)
}

type recordSink struct {
	records []journal.Record
}

func (s *recordSink) Record(r journal.Record) { s.records = append(s.records, r) }

type fixture struct {
	engine  *Engine
	screen  *display.Recorder
	jobs    *jobSink
	records *recordSink
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		screen:  display.NewRecorder(ui.ScreenInfo{Width: 1072, Height: 1448}),
		jobs:    &jobSink{},
		records: &recordSink{},
	}
	all := append([]Option{
		WithSurface(f.screen),
		WithPersister(f.jobs, dataDir),
		WithJournal(f.records),
	}, opts...)
	f.engine = New(nil, all...)
	return f
}

func (f *fixture) step(t *testing.T, msg Message) Outcome {
	t.Helper()
	return f.engine.Step(context.Background(), msg)
}

func img() content.RawBitmap {
	return content.RawBitmap{Format: content.FormatGray8, Width: 2, Height: 1, Pixels: []byte{0, 255}}
}

func upload(name string, tags ...string) UploadEntry {
	return UploadEntry{Name: name, Image: img(), Tags: content.NewTagSet(tags...)}
}

func focus(wm string) FocusedWindowChanged {
	w := ui.NoFocusedWindow()
	w.WmClass = wm
	return FocusedWindowChanged{Info: w}
}

func key(typ ui.EventType, k ui.Key, at time.Time) DeviceInputEvent {
	return DeviceInputEvent{Event: ui.DeviceEvent{Type: typ, Key: k, At: at}}
}

func paths(jobs []persist.Job) []string {
	out := make([]string, 0, len(jobs))
	for _, j := range jobs {
		p := filepath.Base(j.Path)
		if j.Remove {
			p = "-" + p
		}
		out = append(out, p)
	}
	return out
}

func TestEngine_New(t *testing.T) {
	e := New(nil)
	assert.NotNil(t, e.Store())
	assert.Equal(t, ui.ModeAutomaticWmClass, e.State().Mode)
	assert.Equal(t, 0, e.Pending())
}

func TestEngine_Enqueue(t *testing.T) {
	e := New(nil)
	assert.True(t, e.Enqueue(ClearTransient{}))
	assert.Equal(t, 1, e.Pending())
}

func TestStep_UploadEntry(t *testing.T) {
	f := newFixture(t)
	f.step(t, focus("W"))
	f.step(t, AddWmClassTags{WmClass: "W", Tags: []string{"t"}})
	f.screen.Reset()
	before := len(f.jobs.Rounds())

	out := f.step(t, upload("a", "t"))
	require.NoError(t, out.Err)
	assert.True(t, out.Rendered)
	assert.True(t, out.Persisted)
	assert.Len(t, f.screen.Frames(), 1, "exactly one render")

	rounds := f.jobs.Rounds()
	require.Len(t, rounds, before+1)
	assert.Equal(t, []string{"a.bin", "a-metadata.json", "wm_class_tags.json"}, paths(rounds[before]))

	p, ok := f.engine.State().Page("W")
	require.True(t, ok)
	assert.Equal(t, 0, p, "first upload initializes the page")

	f.step(t, upload("b", "t"))
	p, _ = f.engine.State().Page("W")
	assert.Equal(t, 1, p, "later uploads advance the page")

	last, _ := f.screen.Last()
	assert.Equal(t, "b", last.Name)
}

func TestStep_UploadReplaces(t *testing.T) {
	f := newFixture(t)
	f.step(t, upload("a", "x"))
	f.step(t, upload("a", "y"))

	assert.Equal(t, 1, f.engine.Store().Len())
	tags, err := f.engine.Store().Tags("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"y"}, tags.Sorted())
}

func TestStep_RemoveEntry(t *testing.T) {
	f := newFixture(t)
	f.step(t, upload("a"))
	f.step(t, upload("b"))
	f.screen.Reset()

	out := f.step(t, RemoveEntry{Name: "a"})
	assert.True(t, out.Rendered)
	assert.True(t, out.Persisted)
	rounds := f.jobs.Rounds()
	assert.Equal(t,
		[]string{"-a.bin", "-a-metadata.json", "b.bin", "b-metadata.json", "wm_class_tags.json"},
		paths(rounds[len(rounds)-1]),
		"stale files are removed before the save round")

	n := len(f.jobs.Rounds())
	out = f.step(t, RemoveEntry{Name: "a"})
	require.NoError(t, out.Err, "remove is idempotent")
	assert.False(t, out.Rendered)
	assert.False(t, out.Persisted)
	assert.True(t, out.Noop)
	assert.Len(t, f.jobs.Rounds(), n)
	assert.Len(t, f.screen.Frames(), 1)
}

func TestStep_RemoveEntryKeepsPageIndex(t *testing.T) {
	f := newFixture(t)
	f.step(t, focus("W"))
	f.step(t, AddWmClassTags{WmClass: "W", Tags: []string{"t"}})
	f.step(t, upload("a", "t"))
	f.step(t, upload("b", "t"))
	f.step(t, RemoveEntry{Name: "b"})

	p, _ := f.engine.State().Page("W")
	assert.Equal(t, 1, p, "not re-clamped after removal")
	last, _ := f.screen.Last()
	assert.Equal(t, ui.PlaceholderNoMatch, last.Placeholder)

	f.step(t, key(ui.EventKeyDown, ui.KeyPrev, time.Unix(0, 0)))
	f.step(t, key(ui.EventKeyUp, ui.KeyPrev, time.Unix(0, 0)))
	p, _ = f.engine.State().Page("W")
	assert.Equal(t, 0, p, "next navigation clamps")
}

func TestStep_TagRemovalClampsPage(t *testing.T) {
	f := newFixture(t)
	f.step(t, focus("W"))
	f.step(t, AddWmClassTags{WmClass: "W", Tags: []string{"t"}})
	f.step(t, upload("a", "t"))
	f.step(t, upload("b", "t"))
	p, _ := f.engine.State().Page("W")
	require.Equal(t, 1, p)

	out := f.step(t, RemoveEntryTags{Name: "b", Selector: content.Only("t")})
	require.True(t, out.Rendered)
	p, _ = f.engine.State().Page("W")
	assert.Equal(t, 0, p)
	assert.Equal(t, 1, f.engine.Store().CountForWmClass("W"))
	last, _ := f.screen.Last()
	assert.Equal(t, ui.FrameEntry, last.Kind)
	assert.Equal(t, "a", last.Name)
}

func TestStep_WmClassTagRemovalClampsPage(t *testing.T) {
	f := newFixture(t)
	f.step(t, focus("W"))
	f.step(t, AddWmClassTags{WmClass: "W", Tags: []string{"t", "u"}})
	f.step(t, upload("a", "t"))
	f.step(t, upload("b", "u"))

	f.step(t, RemoveWmClassTags{WmClass: "W", Selector: content.Only("u")})
	p, _ := f.engine.State().Page("W")
	assert.Equal(t, 0, p)
	last, _ := f.screen.Last()
	assert.Equal(t, "a", last.Name)
}

func TestStep_ReplacingUploadClampsPage(t *testing.T) {
	f := newFixture(t)
	f.step(t, focus("W"))
	f.step(t, AddWmClassTags{WmClass: "W", Tags: []string{"t"}})
	f.step(t, upload("a", "t"))
	f.step(t, upload("b", "t"))
	f.step(t, upload("c", "t"))
	p, _ := f.engine.State().Page("W")
	require.Equal(t, 2, p)

	f.step(t, upload("c"))
	p, _ = f.engine.State().Page("W")
	assert.Equal(t, 1, p, "two matches left")
	last, _ := f.screen.Last()
	assert.Equal(t, "b", last.Name)
}

func TestStep_Queries(t *testing.T) {
	f := newFixture(t)
	f.step(t, upload("a", "x"))
	f.screen.Reset()
	n := len(f.jobs.Rounds())

	info := NewReply[content.ContentInfo]()
	out := f.step(t, GetContentInfo{Reply: info})
	assert.False(t, out.Rendered)
	assert.False(t, out.Persisted)
	got, err := info.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []content.EntryTags{{Name: "a", Tags: []string{"x"}}}, got.Entries)

	screen := NewReply[ui.ScreenInfo]()
	f.step(t, GetScreenInfo{Reply: screen})
	si, err := screen.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(1072), si.Width)
	assert.Equal(t, si, f.engine.State().Screen)

	assert.Empty(t, f.screen.Frames())
	assert.Len(t, f.jobs.Rounds(), n)
}

func TestStep_GetScreenInfoWithoutDisplay(t *testing.T) {
	e := New(nil)
	r := NewReply[ui.ScreenInfo]()
	e.Step(context.Background(), GetScreenInfo{Reply: r})

	_, err := r.Wait(context.Background())
	assert.Equal(t, CodeDisplayUnavailable, Classify(err))
}

func TestStep_FocusedWindowChanged(t *testing.T) {
	f := newFixture(t)

	out := f.step(t, focus("A"))
	assert.True(t, out.Rendered, "wm_class changed in automatic mode")

	w := ui.NoFocusedWindow()
	w.WmClass, w.Title = "A", "new title"
	out = f.step(t, FocusedWindowChanged{Info: w})
	assert.False(t, out.Rendered, "same wm_class")
	assert.Equal(t, "new title", f.engine.State().Focused.Title)

	f.engine.State().Retreat()
	out = f.step(t, focus("B"))
	assert.False(t, out.Rendered, "manual mode ignores focus")
	assert.Equal(t, "B", f.engine.State().Focused.WmClass)
}

func TestStep_TagMutations(t *testing.T) {
	f := newFixture(t)
	f.step(t, upload("a"))

	out := f.step(t, AddEntryTags{Name: "a", Tags: []string{"x", "y"}})
	require.NoError(t, out.Err)
	assert.True(t, out.Rendered)
	assert.True(t, out.Persisted)

	out = f.step(t, AddEntryTags{Name: "a", Tags: []string{"x"}})
	assert.True(t, out.Noop, "no effective change")
	assert.False(t, out.Rendered)
	assert.False(t, out.Persisted)

	out = f.step(t, RemoveEntryTags{Name: "a", Selector: content.AllTags()})
	require.NoError(t, out.Err)
	tags, _ := f.engine.Store().Tags("a")
	assert.Empty(t, tags)

	out = f.step(t, RemoveEntryTags{Name: "a", Selector: content.AllTags()})
	assert.True(t, out.Noop)
}

func TestStep_TagMutationsNotFound(t *testing.T) {
	f := newFixture(t)
	f.screen.Reset()

	for _, msg := range []Message{
		AddEntryTags{Name: "ghost", Tags: []string{"x"}},
		RemoveEntryTags{Name: "ghost", Selector: content.Only("x")},
		RemoveEntryTags{Name: "ghost", Selector: content.AllTags()},
		RemoveWmClassTags{WmClass: "Ghost", Selector: content.Only("x")},
		RemoveWmClassTags{WmClass: "Ghost", Selector: content.AllTags()},
	} {
		t.Run(msg.Subject(), func(t *testing.T) {
			out := f.step(t, msg)
			assert.True(t, IsNotFound(out.Err))
			assert.False(t, out.Rendered)
			assert.False(t, out.Persisted)
		})
	}
	assert.Empty(t, f.screen.Frames())
	assert.Empty(t, f.jobs.Rounds())
}

func TestStep_WmClassTags(t *testing.T) {
	f := newFixture(t)
	out := f.step(t, AddWmClassTags{WmClass: "W", Tags: []string{"a", "b"}})
	assert.True(t, out.Persisted)

	out = f.step(t, RemoveWmClassTags{WmClass: "W", Selector: content.AllTags()})
	require.NoError(t, out.Err)
	tags, err := f.engine.Store().WmClassTags("W")
	require.NoError(t, err, "emptied bucket is kept")
	assert.Empty(t, tags)
}

func TestStep_ClockAppScenario(t *testing.T) {
	f := newFixture(t)
	f.step(t, upload("alarm", "clock"))
	f.step(t, AddWmClassTags{WmClass: "ClockApp", Tags: []string{"clock"}})

	resolved := func() []string {
		var out []string
		for _, e := range f.engine.Store().Resolve("ClockApp") {
			out = append(out, e.Name)
		}
		return out
	}
	assert.Equal(t, []string{"alarm"}, resolved())

	f.step(t, RemoveEntryTags{Name: "alarm", Selector: content.Only("clock")})
	assert.Empty(t, resolved())
}

func TestStep_Transient(t *testing.T) {
	f := newFixture(t)

	out := f.step(t, ClearTransient{})
	assert.True(t, out.Noop)
	assert.False(t, out.Rendered)

	out = f.step(t, UploadTransient{Name: "shot", Image: img()})
	assert.True(t, out.Rendered)
	assert.False(t, out.Persisted, "transients are never saved")
	assert.Equal(t, ui.ModeScreenshot, f.engine.State().Mode)
	last, _ := f.screen.Last()
	assert.Equal(t, ui.FrameTransient, last.Kind)

	out = f.step(t, ClearTransient{})
	assert.True(t, out.Rendered)
	last, _ = f.screen.Last()
	assert.Equal(t, ui.PlaceholderNoTransient, last.Placeholder)
}

func TestStep_DeviceInput(t *testing.T) {
	f := newFixture(t, WithLongPress(500*time.Millisecond))
	f.step(t, upload("a"))
	f.step(t, upload("b"))
	f.engine.State().Retreat()
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	out := f.step(t, key(ui.EventKeyDown, ui.KeyNext, t0))
	assert.False(t, out.Rendered, "key down alone does nothing visible")
	out = f.step(t, key(ui.EventKeyUp, ui.KeyNext, t0.Add(100*time.Millisecond)))
	assert.True(t, out.Rendered)
	assert.Equal(t, 1, f.engine.State().ManualPage(), "short press pages")

	f.step(t, key(ui.EventKeyDown, ui.KeyNext, t0))
	f.step(t, key(ui.EventKeyUp, ui.KeyNext, t0.Add(500*time.Millisecond)))
	assert.Equal(t, ui.ModeAutomaticWmClass, f.engine.State().Mode, "long press advances")

	f.step(t, key(ui.EventKeyDown, ui.KeyPrev, t0))
	f.step(t, key(ui.EventKeyUp, ui.KeyPrev, t0.Add(time.Second)))
	assert.Equal(t, ui.ModeManual, f.engine.State().Mode, "long press retreats")

	f.step(t, key(ui.EventKeyDown, ui.KeyPrev, t0))
	out = f.step(t, key(ui.EventKeyUp, ui.KeyPrev, t0.Add(time.Second)))
	assert.False(t, out.Rendered, "retreat from manual is a no-op")

	out = f.step(t, key(ui.EventKeyUp, ui.KeyNext, t0))
	assert.True(t, out.Noop, "release without press")

	out = f.step(t, key(ui.EventKeyDown, ui.KeyMenu, t0))
	assert.True(t, out.Rendered)
	last, _ := f.screen.Last()
	assert.NotNil(t, last.Overlay)
}

func TestStep_DeviceLifecycle(t *testing.T) {
	f := newFixture(t)

	for _, typ := range []ui.EventType{ui.EventInit, ui.EventShow, ui.EventRepaint} {
		out := f.step(t, DeviceInputEvent{Event: ui.DeviceEvent{Type: typ}})
		assert.True(t, out.Rendered, typ.String())
	}
	assert.Equal(t, uint32(1448), f.engine.State().Screen.Height, "init reads geometry")

	out := f.step(t, DeviceInputEvent{Event: ui.DeviceEvent{Type: ui.EventExit}})
	assert.True(t, out.Stop)
	assert.True(t, out.Persisted)
}

func TestStep_UsesNowForUnstampedEvents(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := t0
	f := newFixture(t, WithNow(func() time.Time { return now }))
	f.engine.State().Advance()

	f.step(t, DeviceInputEvent{Event: ui.DeviceEvent{Type: ui.EventKeyDown, Key: ui.KeyPrev}})
	now = t0.Add(2 * time.Second)
	f.step(t, DeviceInputEvent{Event: ui.DeviceEvent{Type: ui.EventKeyUp, Key: ui.KeyPrev}})
	assert.Equal(t, ui.ModeAutomaticWmClass, f.engine.State().Mode)
}

func TestStep_RenderFailureIsAbsorbed(t *testing.T) {
	f := newFixture(t)
	f.screen.DrawErr = fmt.Errorf("panel: %w", display.ErrUnavailable)

	out := f.step(t, upload("a"))
	require.NoError(t, out.Err)
	assert.True(t, out.Rendered)
	assert.True(t, out.Persisted)
}

func TestStep_AckCarriesError(t *testing.T) {
	f := newFixture(t)
	msg := AddEntryTags{Name: "ghost", Tags: []string{"x"}}
	msg.Done = NewAck()
	f.step(t, msg)

	_, err := msg.Done.Wait(context.Background())
	assert.True(t, IsNotFound(err))
}

func TestStep_Journal(t *testing.T) {
	f := newFixture(t, WithIDs(NewFixedGenerator("m1", "m2", "m3", "m4")), WithClock(NewClockAt(10)))
	f.step(t, upload("a"))
	f.step(t, AddEntryTags{Name: "ghost", Tags: []string{"x"}})
	f.step(t, RemoveEntry{Name: "nope"})
	f.step(t, Shutdown{})

	require.Len(t, f.records.records, 4)
	assert.Equal(t, journal.Record{
		Seq: 11, ID: "m1", Kind: "UploadEntry", Subject: "a",
		Outcome: journal.OutcomeOK, Rendered: true, Persisted: true,
	}, f.records.records[0])

	r := f.records.records[1]
	assert.Equal(t, int64(12), r.Seq)
	assert.Equal(t, "ghost [x]", r.Subject)
	assert.Equal(t, journal.OutcomeError, r.Outcome)
	assert.Contains(t, r.Error, "ghost")

	assert.Equal(t, journal.OutcomeNoop, f.records.records[2].Outcome)
	assert.Equal(t, journal.OutcomeStopped, f.records.records[3].Outcome)
	assert.True(t, f.records.records[3].Persisted)
}

func TestRun_ShutdownSavesAndStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t)
	h := NewHandler(f.engine)
	errc := make(chan error, 1)
	go func() { errc <- f.engine.Run(context.Background()) }()

	ctx := context.Background()
	require.NoError(t, h.UploadEntry(ctx, "a", img(), []string{"t"}))
	require.True(t, f.engine.Stop())
	require.NoError(t, <-errc)

	rounds := f.jobs.Rounds()
	require.Len(t, rounds, 2, "upload round then final round")
	assert.Equal(t, []string{"a.bin", "a-metadata.json", "wm_class_tags.json"}, paths(rounds[1]))

	assert.False(t, f.engine.Enqueue(ClearTransient{}))
	assert.ErrorIs(t, h.ClearTransient(ctx), ErrChannelClosed)
}

func TestRun_QueriesBehindShutdownAreFailed(t *testing.T) {
	defer goleak.VerifyNone(t)

	e := New(nil)
	info := NewReply[content.ContentInfo]()
	ack := NewAck()
	e.Enqueue(Shutdown{})
	e.Enqueue(GetContentInfo{Reply: info})
	msg := ClearTransient{}
	msg.Done = ack
	e.Enqueue(msg)

	require.NoError(t, e.Run(context.Background()))

	_, err := info.Wait(context.Background())
	assert.ErrorIs(t, err, ErrChannelClosed)
	_, err = ack.Wait(context.Background())
	assert.ErrorIs(t, err, ErrChannelClosed)
}

func TestRun_ContextCancelSaves(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- f.engine.Run(ctx) }()

	h := NewHandler(f.engine)
	require.NoError(t, h.AddWmClassTags(context.Background(), "W", []string{"t"}))
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)

	rounds := f.jobs.Rounds()
	require.Len(t, rounds, 2)
	assert.Equal(t, []string{"wm_class_tags.json"}, paths(rounds[1]))
}

func TestRun_DeviceExitStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t)
	f.engine.Enqueue(DeviceInputEvent{Event: ui.DeviceEvent{Type: ui.EventExit}})
	require.NoError(t, f.engine.Run(context.Background()))
	assert.Len(t, f.jobs.Rounds(), 1)
}

func TestRun_ProcessesInArrivalOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t)
	for i := 0; i < 50; i++ {
		f.engine.Enqueue(upload(fmt.Sprintf("e%02d", i)))
	}
	f.engine.Stop()
	require.NoError(t, f.engine.Run(context.Background()))

	var subjects []string
	for _, r := range f.records.records {
		subjects = append(subjects, r.Subject)
	}
	require.Len(t, subjects, 51)
	for i := 0; i < 50; i++ {
		assert.Equal(t, fmt.Sprintf("e%02d", i), subjects[i])
	}
	for i := 1; i < len(f.records.records); i++ {
		assert.Greater(t, f.records.records[i].Seq, f.records.records[i-1].Seq)
	}
}

func TestRun_ConcurrentUploadsAndQuery(t *testing.T) {
	defer goleak.VerifyNone(t)

	for round := 0; round < 20; round++ {
		e := New(nil)
		h := NewHandler(e)
		errc := make(chan error, 1)
		go func() { errc <- e.Run(context.Background()) }()

		ctx := context.Background()
		var wg sync.WaitGroup
		var info content.ContentInfo
		var infoErr error
		wg.Add(3)
		go func() { defer wg.Done(); assert.NoError(t, h.UploadEntry(ctx, "a", img(), []string{"ta"})) }()
		go func() { defer wg.Done(); assert.NoError(t, h.UploadEntry(ctx, "b", img(), []string{"tb"})) }()
		go func() { defer wg.Done(); info, infoErr = h.ContentInfo(ctx) }()
		wg.Wait()

		require.NoError(t, infoErr)
		seen := map[string][]string{}
		for _, et := range info.Entries {
			seen[et.Name] = et.Tags
		}
		assert.LessOrEqual(t, len(seen), 2)
		if tags, ok := seen["a"]; ok {
			assert.Equal(t, []string{"ta"}, tags, "never partially applied")
		}
		if tags, ok := seen["b"]; ok {
			assert.Equal(t, []string{"tb"}, tags, "never partially applied")
		}

		e.Stop()
		require.NoError(t, <-errc)
	}
}
