package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/sheetsync/internal/content"
	"github.com/roach88/sheetsync/internal/display"
	"github.com/roach88/sheetsync/internal/journal"
	"github.com/roach88/sheetsync/internal/persist"
	"github.com/roach88/sheetsync/internal/queue"
	"github.com/roach88/sheetsync/internal/ui"
)

// Dispatcher accepts persistence jobs. Implemented by *persist.Persister.
type Dispatcher interface {
	Submit(jobs ...persist.Job) bool
}

// Recorder accepts journal records. Implemented by *journal.Writer.
type Recorder interface {
	Record(r journal.Record)
}

// Engine is the single-writer dispatch loop.
//
// Thread-safety model:
//   - Enqueue(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//   - Step(), Store(), State(): only when Run is not running
type Engine struct {
	store   *content.Store
	state   *ui.State
	queue   *queue.Queue[Message]
	clock   *Clock
	ids     IDGenerator
	now     func() time.Time
	surface display.Surface
	persist Dispatcher
	dataDir string
	journal Recorder

	longPress time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithSurface sets the display surface. Without one, renders are counted
// but not drawn and GetScreenInfo fails with CodeDisplayUnavailable.
func WithSurface(s display.Surface) Option {
	return func(e *Engine) { e.surface = s }
}

// WithPersister routes save rounds for dir to d.
func WithPersister(d Dispatcher, dir string) Option {
	return func(e *Engine) {
		e.persist = d
		e.dataDir = dir
	}
}

// WithJournal records every processed message.
func WithJournal(r Recorder) Option {
	return func(e *Engine) { e.journal = r }
}

// WithLongPress sets the press duration that switches mode instead of
// paging. Default: ui.DefaultLongPress.
func WithLongPress(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.longPress = d
		}
	}
}

// WithNow replaces the wall clock used to stamp device events that carry
// no timestamp.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDs replaces the message id generator.
func WithIDs(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithClock replaces the logical clock, e.g. to resume after the last
// journal seq.
func WithClock(c *Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// New creates an engine owning store. A nil store starts empty.
func New(store *content.Store, opts ...Option) *Engine {
	if store == nil {
		store = content.NewStore()
	}
	e := &Engine{
		store:     store,
		state:     ui.NewState(),
		queue:     queue.New[Message](),
		clock:     NewClock(),
		ids:       UUIDv7Generator{},
		now:       time.Now,
		longPress: ui.DefaultLongPress,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enqueue submits a message. Thread-safe: may be called from any goroutine.
//
// Returns false once the loop has stopped accepting messages.
func (e *Engine) Enqueue(msg Message) bool {
	return e.queue.Enqueue(msg)
}

// Stop asks the loop to save and exit after the messages already queued.
func (e *Engine) Stop() bool {
	return e.Enqueue(Shutdown{})
}

// Store returns the content store. Not safe while Run is running.
func (e *Engine) Store() *content.Store { return e.store }

// State returns the UI state. Not safe while Run is running.
func (e *Engine) State() *ui.State { return e.state }

// Pending is the number of queued messages.
func (e *Engine) Pending() int { return e.queue.Len() }

// Run processes messages until Shutdown, a device Exit event, or ctx is
// cancelled. Each of these dispatches a final save round before Run
// returns.
//
// CRITICAL: Must be called from exactly ONE goroutine.
//
// ERROR HANDLING: A failing message is logged with its context and the
// loop continues with the next one.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("dispatch loop starting", "entries", e.store.Len())

	for {
		msg, ok := e.queue.TryDequeue()
		if ok {
			if out := e.Step(ctx, msg); out.Stop {
				e.queue.Close()
				e.abandonPending()
				slog.Info("dispatch loop stopping", "reason", msg.Kind())
				return nil
			}
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("dispatch loop stopping: context cancelled")
			e.queue.Close()
			e.saveAll()
			e.abandonPending()
			return ctx.Err()

		case <-e.queue.Wait():
			if e.queue.Closed() && e.queue.Len() == 0 {
				return nil
			}
		}
	}
}

// abandonPending drops messages queued behind the stop, failing their
// reply handles so no caller waits forever.
func (e *Engine) abandonPending() {
	dropped := 0
	for {
		msg, ok := e.queue.TryDequeue()
		if !ok {
			break
		}
		dropped++
		switch m := msg.(type) {
		case GetScreenInfo:
			m.Reply.Fail(ErrChannelClosed)
		case GetContentInfo:
			m.Reply.Fail(ErrChannelClosed)
		case interface{ ack() *Ack }:
			m.ack().Fail(ErrChannelClosed)
		}
	}
	if dropped > 0 {
		slog.Warn("messages dropped at shutdown", "count", dropped)
	}
}

// Outcome describes what processing one message did.
type Outcome struct {
	Seq     int64
	ID      string
	Kind    string
	Subject string

	// Rendered is set when the message requested a render.
	Rendered bool
	// Persisted is set when the message dispatched a save round.
	Persisted bool
	// Stop is set when the loop must exit after this message.
	Stop bool
	// Noop is set when the message changed nothing.
	Noop bool

	Err error
}

// effect is what a handler asks Step to do after it returns.
type effect struct {
	render  bool
	save    bool
	removal []persist.Job
	stop    bool
	noop    bool
}

// Step processes one message to completion.
// CRITICAL: Called only from Run() goroutine, or from tests and the
// scenario harness when Run is not running.
func (e *Engine) Step(ctx context.Context, msg Message) Outcome {
	out := Outcome{
		Seq:     e.clock.Next(),
		ID:      e.ids.Generate(),
		Kind:    msg.Kind(),
		Subject: msg.Subject(),
	}

	slog.Debug("processing message", "seq", out.Seq, "id", out.ID, "kind", out.Kind, "subject", out.Subject)

	eff, err := e.handle(ctx, msg)
	out.Err = err
	out.Stop = eff.stop
	out.Noop = eff.noop && err == nil

	if eff.save || eff.stop {
		out.Persisted = e.dispatchSave(eff.removal)
	}
	if eff.render {
		out.Rendered = true
		e.render()
	}

	if m, ok := msg.(interface{ ack() *Ack }); ok {
		m.ack().Complete(struct{}{}, err)
	}

	if err != nil {
		logMessageError(out, err)
	}
	e.record(out)
	return out
}

// handle routes msg to its handler.
func (e *Engine) handle(ctx context.Context, msg Message) (effect, error) {
	switch m := msg.(type) {
	case FocusedWindowChanged:
		return e.focusedWindowChanged(m), nil
	case GetScreenInfo:
		return e.getScreenInfo(m), nil
	case GetContentInfo:
		m.Reply.Complete(e.store.Info(), nil)
		return effect{}, nil
	case UploadEntry:
		return e.uploadEntry(m), nil
	case RemoveEntry:
		return e.removeEntry(m), nil
	case UploadTransient:
		e.state.SetTransient(m.Image, m.Name)
		return effect{render: true}, nil
	case ClearTransient:
		if !e.state.ClearTransient() {
			return effect{noop: true}, nil
		}
		return effect{render: true}, nil
	case AddEntryTags:
		return e.addEntryTags(m)
	case RemoveEntryTags:
		return e.removeEntryTags(m)
	case AddWmClassTags:
		return e.addWmClassTags(m), nil
	case RemoveWmClassTags:
		return e.removeWmClassTags(m)
	case DeviceInputEvent:
		return e.deviceInput(m.Event), nil
	case Shutdown:
		return effect{stop: true}, nil
	default:
		return effect{}, fmt.Errorf("unknown message type %T", msg)
	}
}

func (e *Engine) focusedWindowChanged(m FocusedWindowChanged) effect {
	changed := e.state.SetFocused(m.Info)
	if changed && e.state.Mode == ui.ModeAutomaticWmClass {
		return effect{render: true}
	}
	return effect{noop: !changed}
}

func (e *Engine) getScreenInfo(m GetScreenInfo) effect {
	if e.surface == nil {
		m.Reply.Fail(ErrNoDisplay)
		return effect{}
	}
	info, err := e.surface.Geometry()
	if err != nil {
		m.Reply.Fail(&Error{Code: CodeDisplayUnavailable, Message: "query geometry", Err: err})
		return effect{}
	}
	e.state.Screen = info
	m.Reply.Complete(info, nil)
	return effect{}
}

func (e *Engine) uploadEntry(m UploadEntry) effect {
	_, replaced := e.store.Insert(m.Name, m.Image, m.Tags)
	if replaced {
		slog.Debug("entry replaced", "name", m.Name)
	}
	e.state.AfterUpload(e.store)
	if replaced {
		e.state.ClampPages(e.store)
	}
	return effect{render: true, save: true}
}

func (e *Engine) removeEntry(m RemoveEntry) effect {
	if _, ok := e.store.Remove(m.Name); !ok {
		return effect{noop: true}
	}
	// The page index is deliberately left as is; Frame shows a
	// placeholder until the next navigation clamps it.
	return effect{render: true, save: true, removal: persist.RemovalJobs(m.Name, e.dataDir)}
}

// applyTags runs op for each tag, stopping at the first error. Earlier
// tags stay applied.
func applyTags(tags []string, op func(string) (bool, error)) (bool, error) {
	changed := false
	for _, tag := range tags {
		ok, err := op(tag)
		if err != nil {
			return changed, err
		}
		changed = changed || ok
	}
	return changed, nil
}

// tagEffect keeps page indexes in range after an effective tag change,
// since matches may have shrunk.
func (e *Engine) tagEffect(changed bool) effect {
	if !changed {
		return effect{noop: true}
	}
	e.state.ClampPages(e.store)
	return effect{render: true, save: true}
}

func (e *Engine) addEntryTags(m AddEntryTags) (effect, error) {
	if _, err := e.store.Tags(m.Name); err != nil {
		return effect{}, err
	}
	changed, err := applyTags(m.Tags, func(tag string) (bool, error) {
		return e.store.AddTag(m.Name, tag)
	})
	return e.tagEffect(changed), err
}

func (e *Engine) removeEntryTags(m RemoveEntryTags) (effect, error) {
	current, err := e.store.Tags(m.Name)
	if err != nil {
		return effect{}, err
	}
	changed, err := applyTags(m.Selector.Resolve(current), func(tag string) (bool, error) {
		return e.store.RemoveTag(m.Name, tag)
	})
	return e.tagEffect(changed), err
}

func (e *Engine) addWmClassTags(m AddWmClassTags) effect {
	changed := false
	for _, tag := range m.Tags {
		changed = e.store.AddWmClassTag(m.WmClass, tag) || changed
	}
	return e.tagEffect(changed)
}

func (e *Engine) removeWmClassTags(m RemoveWmClassTags) (effect, error) {
	current, err := e.store.WmClassTags(m.WmClass)
	if err != nil {
		return effect{}, err
	}
	changed, err := applyTags(m.Selector.Resolve(current), func(tag string) (bool, error) {
		return e.store.RemoveWmClassTag(m.WmClass, tag)
	})
	return e.tagEffect(changed), err
}

func (e *Engine) deviceInput(ev ui.DeviceEvent) effect {
	at := ev.At
	if at.IsZero() {
		at = e.now()
	}

	switch ev.Type {
	case ui.EventInit:
		e.refreshScreen()
		return effect{render: true}
	case ui.EventShow, ui.EventRepaint:
		return effect{render: true}
	case ui.EventExit:
		return effect{stop: true}
	case ui.EventKeyDown:
		if ev.Key == ui.KeyMenu {
			e.state.ToggleStats()
			return effect{render: true}
		}
		e.state.Press(ev.Key, at)
		return effect{noop: true}
	case ui.EventKeyUp:
		return e.keyUp(ev.Key, at)
	}
	return effect{noop: true}
}

func (e *Engine) keyUp(k ui.Key, at time.Time) effect {
	if k != ui.KeyPrev && k != ui.KeyNext {
		return effect{noop: true}
	}

	var changed bool
	switch e.state.Release(k, at, e.longPress) {
	case ui.GestureLong:
		if k == ui.KeyNext {
			changed = e.state.Advance()
		} else {
			changed = e.state.Retreat()
		}
	case ui.GestureShort:
		if k == ui.KeyNext {
			changed = e.state.NextPage(e.store)
		} else {
			changed = e.state.PrevPage(e.store)
		}
	}
	if !changed {
		return effect{noop: true}
	}
	return effect{render: true}
}

// dispatchSave submits removal jobs and then a full save round. Returns
// whether anything was submitted.
func (e *Engine) dispatchSave(removal []persist.Job) bool {
	if e.persist == nil {
		return false
	}
	jobs, err := persist.EncodeSave(e.store.Snapshot(), e.dataDir)
	if err != nil {
		slog.Error("encode save round", "error", err, "code", CodePersistenceFailure)
		return false
	}
	return e.persist.Submit(append(removal, jobs...)...)
}

func (e *Engine) saveAll() {
	if e.dispatchSave(nil) {
		slog.Info("final save dispatched", "entries", e.store.Len())
	}
}

func (e *Engine) refreshScreen() {
	if e.surface == nil {
		return
	}
	info, err := e.surface.Geometry()
	if err != nil {
		slog.Warn("display geometry unavailable", "error", err)
		return
	}
	e.state.Screen = info
}

// render draws the current state. Failures are logged; the next render
// starts from scratch.
func (e *Engine) render() {
	if e.surface == nil {
		return
	}
	frame := e.state.Frame(e.store)
	if err := e.surface.Draw(frame); err != nil {
		slog.Error("render failed", "badge", frame.Badge(), "error", err, "code", Classify(err))
		return
	}
	if err := e.surface.Flush(); err != nil {
		slog.Error("flush failed", "badge", frame.Badge(), "error", err, "code", Classify(err))
	}
}

func (e *Engine) record(out Outcome) {
	if e.journal == nil {
		return
	}
	r := journal.Record{
		Seq:       out.Seq,
		ID:        out.ID,
		Kind:      out.Kind,
		Subject:   out.Subject,
		Outcome:   journal.OutcomeOK,
		Rendered:  out.Rendered,
		Persisted: out.Persisted,
	}
	switch {
	case out.Err != nil:
		r.Outcome = journal.OutcomeError
		r.Error = out.Err.Error()
	case out.Stop:
		r.Outcome = journal.OutcomeStopped
	case out.Noop:
		r.Outcome = journal.OutcomeNoop
	}
	e.journal.Record(r)
}

// logMessageError logs a handler failure with enough context to replay it.
func logMessageError(out Outcome, err error) {
	level := slog.LevelError
	if errors.Is(err, content.ErrNotFound) {
		level = slog.LevelWarn
	}
	slog.Log(context.Background(), level, "message failed",
		"seq", out.Seq,
		"id", out.ID,
		"kind", out.Kind,
		"subject", out.Subject,
		"code", Classify(err),
		"error", err,
	)
}
