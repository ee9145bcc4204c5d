package engine

import (
	"context"

	"github.com/roach88/sheetsync/internal/content"
	"github.com/roach88/sheetsync/internal/ui"
)

// Handler turns remote calls into messages. It is the only way transports
// reach the dispatch loop.
//
// Every call enqueues one message and waits for its reply or
// acknowledgement, or for ctx. No timeout is applied here; callers bound
// ctx themselves.
type Handler struct {
	engine *Engine
}

// NewHandler creates a handler feeding e.
func NewHandler(e *Engine) *Handler {
	return &Handler{engine: e}
}

func (h *Handler) send(ctx context.Context, msg Message, done *Ack) error {
	if !h.engine.Enqueue(msg) {
		return ErrChannelClosed
	}
	_, err := done.Wait(ctx)
	return err
}

// FocusedWindow reports the host's focused window.
func (h *Handler) FocusedWindow(ctx context.Context, info ui.FocusedWindow) error {
	msg := FocusedWindowChanged{Info: info}
	msg.Done = NewAck()
	return h.send(ctx, msg, msg.Done)
}

// ScreenInfo queries the display geometry.
func (h *Handler) ScreenInfo(ctx context.Context) (ui.ScreenInfo, error) {
	reply := NewReply[ui.ScreenInfo]()
	if !h.engine.Enqueue(GetScreenInfo{Reply: reply}) {
		return ui.ScreenInfo{}, ErrChannelClosed
	}
	return reply.Wait(ctx)
}

// ContentInfo queries every entry's tags and every wm_class bucket.
func (h *Handler) ContentInfo(ctx context.Context) (content.ContentInfo, error) {
	reply := NewReply[content.ContentInfo]()
	if !h.engine.Enqueue(GetContentInfo{Reply: reply}) {
		return content.ContentInfo{}, ErrChannelClosed
	}
	return reply.Wait(ctx)
}

// UploadEntry creates or replaces an entry.
func (h *Handler) UploadEntry(ctx context.Context, name string, img content.RawBitmap, tags []string) error {
	msg := UploadEntry{Name: name, Image: img, Tags: content.NewTagSet(tags...)}
	msg.Done = NewAck()
	return h.send(ctx, msg, msg.Done)
}

// RemoveEntry deletes an entry.
func (h *Handler) RemoveEntry(ctx context.Context, name string) error {
	msg := RemoveEntry{Name: name}
	msg.Done = NewAck()
	return h.send(ctx, msg, msg.Done)
}

// UploadTransient shows an image in the transient slot.
func (h *Handler) UploadTransient(ctx context.Context, name string, img content.RawBitmap) error {
	msg := UploadTransient{Name: name, Image: img}
	msg.Done = NewAck()
	return h.send(ctx, msg, msg.Done)
}

// ClearTransient empties the transient slot.
func (h *Handler) ClearTransient(ctx context.Context) error {
	msg := ClearTransient{}
	msg.Done = NewAck()
	return h.send(ctx, msg, msg.Done)
}

// AddEntryTags adds tags to an entry.
func (h *Handler) AddEntryTags(ctx context.Context, name string, tags []string) error {
	msg := AddEntryTags{Name: name, Tags: tags}
	msg.Done = NewAck()
	return h.send(ctx, msg, msg.Done)
}

// RemoveEntryTags removes selected tags from an entry.
func (h *Handler) RemoveEntryTags(ctx context.Context, name string, sel content.TagSelector) error {
	msg := RemoveEntryTags{Name: name, Selector: sel}
	msg.Done = NewAck()
	return h.send(ctx, msg, msg.Done)
}

// AddWmClassTags adds tags to a wm_class.
func (h *Handler) AddWmClassTags(ctx context.Context, wmClass string, tags []string) error {
	msg := AddWmClassTags{WmClass: wmClass, Tags: tags}
	msg.Done = NewAck()
	return h.send(ctx, msg, msg.Done)
}

// RemoveWmClassTags removes selected tags from a wm_class.
func (h *Handler) RemoveWmClassTags(ctx context.Context, wmClass string, sel content.TagSelector) error {
	msg := RemoveWmClassTags{WmClass: wmClass, Selector: sel}
	msg.Done = NewAck()
	return h.send(ctx, msg, msg.Done)
}

// Input forwards device events in order.
func (h *Handler) Input(ctx context.Context, events ...ui.DeviceEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]Message, len(events))
	for i, ev := range events {
		msgs[i] = DeviceInputEvent{Event: ev}
	}
	last := DeviceInputEvent{Event: events[len(events)-1]}
	last.Done = NewAck()
	msgs[len(msgs)-1] = last

	if !h.engine.queue.EnqueueAll(msgs...) {
		return ErrChannelClosed
	}
	_, err := last.Done.Wait(ctx)
	return err
}
