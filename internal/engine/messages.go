package engine

import (
	"strings"

	"github.com/roach88/sheetsync/internal/content"
	"github.com/roach88/sheetsync/internal/ui"
)

// Message is anything the dispatch loop consumes. The set is closed: only
// the types in this file implement it.
type Message interface {
	// Kind names the message type for logs and the journal.
	Kind() string
	// Subject names what the message is about, or "".
	Subject() string

	message()
}

// acked is embedded by mutations. Done, when set, is completed with the
// handler's error at the end of the turn.
type acked struct {
	Done *Ack
}

func (a acked) ack() *Ack { return a.Done }

// FocusedWindowChanged reports a new focused window on the host.
type FocusedWindowChanged struct {
	acked
	Info ui.FocusedWindow
}

// GetScreenInfo asks for the display geometry.
type GetScreenInfo struct {
	Reply *Reply[ui.ScreenInfo]
}

// GetContentInfo asks for every entry's tags and every wm_class bucket.
type GetContentInfo struct {
	Reply *Reply[content.ContentInfo]
}

// UploadEntry creates or replaces an entry.
type UploadEntry struct {
	acked
	Name  string
	Image content.RawBitmap
	Tags  content.TagSet
}

// RemoveEntry deletes an entry. Removing an absent entry is a no-op.
type RemoveEntry struct {
	acked
	Name string
}

// UploadTransient shows an image outside the tag-matching flow.
type UploadTransient struct {
	acked
	Name  string
	Image content.RawBitmap
}

// ClearTransient empties the transient slot.
type ClearTransient struct {
	acked
}

// AddEntryTags adds tags to an existing entry.
type AddEntryTags struct {
	acked
	Name string
	Tags []string
}

// RemoveEntryTags removes selected tags from an existing entry.
type RemoveEntryTags struct {
	acked
	Name     string
	Selector content.TagSelector
}

// AddWmClassTags adds tags to a wm_class, creating it if needed.
type AddWmClassTags struct {
	acked
	WmClass string
	Tags    []string
}

// RemoveWmClassTags removes selected tags from an existing wm_class.
type RemoveWmClassTags struct {
	acked
	WmClass  string
	Selector content.TagSelector
}

// DeviceInputEvent forwards a device button or lifecycle event.
type DeviceInputEvent struct {
	acked
	Event ui.DeviceEvent
}

// Shutdown saves the library and stops the loop.
type Shutdown struct {
	acked
}

func (FocusedWindowChanged) Kind() string { return "FocusedWindowChanged" }
func (GetScreenInfo) Kind() string        { return "GetScreenInfo" }
func (GetContentInfo) Kind() string       { return "GetContentInfo" }
func (UploadEntry) Kind() string          { return "UploadEntry" }
func (RemoveEntry) Kind() string          { return "RemoveEntry" }
func (UploadTransient) Kind() string      { return "UploadTransient" }
func (ClearTransient) Kind() string       { return "ClearTransient" }
func (AddEntryTags) Kind() string         { return "AddEntryTags" }
func (RemoveEntryTags) Kind() string      { return "RemoveEntryTags" }
func (AddWmClassTags) Kind() string       { return "AddWmClassTags" }
func (RemoveWmClassTags) Kind() string    { return "RemoveWmClassTags" }
func (DeviceInputEvent) Kind() string     { return "DeviceInputEvent" }
func (Shutdown) Kind() string             { return "Shutdown" }

func (m FocusedWindowChanged) Subject() string { return m.Info.WmClass }
func (GetScreenInfo) Subject() string          { return "" }
func (GetContentInfo) Subject() string         { return "" }
func (m UploadEntry) Subject() string          { return m.Name }
func (m RemoveEntry) Subject() string          { return m.Name }
func (m UploadTransient) Subject() string      { return m.Name }
func (ClearTransient) Subject() string         { return "" }
func (m AddEntryTags) Subject() string         { return m.Name + tagSuffix(m.Tags, false) }
func (m RemoveEntryTags) Subject() string {
	return m.Name + tagSuffix(m.Selector.Tags, m.Selector.All)
}
func (m AddWmClassTags) Subject() string { return m.WmClass + tagSuffix(m.Tags, false) }
func (m RemoveWmClassTags) Subject() string {
	return m.WmClass + tagSuffix(m.Selector.Tags, m.Selector.All)
}
func (m DeviceInputEvent) Subject() string { return m.Event.String() }
func (Shutdown) Subject() string           { return "" }

func tagSuffix(tags []string, all bool) string {
	if all {
		return " [*]"
	}
	return " [" + strings.Join(tags, ",") + "]"
}

func (FocusedWindowChanged) message() {}
func (GetScreenInfo) message()        {}
func (GetContentInfo) message()       {}
func (UploadEntry) message()          {}
func (RemoveEntry) message()          {}
func (UploadTransient) message()      {}
func (ClearTransient) message()       {}
func (AddEntryTags) message()         {}
func (RemoveEntryTags) message()      {}
func (AddWmClassTags) message()       {}
func (RemoveWmClassTags) message()    {}
func (DeviceInputEvent) message()     {}
func (Shutdown) message()             {}
