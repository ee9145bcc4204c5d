package ui

import (
	"fmt"

	"github.com/roach88/sheetsync/internal/content"
)

// Placeholder texts.
const (
	PlaceholderNoEntries   = "NO ENTRIES"
	PlaceholderNoMatch     = "NO ENTRY FOUND"
	PlaceholderNoTransient = "NO TRANSIENT IMAGE"
)

// FrameKind says what a frame shows.
type FrameKind int

const (
	FramePlaceholder FrameKind = iota
	FrameEntry
	FrameTransient
)

// Frame is everything a display surface needs to draw the current state.
type Frame struct {
	Mode Mode
	Page int
	Kind FrameKind

	// Name of the entry or transient image. Empty for placeholders.
	Name  string
	Image content.RawBitmap

	// Placeholder text when Kind is FramePlaceholder.
	Placeholder string

	// Overlay is set while the diagnostics overlay is enabled.
	Overlay *Overlay
}

// Badge is the "MODE:PAGE" label.
func (f Frame) Badge() string {
	return fmt.Sprintf("%s:%d", f.Mode, f.Page)
}

// Overlay is the textual diagnostics drawn over the content.
type Overlay struct {
	Screen  ScreenInfo
	Focused FocusedWindow
}

// Lines renders the overlay text.
func (o Overlay) Lines() []string {
	return []string{
		"### Screen Info ###",
		fmt.Sprintf("    width:              %d", o.Screen.Width),
		fmt.Sprintf("    height:             %d", o.Screen.Height),
		fmt.Sprintf("    orientation:        %s", o.Screen.Orientation),
		"",
		"### Focused Window Info ###",
		fmt.Sprintf("    wm_class:           %s", o.Focused.WmClass),
		fmt.Sprintf("    wm_class_instance:  %s", o.Focused.WmClassInstance),
		fmt.Sprintf("    pid:                %d", o.Focused.PID),
		fmt.Sprintf("    focus:              %t", o.Focused.Focus),
	}
}

// Frame selects the content to show for the current mode.
func (s *State) Frame(lib Library) Frame {
	f := Frame{Mode: s.Mode, Page: s.ActivePage(), Kind: FramePlaceholder}

	switch s.Mode {
	case ModeManual:
		if e, ok := lib.At(s.manualPage); ok {
			f.Kind, f.Name, f.Image = FrameEntry, e.Name, e.Image
		} else {
			f.Placeholder = PlaceholderNoEntries
		}
	case ModeAutomaticWmClass:
		matches := lib.Resolve(s.Focused.WmClass)
		if p := f.Page; p >= 0 && p < len(matches) {
			f.Kind, f.Name, f.Image = FrameEntry, matches[p].Name, matches[p].Image
		} else {
			f.Placeholder = PlaceholderNoMatch
		}
	case ModeScreenshot:
		if t, ok := s.Transient(); ok {
			f.Kind, f.Name, f.Image = FrameTransient, t.Name, t.Image
		} else {
			f.Placeholder = PlaceholderNoTransient
		}
	}

	if s.ShowStats {
		f.Overlay = &Overlay{Screen: s.Screen, Focused: s.Focused}
	}
	return f
}
