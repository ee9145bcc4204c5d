package ui

import (
	"time"

	"github.com/roach88/sheetsync/internal/content"
)

// Library is the read side of the content store the view needs.
type Library interface {
	Len() int
	At(i int) (content.Entry, bool)
	Resolve(wmClass string) []content.Entry
	CountForWmClass(wmClass string) int
}

// Transient is a short-lived image shown in screenshot mode. It is not an
// entry and is never persisted.
type Transient struct {
	Image content.RawBitmap
	Name  string
}

// State is the device's view state.
type State struct {
	Mode      Mode
	Focused   FocusedWindow
	Screen    ScreenInfo
	ShowStats bool

	pages      map[string]int
	manualPage int
	transient  *Transient
	pressed    map[Key]time.Time
}

// NewState returns the startup state: automatic mode, no window, no pages.
func NewState() *State {
	return &State{
		Mode:    DefaultMode,
		Focused: NoFocusedWindow(),
		pages:   make(map[string]int),
		pressed: make(map[Key]time.Time),
	}
}

// Advance steps the mode forward and reports whether it changed.
func (s *State) Advance() bool {
	next := s.Mode.Next()
	changed := next != s.Mode
	s.Mode = next
	return changed
}

// Retreat steps the mode backward and reports whether it changed.
func (s *State) Retreat() bool {
	prev := s.Mode.Prev()
	changed := prev != s.Mode
	s.Mode = prev
	return changed
}

// SetFocused records a focus report and reports whether the wm_class
// differs from the previous one.
func (s *State) SetFocused(info FocusedWindow) bool {
	changed := info.WmClass != s.Focused.WmClass
	s.Focused = info
	return changed
}

// Page returns the page index for wmClass, if one was initialized.
func (s *State) Page(wmClass string) (int, bool) {
	p, ok := s.pages[wmClass]
	return p, ok
}

// ManualPage returns the manual mode page index.
func (s *State) ManualPage() int {
	return s.manualPage
}

// ActivePage is the page index the current mode displays. Screenshot mode
// has no pages and reports 0.
func (s *State) ActivePage() int {
	switch s.Mode {
	case ModeManual:
		return s.manualPage
	case ModeAutomaticWmClass:
		return s.pages[s.Focused.WmClass]
	default:
		return 0
	}
}

// lastIndex is max(0, n-1).
func lastIndex(n int) int {
	if n <= 1 {
		return 0
	}
	return n - 1
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if hi := lastIndex(n); i > hi {
		return hi
	}
	return i
}

// focusedPage returns the focused wm_class page, initializing it to 0 on
// first use.
func (s *State) focusedPage() int {
	wm := s.Focused.WmClass
	p, ok := s.pages[wm]
	if !ok {
		s.pages[wm] = 0
	}
	return p
}

// NextPage moves one page forward in the current mode and reports whether
// the index changed. Screenshot mode never pages.
func (s *State) NextPage(lib Library) bool {
	return s.step(lib, +1)
}

// PrevPage moves one page backward in the current mode and reports whether
// the index changed.
func (s *State) PrevPage(lib Library) bool {
	return s.step(lib, -1)
}

func (s *State) step(lib Library, delta int) bool {
	switch s.Mode {
	case ModeManual:
		next := clamp(s.manualPage+delta, lib.Len())
		changed := next != s.manualPage
		s.manualPage = next
		return changed
	case ModeAutomaticWmClass:
		cur := s.focusedPage()
		next := clamp(cur+delta, lib.CountForWmClass(s.Focused.WmClass))
		s.pages[s.Focused.WmClass] = next
		return next != cur
	default:
		return false
	}
}

// AfterUpload adjusts the focused wm_class page after an entry upload:
// an uninitialized page starts at 0, otherwise it advances by one within
// the current match count.
func (s *State) AfterUpload(lib Library) {
	wm := s.Focused.WmClass
	p, ok := s.pages[wm]
	if !ok {
		s.pages[wm] = 0
		return
	}
	s.pages[wm] = clamp(p+1, lib.CountForWmClass(wm))
}

// ClampPages pulls every wm_class page back within its current match
// count and reports whether any index moved. Tag changes call it; entry
// removal does not.
func (s *State) ClampPages(lib Library) bool {
	changed := false
	for wm, p := range s.pages {
		if next := clamp(p, lib.CountForWmClass(wm)); next != p {
			s.pages[wm] = next
			changed = true
		}
	}
	return changed
}

// SetTransient stores a transient image and switches to screenshot mode.
func (s *State) SetTransient(img content.RawBitmap, name string) {
	s.transient = &Transient{Image: img, Name: name}
	s.Mode = ModeScreenshot
}

// ClearTransient drops the transient image and reports whether one was held.
func (s *State) ClearTransient() bool {
	had := s.transient != nil
	s.transient = nil
	return had
}

// Transient returns the held transient image.
func (s *State) Transient() (Transient, bool) {
	if s.transient == nil {
		return Transient{}, false
	}
	return *s.transient, true
}

// ToggleStats flips the diagnostics overlay.
func (s *State) ToggleStats() {
	s.ShowStats = !s.ShowStats
}

// Press records a key-down.
func (s *State) Press(k Key, at time.Time) {
	s.pressed[k] = at
}

// Release classifies the key-up matching an earlier Press. A release
// without a press yields GestureNone.
func (s *State) Release(k Key, at time.Time, threshold time.Duration) Gesture {
	down, ok := s.pressed[k]
	if !ok {
		return GestureNone
	}
	delete(s.pressed, k)
	if at.Sub(down) >= threshold {
		return GestureLong
	}
	return GestureShort
}
