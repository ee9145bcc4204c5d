// Package ui is the device's view state: display mode, per-wm_class and
// manual page indices, the transient image slot, the diagnostics overlay
// and button press tracking.
//
// Like content.Store, a State is owned by the dispatch loop and is not
// safe for concurrent use.
package ui

import (
	"fmt"
	"time"
)

// Mode is the display mode. Modes are totally ordered
// Manual < AutomaticWmClass < Screenshot.
type Mode int

const (
	// ModeManual pages through every entry.
	ModeManual Mode = iota
	// ModeAutomaticWmClass pages through entries matching the focused wm_class.
	ModeAutomaticWmClass
	// ModeScreenshot shows the transient image.
	ModeScreenshot
)

// DefaultMode is the mode at startup.
const DefaultMode = ModeAutomaticWmClass

// DefaultLongPress is the press duration from which a release counts as a
// long press.
const DefaultLongPress = 1000 * time.Millisecond

// Next returns the successor, saturating at ModeScreenshot.
func (m Mode) Next() Mode {
	if m >= ModeScreenshot {
		return ModeScreenshot
	}
	return m + 1
}

// Prev returns the predecessor, saturating at ModeManual.
func (m Mode) Prev() Mode {
	if m <= ModeManual {
		return ModeManual
	}
	return m - 1
}

// String returns the short label drawn in the mode badge.
func (m Mode) String() string {
	switch m {
	case ModeManual:
		return "M"
	case ModeAutomaticWmClass:
		return "A-WMC"
	case ModeScreenshot:
		return "SCR"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode is the inverse of String.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "M":
		return ModeManual, nil
	case "A-WMC":
		return ModeAutomaticWmClass, nil
	case "SCR":
		return ModeScreenshot, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", s)
	}
}

// Key is a device button.
type Key int

const (
	KeyPrev Key = iota + 1
	KeyNext
	KeyMenu
)

func (k Key) String() string {
	switch k {
	case KeyPrev:
		return "prev"
	case KeyNext:
		return "next"
	case KeyMenu:
		return "menu"
	default:
		return fmt.Sprintf("Key(%d)", int(k))
	}
}

// ParseKey is the inverse of String.
func ParseKey(s string) (Key, error) {
	switch s {
	case "prev":
		return KeyPrev, nil
	case "next":
		return KeyNext, nil
	case "menu":
		return KeyMenu, nil
	default:
		return 0, fmt.Errorf("unknown key %q", s)
	}
}

// Gesture classifies a key release.
type Gesture int

const (
	// GestureNone means there was no matching key-down.
	GestureNone Gesture = iota
	GestureShort
	GestureLong
)
