package ui

import (
	"fmt"
	"math"
)

// FocusedWindow describes the host's focused window. Values are produced
// outside the device and never modified after receipt.
type FocusedWindow struct {
	Title           string `json:"title"`
	WmClass         string `json:"wm_class"`
	WmClassInstance string `json:"wm_class_instance"`
	PID             uint64 `json:"pid"`
	Focus           bool   `json:"focus"`
}

// UnknownPID marks a window whose process is not known.
const UnknownPID uint64 = math.MaxUint64

// NoFocusedWindow is the value before any report arrives.
func NoFocusedWindow() FocusedWindow {
	return FocusedWindow{PID: UnknownPID}
}

// Orientation is the device screen rotation.
type Orientation int

const (
	Portrait0 Orientation = iota
	Landscape90
	Portrait180
	Landscape270
)

func (o Orientation) String() string {
	switch o {
	case Portrait0:
		return "Portrait0Deg"
	case Landscape90:
		return "Landscape90Deg"
	case Portrait180:
		return "Portrait180Deg"
	case Landscape270:
		return "Landscape270Deg"
	default:
		return fmt.Sprintf("Orientation(%d)", int(o))
	}
}

// ParseOrientation is the inverse of String.
func ParseOrientation(s string) (Orientation, error) {
	for o := Portrait0; o <= Landscape270; o++ {
		if o.String() == s {
			return o, nil
		}
	}
	return 0, fmt.Errorf("unknown orientation %q", s)
}

// ScreenInfo is the display geometry.
type ScreenInfo struct {
	Width       uint32      `json:"width"`
	Height      uint32      `json:"height"`
	Orientation Orientation `json:"orientation"`
}
