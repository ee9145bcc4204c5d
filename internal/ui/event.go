package ui

import (
	"fmt"
	"time"
)

// EventType is a device event kind.
type EventType int

const (
	EventInit EventType = iota + 1
	EventShow
	EventRepaint
	EventKeyDown
	EventKeyUp
	EventExit
)

var eventNames = map[EventType]string{
	EventInit:    "init",
	EventShow:    "show",
	EventRepaint: "repaint",
	EventKeyDown: "key_down",
	EventKeyUp:   "key_up",
	EventExit:    "exit",
}

func (t EventType) String() string {
	if s, ok := eventNames[t]; ok {
		return s
	}
	return fmt.Sprintf("EventType(%d)", int(t))
}

// ParseEventType is the inverse of EventType.String.
func ParseEventType(s string) (EventType, error) {
	for t, name := range eventNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown event type %q", s)
}

// DeviceEvent is one input or lifecycle event from the device.
type DeviceEvent struct {
	Type EventType
	Key  Key // only for key events
	// At is when the event happened. Zero means "when processed".
	At time.Time
}

func (e DeviceEvent) String() string {
	if e.Type == EventKeyDown || e.Type == EventKeyUp {
		return fmt.Sprintf("%s:%s", e.Type, e.Key)
	}
	return e.Type.String()
}
