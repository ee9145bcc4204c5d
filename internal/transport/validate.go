package transport

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/sheetsync/internal/content"
	"github.com/roach88/sheetsync/internal/engine"
	"github.com/roach88/sheetsync/internal/ui"
)

// NormalizeName returns name in NFC form, or an error if it cannot be used
// as an entry name. Entry names become file names on the device.
func NormalizeName(name string) (string, error) {
	name = norm.NFC.String(name)
	switch {
	case name == "":
		return "", engine.ProtocolError("name must not be empty")
	case strings.ContainsAny(name, "/\\\x00"):
		return "", engine.ProtocolError("name %q contains a path separator", name)
	case strings.HasPrefix(name, "."):
		return "", engine.ProtocolError("name %q must not start with a dot", name)
	}
	return name, nil
}

// ValidateWmClass rejects an empty wm_class.
func ValidateWmClass(wmClass string) error {
	if wmClass == "" {
		return engine.ProtocolError("wm_class must not be empty")
	}
	return nil
}

// ValidateTags rejects an empty list and empty tags.
func ValidateTags(tags []string) error {
	if len(tags) == 0 {
		return engine.ProtocolError("tags must not be empty")
	}
	for i, t := range tags {
		if t == "" {
			return engine.ProtocolError("tag %d is empty", i)
		}
	}
	return nil
}

// Selector builds a TagSelector from a remove request. Exactly one of
// tags or all must be given.
func Selector(tags []string, all bool) (content.TagSelector, error) {
	if all {
		if len(tags) > 0 {
			return content.TagSelector{}, engine.ProtocolError("tags and all are mutually exclusive")
		}
		return content.AllTags(), nil
	}
	if err := ValidateTags(tags); err != nil {
		return content.TagSelector{}, err
	}
	return content.Only(tags...), nil
}

// DecodeBitmap validates a wire bitmap and converts it.
func DecodeBitmap(b Bitmap) (content.RawBitmap, error) {
	format, err := content.ParseImageFormat(b.Format)
	if err != nil {
		return content.RawBitmap{}, engine.ProtocolError("%v", err)
	}
	order, err := content.ParseByteOrder(b.Order)
	if err != nil {
		return content.RawBitmap{}, engine.ProtocolError("%v", err)
	}
	out := content.RawBitmap{Format: format, Order: order, Width: b.Width, Height: b.Height, Pixels: b.Pixels}
	if out.Width == 0 || out.Height == 0 {
		return content.RawBitmap{}, engine.ProtocolError("bitmap geometry %dx%d is empty", b.Width, b.Height)
	}
	if want := out.ExpectedLen(); uint64(len(out.Pixels)) != want {
		return content.RawBitmap{}, engine.ProtocolError("bitmap %dx%d needs %d pixel bytes, got %d",
			b.Width, b.Height, want, len(out.Pixels))
	}
	return out, nil
}

// DecodeEvents validates an input request. now stamps Press events.
func DecodeEvents(req InputRequest, now time.Time) ([]ui.DeviceEvent, error) {
	if req.Press != "" {
		if len(req.Events) > 0 {
			return nil, engine.ProtocolError("press and events are mutually exclusive")
		}
		if req.HoldMS < 0 {
			return nil, engine.ProtocolError("hold_ms must not be negative")
		}
		k, err := ui.ParseKey(req.Press)
		if err != nil {
			return nil, engine.ProtocolError("%v", err)
		}
		return []ui.DeviceEvent{
			{Type: ui.EventKeyDown, Key: k, At: now},
			{Type: ui.EventKeyUp, Key: k, At: now.Add(time.Duration(req.HoldMS) * time.Millisecond)},
		}, nil
	}

	if len(req.Events) == 0 {
		return nil, engine.ProtocolError("no events")
	}
	out := make([]ui.DeviceEvent, 0, len(req.Events))
	for _, ev := range req.Events {
		typ, err := ui.ParseEventType(ev.Type)
		if err != nil {
			return nil, engine.ProtocolError("%v", err)
		}
		de := ui.DeviceEvent{Type: typ, At: ev.At}
		if typ == ui.EventKeyDown || typ == ui.EventKeyUp {
			if de.Key, err = ui.ParseKey(ev.Key); err != nil {
				return nil, engine.ProtocolError("%v", err)
			}
		}
		out = append(out, de)
	}
	return out, nil
}

// EncodeEvents is the inverse of DecodeEvents for an events request.
func EncodeEvents(events []ui.DeviceEvent) InputRequest {
	req := InputRequest{Events: make([]Event, 0, len(events))}
	for _, ev := range events {
		we := Event{Type: ev.Type.String(), At: ev.At}
		if ev.Type == ui.EventKeyDown || ev.Type == ui.EventKeyUp {
			we.Key = ev.Key.String()
		}
		req.Events = append(req.Events, we)
	}
	return req
}
