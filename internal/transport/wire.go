package transport

import (
	"time"

	"github.com/roach88/sheetsync/internal/content"
	"github.com/roach88/sheetsync/internal/ui"
)

// Bitmap is the wire form of content.RawBitmap. Pixels travel as base64.
type Bitmap struct {
	Format string `json:"format"`
	Order  string `json:"order"`
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
	Pixels []byte `json:"pixels"`
}

// BitmapFrom converts a bitmap to its wire form.
func BitmapFrom(b content.RawBitmap) Bitmap {
	return Bitmap{
		Format: b.Format.String(),
		Order:  b.Order.String(),
		Width:  b.Width,
		Height: b.Height,
		Pixels: b.Pixels,
	}
}

// FocusedWindowRequest is the body of PathFocusedWindow. A missing pid
// means the process is unknown.
type FocusedWindowRequest struct {
	Title           string  `json:"title"`
	WmClass         string  `json:"wm_class"`
	WmClassInstance string  `json:"wm_class_instance"`
	PID             *uint64 `json:"pid,omitempty"`
	Focus           bool    `json:"focus"`
}

// FocusedWindowFrom converts a window to its wire form.
func FocusedWindowFrom(w ui.FocusedWindow) FocusedWindowRequest {
	req := FocusedWindowRequest{Title: w.Title, WmClass: w.WmClass, WmClassInstance: w.WmClassInstance, Focus: w.Focus}
	if w.PID != ui.UnknownPID {
		pid := w.PID
		req.PID = &pid
	}
	return req
}

func (r FocusedWindowRequest) info() ui.FocusedWindow {
	w := ui.FocusedWindow{Title: r.Title, WmClass: r.WmClass, WmClassInstance: r.WmClassInstance, PID: ui.UnknownPID, Focus: r.Focus}
	if r.PID != nil {
		w.PID = *r.PID
	}
	return w
}

// UploadEntryRequest is the body of PathUploadEntry.
type UploadEntryRequest struct {
	Name  string   `json:"name"`
	Image Bitmap   `json:"image"`
	Tags  []string `json:"tags"`
}

// NameRequest is the body of PathRemoveEntry.
type NameRequest struct {
	Name string `json:"name"`
}

// UploadTransientRequest is the body of PathUploadTransient. An empty name
// is replaced by a generated one.
type UploadTransientRequest struct {
	Name  string `json:"name,omitempty"`
	Image Bitmap `json:"image"`
}

// EntryTagsRequest is the body of the entry tag routes. Remove accepts
// All instead of Tags.
type EntryTagsRequest struct {
	Name string   `json:"name"`
	Tags []string `json:"tags,omitempty"`
	All  bool     `json:"all,omitempty"`
}

// WmClassTagsRequest is the body of the wm_class tag routes.
type WmClassTagsRequest struct {
	WmClass string   `json:"wm_class"`
	Tags    []string `json:"tags,omitempty"`
	All     bool     `json:"all,omitempty"`
}

// Event is the wire form of ui.DeviceEvent.
type Event struct {
	Type string    `json:"type"`
	Key  string    `json:"key,omitempty"`
	At   time.Time `json:"at,omitzero"`
}

// InputRequest is the body of PathInput. Either Events, or Press with an
// optional HoldMS that expands to a key-down/key-up pair.
type InputRequest struct {
	Events []Event `json:"events,omitempty"`
	Press  string  `json:"press,omitempty"`
	HoldMS int64   `json:"hold_ms,omitempty"`
}

// ScreenInfoResponse is returned by PathScreenInfo.
type ScreenInfoResponse struct {
	Width       uint32 `json:"width"`
	Height      uint32 `json:"height"`
	Orientation string `json:"orientation"`
}

func screenInfoResponse(si ui.ScreenInfo) ScreenInfoResponse {
	return ScreenInfoResponse{Width: si.Width, Height: si.Height, Orientation: si.Orientation.String()}
}

func (r ScreenInfoResponse) info() (ui.ScreenInfo, error) {
	o, err := ui.ParseOrientation(r.Orientation)
	if err != nil {
		return ui.ScreenInfo{}, err
	}
	return ui.ScreenInfo{Width: r.Width, Height: r.Height, Orientation: o}, nil
}

// Ack is returned by every mutation route.
type Ack struct {
	OK bool `json:"ok"`
}

// Error codes on the wire.
const (
	CodeInvalidArgument = "invalid_argument"
	CodeNotFound        = "not_found"
	CodeInternal        = "internal"
)

// ErrorBody is the JSON body of every non-2xx response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
