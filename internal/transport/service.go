// Package transport exposes the dispatch loop over HTTP/JSON and provides
// the matching client used by host-side commands.
//
// Every route is a POST under /v1 with a JSON body. Payloads are validated
// here, before anything reaches the loop; a rejected payload never becomes
// a message.
package transport

import (
	"context"

	"github.com/roach88/sheetsync/internal/content"
	"github.com/roach88/sheetsync/internal/engine"
	"github.com/roach88/sheetsync/internal/ui"
)

// Service is the capability set a transport binding needs. Implemented by
// *engine.Handler on the device and *Client on the host.
type Service interface {
	FocusedWindow(ctx context.Context, info ui.FocusedWindow) error
	ScreenInfo(ctx context.Context) (ui.ScreenInfo, error)
	ContentInfo(ctx context.Context) (content.ContentInfo, error)
	UploadEntry(ctx context.Context, name string, img content.RawBitmap, tags []string) error
	RemoveEntry(ctx context.Context, name string) error
	UploadTransient(ctx context.Context, name string, img content.RawBitmap) error
	ClearTransient(ctx context.Context) error
	AddEntryTags(ctx context.Context, name string, tags []string) error
	RemoveEntryTags(ctx context.Context, name string, sel content.TagSelector) error
	AddWmClassTags(ctx context.Context, wmClass string, tags []string) error
	RemoveWmClassTags(ctx context.Context, wmClass string, sel content.TagSelector) error
	Input(ctx context.Context, events ...ui.DeviceEvent) error
}

var (
	_ Service = (*engine.Handler)(nil)
	_ Service = (*Client)(nil)
)

// DefaultAddr is the device's default listen address.
const DefaultAddr = ":51151"

// Routes.
const (
	PathFocusedWindow     = "/v1/focused-window"
	PathScreenInfo        = "/v1/screen-info"
	PathContentInfo       = "/v1/content-info"
	PathUploadEntry       = "/v1/entries/upload"
	PathRemoveEntry       = "/v1/entries/remove"
	PathUploadTransient   = "/v1/transient/upload"
	PathClearTransient    = "/v1/transient/clear"
	PathAddEntryTags      = "/v1/entries/tags/add"
	PathRemoveEntryTags   = "/v1/entries/tags/remove"
	PathAddWmClassTags    = "/v1/wm-classes/tags/add"
	PathRemoveWmClassTags = "/v1/wm-classes/tags/remove"
	PathInput             = "/v1/input"
)
