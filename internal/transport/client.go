package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/roach88/sheetsync/internal/content"
	"github.com/roach88/sheetsync/internal/engine"
	"github.com/roach88/sheetsync/internal/ui"
)

const (
	defaultDeviceAddr = "127.0.0.1:51151"
	defaultUserAgent  = "sheetsync/0.1"
	requestTimeout    = 30 * time.Second
)

// APIError is a non-2xx response from the device.
type APIError struct {
	Status  int
	Code    string
	Message string
	Path    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api %s returned status %d", e.Path, e.Status)
	}
	return fmt.Sprintf("api %s returned status %d: %s", e.Path, e.Status, e.Message)
}

// Unwrap exposes the device-side classification so engine.Classify works
// on the host.
func (e *APIError) Unwrap() error {
	code := engine.CodeInternal
	switch e.Code {
	case CodeNotFound:
		code = engine.CodeNotFound
	case CodeInvalidArgument:
		code = engine.CodeInternalProtocol
	}
	return &engine.Error{Code: code, Message: e.Message}
}

// Client talks to a device over HTTP.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
}

// NewClient builds a Client for a host:port or URL.
func NewClient(addr string) (*Client, error) {
	base, err := parseBaseURL(addr)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL:   base,
		http:      &http.Client{Timeout: requestTimeout},
		userAgent: defaultUserAgent,
	}, nil
}

// FocusedWindow reports the host's focused window.
func (c *Client) FocusedWindow(ctx context.Context, info ui.FocusedWindow) error {
	return c.post(ctx, PathFocusedWindow, FocusedWindowFrom(info), nil)
}

// ScreenInfo queries the display geometry.
func (c *Client) ScreenInfo(ctx context.Context) (ui.ScreenInfo, error) {
	var resp ScreenInfoResponse
	if err := c.post(ctx, PathScreenInfo, struct{}{}, &resp); err != nil {
		return ui.ScreenInfo{}, err
	}
	si, err := resp.info()
	if err != nil {
		return ui.ScreenInfo{}, fmt.Errorf("decode response: %w", err)
	}
	return si, nil
}

// ContentInfo queries every entry's tags and every wm_class bucket.
func (c *Client) ContentInfo(ctx context.Context) (content.ContentInfo, error) {
	var info content.ContentInfo
	if err := c.post(ctx, PathContentInfo, struct{}{}, &info); err != nil {
		return content.ContentInfo{}, err
	}
	return info, nil
}

// UploadEntry creates or replaces an entry.
func (c *Client) UploadEntry(ctx context.Context, name string, img content.RawBitmap, tags []string) error {
	return c.post(ctx, PathUploadEntry, UploadEntryRequest{Name: name, Image: BitmapFrom(img), Tags: tags}, nil)
}

// RemoveEntry deletes an entry.
func (c *Client) RemoveEntry(ctx context.Context, name string) error {
	return c.post(ctx, PathRemoveEntry, NameRequest{Name: name}, nil)
}

// UploadTransient shows an image in the transient slot. An empty name lets
// the device pick one.
func (c *Client) UploadTransient(ctx context.Context, name string, img content.RawBitmap) error {
	return c.post(ctx, PathUploadTransient, UploadTransientRequest{Name: name, Image: BitmapFrom(img)}, nil)
}

// ClearTransient empties the transient slot.
func (c *Client) ClearTransient(ctx context.Context) error {
	return c.post(ctx, PathClearTransient, struct{}{}, nil)
}

// AddEntryTags adds tags to an entry.
func (c *Client) AddEntryTags(ctx context.Context, name string, tags []string) error {
	return c.post(ctx, PathAddEntryTags, EntryTagsRequest{Name: name, Tags: tags}, nil)
}

// RemoveEntryTags removes the selected tags from an entry.
func (c *Client) RemoveEntryTags(ctx context.Context, name string, sel content.TagSelector) error {
	return c.post(ctx, PathRemoveEntryTags, EntryTagsRequest{Name: name, Tags: sel.Tags, All: sel.All}, nil)
}

// AddWmClassTags adds tags to a wm_class bucket.
func (c *Client) AddWmClassTags(ctx context.Context, wmClass string, tags []string) error {
	return c.post(ctx, PathAddWmClassTags, WmClassTagsRequest{WmClass: wmClass, Tags: tags}, nil)
}

// RemoveWmClassTags removes the selected tags from a wm_class bucket.
func (c *Client) RemoveWmClassTags(ctx context.Context, wmClass string, sel content.TagSelector) error {
	return c.post(ctx, PathRemoveWmClassTags, WmClassTagsRequest{WmClass: wmClass, Tags: sel.Tags, All: sel.All}, nil)
}

// Input injects device events.
func (c *Client) Input(ctx context.Context, events ...ui.DeviceEvent) error {
	return c.post(ctx, PathInput, EncodeEvents(events), nil)
}

// Press simulates pressing key for hold on the device's own clock.
func (c *Client) Press(ctx context.Context, key ui.Key, hold time.Duration) error {
	return c.post(ctx, PathInput, InputRequest{Press: key.String(), HoldMS: hold.Milliseconds()}, nil)
}

func (c *Client) post(ctx context.Context, path string, body, dest any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	reqURL := c.baseURL.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL.String(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode, Path: path}
		var eb ErrorBody
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(raw, &eb) == nil {
			apiErr.Code, apiErr.Message = eb.Code, eb.Message
		}
		return apiErr
	}
	if dest == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseBaseURL(addr string) (*url.URL, error) {
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		trimmed = defaultDeviceAddr
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse device address %q: %w", addr, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
