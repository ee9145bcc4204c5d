package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sheetsync/internal/content"
	"github.com/roach88/sheetsync/internal/display"
	"github.com/roach88/sheetsync/internal/engine"
	"github.com/roach88/sheetsync/internal/ui"
)

func gray(w, h uint32) content.RawBitmap {
	return content.RawBitmap{Format: content.FormatGray8, Width: w, Height: h, Pixels: make([]byte, w*h)}
}

// startDevice runs a real engine behind an httptest server.
func startDevice(t *testing.T) (*Client, *engine.Engine) {
	t.Helper()
	e := engine.New(content.NewStore(), engine.WithSurface(display.NewRecorder(ui.ScreenInfo{Width: 1072, Height: 1448})))
	errc := make(chan error, 1)
	go func() { errc <- e.Run(context.Background()) }()

	srv := httptest.NewServer(NewServer(engine.NewHandler(e)).Handler())
	t.Cleanup(func() {
		srv.Close()
		e.Stop()
		require.NoError(t, <-errc)
	})

	c, err := NewClient(srv.URL)
	require.NoError(t, err)
	return c, e
}

func TestClient_EndToEnd(t *testing.T) {
	c, _ := startDevice(t)
	ctx := context.Background()

	require.NoError(t, c.UploadEntry(ctx, "vim", gray(2, 2), []string{"editor"}))
	require.NoError(t, c.AddWmClassTags(ctx, "Alacritty", []string{"editor", "shell"}))
	require.NoError(t, c.FocusedWindow(ctx, ui.FocusedWindow{WmClass: "Alacritty", PID: ui.UnknownPID}))
	require.NoError(t, c.AddEntryTags(ctx, "vim", []string{"modal"}))
	require.NoError(t, c.RemoveWmClassTags(ctx, "Alacritty", content.Only("shell")))

	info, err := c.ContentInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, content.ContentInfo{
		Entries:   []content.EntryTags{{Name: "vim", Tags: []string{"editor", "modal"}}},
		WmClasses: []content.WmClassTags{{WmClass: "Alacritty", Tags: []string{"editor"}}},
	}, info)

	si, err := c.ScreenInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, ui.ScreenInfo{Width: 1072, Height: 1448, Orientation: ui.Portrait0}, si)

	require.NoError(t, c.RemoveEntryTags(ctx, "vim", content.AllTags()))
	require.NoError(t, c.UploadTransient(ctx, "", gray(1, 1)))
	require.NoError(t, c.ClearTransient(ctx))
	require.NoError(t, c.Press(ctx, ui.KeyNext, 10*time.Millisecond))
	require.NoError(t, c.RemoveEntry(ctx, "vim"))

	info, err = c.ContentInfo(ctx)
	require.NoError(t, err)
	assert.Empty(t, info.Entries)
}

func TestClient_NotFoundClassifies(t *testing.T) {
	c, _ := startDevice(t)

	err := c.AddEntryTags(context.Background(), "ghost", []string{"x"})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, CodeNotFound, apiErr.Code)
	assert.True(t, engine.IsNotFound(err))
}

func TestClient_LongPressChangesMode(t *testing.T) {
	c, e := startDevice(t)

	require.NoError(t, c.Press(context.Background(), ui.KeyNext, 1500*time.Millisecond))
	_, err := c.ContentInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ui.ModeScreenshot, e.State().Mode)
}

// fakeService records calls and returns a fixed error.
type fakeService struct {
	err    error
	calls  []string
	name   string
	events []ui.DeviceEvent
	sel    content.TagSelector
	info   ui.FocusedWindow
}

func (f *fakeService) call(name string) error {
	f.calls = append(f.calls, name)
	return f.err
}

func (f *fakeService) FocusedWindow(_ context.Context, info ui.FocusedWindow) error {
	f.info = info
	return f.call("FocusedWindow")
}

func (f *fakeService) ScreenInfo(context.Context) (ui.ScreenInfo, error) {
	return ui.ScreenInfo{Width: 10, Height: 20, Orientation: ui.Landscape90}, f.call("ScreenInfo")
}

func (f *fakeService) ContentInfo(context.Context) (content.ContentInfo, error) {
	return content.ContentInfo{}, f.call("ContentInfo")
}

func (f *fakeService) UploadEntry(_ context.Context, name string, _ content.RawBitmap, _ []string) error {
	f.name = name
	return f.call("UploadEntry")
}

func (f *fakeService) RemoveEntry(_ context.Context, name string) error {
	f.name = name
	return f.call("RemoveEntry")
}

func (f *fakeService) UploadTransient(_ context.Context, name string, _ content.RawBitmap) error {
	f.name = name
	return f.call("UploadTransient")
}

func (f *fakeService) ClearTransient(context.Context) error { return f.call("ClearTransient") }

func (f *fakeService) AddEntryTags(_ context.Context, name string, _ []string) error {
	f.name = name
	return f.call("AddEntryTags")
}

func (f *fakeService) RemoveEntryTags(_ context.Context, name string, sel content.TagSelector) error {
	f.name, f.sel = name, sel
	return f.call("RemoveEntryTags")
}

func (f *fakeService) AddWmClassTags(_ context.Context, wm string, _ []string) error {
	f.name = wm
	return f.call("AddWmClassTags")
}

func (f *fakeService) RemoveWmClassTags(_ context.Context, wm string, sel content.TagSelector) error {
	f.name, f.sel = wm, sel
	return f.call("RemoveWmClassTags")
}

func (f *fakeService) Input(_ context.Context, events ...ui.DeviceEvent) error {
	f.events = events
	return f.call("Input")
}

func post(t *testing.T, h http.Handler, path, body string) (*httptest.ResponseRecorder, ErrorBody) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var eb ErrorBody
	if rec.Code >= 400 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &eb))
	}
	return rec, eb
}

func TestServer_RejectsInvalidPayloads(t *testing.T) {
	pixels := `"AAAA"` // 3 bytes
	tests := []struct {
		name string
		path string
		body string
	}{
		{"malformed json", PathRemoveEntry, `{`},
		{"unknown field", PathRemoveEntry, `{"name":"a","extra":1}`},
		{"empty name", PathRemoveEntry, `{"name":""}`},
		{"path separator", PathRemoveEntry, `{"name":"a/b"}`},
		{"leading dot", PathRemoveEntry, `{"name":".hidden"}`},
		{"empty tags", PathAddEntryTags, `{"name":"a","tags":[]}`},
		{"empty tag", PathAddEntryTags, `{"name":"a","tags":["x",""]}`},
		{"selector missing", PathRemoveEntryTags, `{"name":"a"}`},
		{"selector both", PathRemoveEntryTags, `{"name":"a","tags":["x"],"all":true}`},
		{"empty wm_class", PathAddWmClassTags, `{"wm_class":"","tags":["x"]}`},
		{"unknown format", PathUploadEntry, `{"name":"a","image":{"format":"RGB","order":"LE","width":1,"height":3,"pixels":` + pixels + `}}`},
		{"unknown order", PathUploadEntry, `{"name":"a","image":{"format":"Gray8","order":"XX","width":1,"height":3,"pixels":` + pixels + `}}`},
		{"length mismatch", PathUploadEntry, `{"name":"a","image":{"format":"Gray8","order":"LE","width":2,"height":2,"pixels":` + pixels + `}}`},
		{"zero geometry", PathUploadTransient, `{"image":{"format":"Gray8","order":"LE","width":0,"height":0,"pixels":""}}`},
		{"no events", PathInput, `{}`},
		{"unknown key", PathInput, `{"press":"home"}`},
		{"unknown event", PathInput, `{"events":[{"type":"swipe"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{}
			rec, eb := post(t, NewServer(svc).Handler(), tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, CodeInvalidArgument, eb.Code)
			assert.Empty(t, svc.calls, "rejected payloads never reach the service")
		})
	}
}

func TestServer_StatusMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("wrap: %w", content.ErrNotFound), http.StatusNotFound, CodeNotFound},
		{engine.ErrChannelClosed, http.StatusInternalServerError, CodeInternal},
		{errors.New("boom"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tt := range tests {
		svc := &fakeService{err: tt.err}
		rec, eb := post(t, NewServer(svc).Handler(), PathRemoveEntry, `{"name":"a"}`)
		assert.Equal(t, tt.status, rec.Code)
		assert.Equal(t, tt.code, eb.Code)
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, PathContentInfo, nil)
	rec := httptest.NewRecorder()
	NewServer(&fakeService{}).Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_NormalizesNames(t *testing.T) {
	svc := &fakeService{}
	// "e" + combining acute accent becomes the precomposed form.
	rec, _ := post(t, NewServer(svc).Handler(), PathRemoveEntry, `{"name":"cafe\u0301"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "caf\u00e9", svc.name)
}

func TestServer_TransientDefaultName(t *testing.T) {
	svc := &fakeService{}
	s := NewServer(svc)
	s.NewName = func() string { return "generated" }

	rec, _ := post(t, s.Handler(), PathUploadTransient,
		`{"image":{"format":"Gray8","order":"LE","width":1,"height":1,"pixels":"AA=="}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "generated", svc.name)
}

func TestServer_RemoveAllSelector(t *testing.T) {
	svc := &fakeService{}
	rec, _ := post(t, NewServer(svc).Handler(), PathRemoveWmClassTags, `{"wm_class":"W","all":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, svc.sel.All)
	assert.Equal(t, "W", svc.name)
}

func TestServer_PressExpands(t *testing.T) {
	svc := &fakeService{}
	s := NewServer(svc)
	t0 := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	s.Now = func() time.Time { return t0 }

	rec, _ := post(t, s.Handler(), PathInput, `{"press":"next","hold_ms":1200}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.events, 2)
	assert.Equal(t, ui.DeviceEvent{Type: ui.EventKeyDown, Key: ui.KeyNext, At: t0}, svc.events[0])
	assert.Equal(t, t0.Add(1200*time.Millisecond), svc.events[1].At)
}

func TestServer_FocusedWindowMissingPID(t *testing.T) {
	svc := &fakeService{}
	rec, _ := post(t, NewServer(svc).Handler(), PathFocusedWindow, `{"wm_class":"W","focus":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ui.UnknownPID, svc.info.PID)
	assert.True(t, svc.info.Focus)
}

func TestServer_ScreenInfoResponse(t *testing.T) {
	rec, _ := post(t, NewServer(&fakeService{}).Handler(), PathScreenInfo, `{}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"width":10,"height":20,"orientation":"Landscape90Deg"}`, rec.Body.String())
}

func TestServer_ServeStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- NewServer(&fakeService{}).Serve(ctx, ln) }()

	c, err := NewClient(ln.Addr().String())
	require.NoError(t, err)
	require.NoError(t, c.ClearTransient(context.Background()))

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestValidate_Selector(t *testing.T) {
	sel, err := Selector([]string{"a"}, false)
	require.NoError(t, err)
	assert.Equal(t, content.Only("a"), sel)

	sel, err = Selector(nil, true)
	require.NoError(t, err)
	assert.True(t, sel.All)

	_, err = Selector(nil, false)
	assert.Equal(t, engine.CodeInternalProtocol, engine.Classify(err))
}

func TestValidate_EventsRoundTrip(t *testing.T) {
	t0 := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	events := []ui.DeviceEvent{
		{Type: ui.EventInit},
		{Type: ui.EventKeyDown, Key: ui.KeyMenu, At: t0},
		{Type: ui.EventKeyUp, Key: ui.KeyMenu, At: t0},
		{Type: ui.EventExit},
	}
	got, err := DecodeEvents(EncodeEvents(events), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, events, got)
}

func TestParseBaseURL(t *testing.T) {
	u, err := parseBaseURL("")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:51151", u.String())

	u, err = parseBaseURL("https://device.local:9000/ignored?q=1")
	require.NoError(t, err)
	assert.Equal(t, "https://device.local:9000", u.String())
}
