package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/sheetsync/internal/content"
	"github.com/roach88/sheetsync/internal/display"
	"github.com/roach88/sheetsync/internal/engine"
	"github.com/roach88/sheetsync/internal/transport"
	"github.com/roach88/sheetsync/internal/ui"
)

// startDevice runs a real engine behind an httptest server and returns its
// address.
func startDevice(t *testing.T) string {
	t.Helper()
	e := engine.New(content.NewStore(), engine.WithSurface(display.NewRecorder(ui.ScreenInfo{Width: 40, Height: 30})))
	errc := make(chan error, 1)
	go func() { errc <- e.Run(context.Background()) }()

	srv := httptest.NewServer(transport.NewServer(engine.NewHandler(e)).Handler())
	t.Cleanup(func() {
		srv.Close()
		e.Stop()
		require.NoError(t, <-errc)
	})
	return srv.URL
}

// writeConfig writes a config file rooted in a temp dir.
func writeConfig(t *testing.T, extra string) (path, dir string) {
	t.Helper()
	dir = t.TempDir()
	path = filepath.Join(dir, "config.yaml")
	body := "data_dir: " + filepath.Join(dir, "data") + "\n" +
		"journal: " + filepath.Join(dir, "journal.db") + "\n" +
		"display: none\n" +
		"log_level: error\n" + extra
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path, dir
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

// device runs a host command against addr with a private config.
func device(t *testing.T, addr string, args ...string) (string, error) {
	t.Helper()
	cfg, _ := writeConfig(t, "")
	return execute(t, context.Background(), append([]string{"--config", cfg, "--addr", addr}, args...)...)
}

func decodeData(t *testing.T, out string, dst any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, dst))
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(i)
	}
	img.SetGray(0, 0, color.Gray{Y: 255})
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}
