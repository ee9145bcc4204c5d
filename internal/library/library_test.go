package library

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/roach88/sheetsync/internal/content"
	"github.com/roach88/sheetsync/internal/ui"
)

type fakeDevice struct {
	mu      sync.Mutex
	entries map[string][]string
	ops     []string
	fail    error
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{entries: make(map[string][]string)}
}

func (d *fakeDevice) ScreenInfo(context.Context) (ui.ScreenInfo, error) {
	return ui.ScreenInfo{Width: 4, Height: 6}, nil
}

func (d *fakeDevice) UploadEntry(_ context.Context, name string, img content.RawBitmap, tags []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail != nil {
		return d.fail
	}
	if img.Width != 4 || img.Height != 6 {
		return errors.New("image not fitted to screen")
	}
	d.entries[name] = tags
	d.ops = append(d.ops, "upload "+name)
	return nil
}

func (d *fakeDevice) RemoveEntry(_ context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.entries[name]; !ok {
		return content.ErrNotFound
	}
	delete(d.entries, name)
	d.ops = append(d.ops, "remove "+name)
	return nil
}

func (d *fakeDevice) names() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.entries))
	for n := range d.entries {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (d *fakeDevice) tags(name string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.entries[name]
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8))))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestEntryName(t *testing.T) {
	tests := map[string]struct {
		name string
		ok   bool
	}{
		"/lib/vim.png":     {"vim", true},
		"/lib/vim.tags":    {"vim", true},
		"/lib/Git.JPEG":    {"Git", true},
		"/lib/notes.txt":   {"", false},
		"/lib/.hidden.png": {"", false},
		"/lib/.png":        {"", false},
	}
	for in, want := range tests {
		name, ok := EntryName(in)
		assert.Equal(t, want.ok, ok, in)
		assert.Equal(t, want.name, name, in)
	}
}

func TestReadTags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vim.tags")
	require.NoError(t, os.WriteFile(path, []byte("editor\n\n# comment\n  modal  \n"), 0o644))

	tags, err := ReadTags(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"editor", "modal"}, tags)

	tags, err = ReadTags(filepath.Join(dir, "missing.tags"))
	require.NoError(t, err)
	assert.Nil(t, tags)
}

func TestSync_UploadsExistingImages(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "vim.png"))
	writePNG(t, filepath.Join(dir, "git.png"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vim.tags"), []byte("editor\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("x"), 0o644))

	dev := newFakeDevice()
	w := New(dir, dev)
	require.NoError(t, w.Sync(context.Background()))

	assert.Equal(t, []string{"git", "vim"}, dev.names())
	assert.Equal(t, []string{"editor"}, dev.tags("vim"))
	assert.Equal(t, Stats{Uploaded: 2}, w.Stats())
}

func TestSync_CountsFailures(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "vim.png"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.png"), []byte("not a png"), 0o644))

	dev := newFakeDevice()
	w := New(dir, dev)
	require.NoError(t, w.Sync(context.Background()))

	assert.Equal(t, []string{"vim"}, dev.names())
	assert.Equal(t, Stats{Uploaded: 1, Failed: 1}, w.Stats())
}

func TestRun_FollowsChanges(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "vim.png"))

	dev := newFakeDevice()
	w := New(dir, dev)
	w.Debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return len(dev.names()) == 1 }, 5*time.Second, 5*time.Millisecond)

	writePNG(t, filepath.Join(dir, "git.png"))
	require.Eventually(t, func() bool { return len(dev.names()) == 2 }, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "git.tags"), []byte("vcs\n"), 0o644))
	require.Eventually(t, func() bool { return len(dev.tags("git")) == 1 }, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, os.Remove(filepath.Join(dir, "vim.png")))
	require.Eventually(t, func() bool {
		names := dev.names()
		return len(names) == 1 && names[0] == "git"
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestRun_MissingDirectory(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "absent"), newFakeDevice())
	assert.Error(t, w.Run(context.Background()))
}
