// Package library mirrors a host directory of images onto a device.
//
// Each image file is an entry named after its stem. Tags come from a
// sibling "<stem>.tags" file, one tag per line; blank lines and lines
// starting with '#' are ignored.
package library

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/roach88/sheetsync/internal/content"
	"github.com/roach88/sheetsync/internal/engine"
	"github.com/roach88/sheetsync/internal/imaging"
	"github.com/roach88/sheetsync/internal/ui"
)

// TagsExt is the extension of tag sidecar files.
const TagsExt = ".tags"

// DefaultDebounce collapses bursts of events on one entry.
const DefaultDebounce = 300 * time.Millisecond

var imageExts = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// Device is the subset of the remote API the watcher drives.
type Device interface {
	ScreenInfo(ctx context.Context) (ui.ScreenInfo, error)
	UploadEntry(ctx context.Context, name string, img content.RawBitmap, tags []string) error
	RemoveEntry(ctx context.Context, name string) error
}

// Stats counts watcher activity.
type Stats struct {
	Uploaded int64
	Removed  int64
	Failed   int64
}

// Watcher keeps a device's entries in step with a directory.
type Watcher struct {
	dir    string
	device Device

	// Debounce is how long an entry must be quiet before it is synced.
	Debounce time.Duration
	// Invert inverts uploaded images.
	Invert bool

	screen  ui.ScreenInfo
	pending map[string]time.Time

	uploaded, removed, failed atomic.Int64
}

// New creates a watcher for dir.
func New(dir string, device Device) *Watcher {
	return &Watcher{
		dir:      dir,
		device:   device,
		Debounce: DefaultDebounce,
		pending:  make(map[string]time.Time),
	}
}

// Stats returns activity counters.
func (w *Watcher) Stats() Stats {
	return Stats{Uploaded: w.uploaded.Load(), Removed: w.removed.Load(), Failed: w.failed.Load()}
}

// IsImage reports whether name has a supported image extension.
func IsImage(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range imageExts {
		if ext == e {
			return true
		}
	}
	return false
}

// EntryName is the entry a file belongs to: its stem. Reports false for
// files that are neither images nor tag files.
func EntryName(path string) (string, bool) {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return "", false
	}
	if !IsImage(base) && filepath.Ext(base) != TagsExt {
		return "", false
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return stem, stem != ""
}

// ReadTags reads a tag sidecar. A missing file is no tags.
func ReadTags(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var tags []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tags = append(tags, line)
	}
	return tags, sc.Err()
}

// findImage returns the image file for stem, if any.
func (w *Watcher) findImage(stem string) (string, bool) {
	for _, ext := range imageExts {
		for _, e := range []string{ext, strings.ToUpper(ext)} {
			p := filepath.Join(w.dir, stem+e)
			if st, err := os.Stat(p); err == nil && st.Mode().IsRegular() {
				return p, true
			}
		}
	}
	return "", false
}

// Sync uploads every image currently in the directory.
func (w *Watcher) Sync(ctx context.Context) error {
	screen, err := w.device.ScreenInfo(ctx)
	if err != nil {
		return fmt.Errorf("query screen info: %w", err)
	}
	w.screen = screen

	ents, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("read library: %w", err)
	}
	stems := make(map[string]bool)
	for _, ent := range ents {
		if ent.IsDir() || !IsImage(ent.Name()) {
			continue
		}
		if stem, ok := EntryName(ent.Name()); ok {
			stems[stem] = true
		}
	}
	names := make([]string, 0, len(stems))
	for s := range stems {
		names = append(names, s)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		w.sync(ctx, name)
	}
	slog.Info("library synced", "dir", w.dir, "entries", len(names))
	return nil
}

// sync uploads or removes one entry depending on whether its image exists.
func (w *Watcher) sync(ctx context.Context, name string) {
	path, ok := w.findImage(name)
	if !ok {
		err := w.device.RemoveEntry(ctx, name)
		switch {
		case err == nil:
			w.removed.Add(1)
			slog.Info("entry removed", "name", name)
		case engine.IsNotFound(err):
		default:
			w.failed.Add(1)
			slog.Error("remove entry", "name", name, "error", err)
		}
		return
	}

	if err := w.upload(ctx, name, path); err != nil {
		w.failed.Add(1)
		slog.Error("upload entry", "name", name, "path", path, "error", err)
		return
	}
	w.uploaded.Add(1)
	slog.Info("entry uploaded", "name", name, "path", path)
}

func (w *Watcher) upload(ctx context.Context, name, path string) error {
	tags, err := ReadTags(filepath.Join(w.dir, name+TagsExt))
	if err != nil {
		return fmt.Errorf("read tags: %w", err)
	}
	img, err := imaging.Load(path, imaging.Options{
		Width:  w.screen.Width,
		Height: w.screen.Height,
		Rotate: imaging.Rotate0,
		Invert: w.Invert,
	})
	if err != nil {
		return err
	}
	return w.device.UploadEntry(ctx, name, img, tags)
}

// Run syncs the directory, then follows changes until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	if err := w.Sync(ctx); err != nil {
		return err
	}

	tick := w.Debounce / 3
	if tick <= 0 {
		tick = time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("library watch error", "error", err)
		case now := <-ticker.C:
			w.flush(ctx, now)
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) &&
		!ev.Op.Has(fsnotify.Remove) && !ev.Op.Has(fsnotify.Rename) {
		return
	}
	name, ok := EntryName(ev.Name)
	if !ok {
		return
	}
	slog.Debug("library event", "op", ev.Op.String(), "path", ev.Name)
	w.pending[name] = time.Now()
}

func (w *Watcher) flush(ctx context.Context, now time.Time) {
	var due []string
	for name, at := range w.pending {
		if now.Sub(at) >= w.Debounce {
			due = append(due, name)
		}
	}
	sort.Strings(due)
	for _, name := range due {
		delete(w.pending, name)
		w.sync(ctx, name)
	}
}
