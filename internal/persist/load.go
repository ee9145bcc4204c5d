package persist

import (
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/roach88/sheetsync/internal/content"
)

// Load restores a store from dir.
//
// A missing directory, or one holding neither entry files nor the mapping
// file, yields an empty store. Everything else must be consistent: every
// blob needs its metadata file and vice versa, all files must decode, and
// the mapping file must exist whenever entry files do. Any violation is a
// *LoadError; callers are expected to log it and start empty.
func Load(fsys FS, dir string) (*content.Store, error) {
	dirEntries, err := fsys.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug("data directory missing, starting empty", "dir", dir)
			return content.NewStore(), nil
		}
		return nil, &LoadError{Dir: dir, Reason: "read directory", Err: err}
	}

	blobs := make(map[string]bool)
	metas := make(map[string]bool)
	hasMapping := false
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		fileName := de.Name()
		switch {
		case fileName == WmClassFile:
			hasMapping = true
		case strings.HasSuffix(fileName, MetadataSuffix):
			if name := strings.TrimSuffix(fileName, MetadataSuffix); name != "" {
				metas[name] = true
			}
		default:
			if name, ok := EntryName(fileName); ok {
				blobs[name] = true
			}
		}
	}

	if len(blobs) == 0 && len(metas) == 0 && !hasMapping {
		return content.NewStore(), nil
	}
	if !hasMapping {
		return nil, &LoadError{Dir: dir, Path: WmClassFile, Reason: "missing wm_class mapping"}
	}

	for name := range metas {
		if !blobs[name] {
			return nil, &LoadError{Dir: dir, Path: MetadataPath(dir, name), Reason: "metadata without image"}
		}
	}

	snap := content.Snapshot{WmClassTags: map[string]content.TagSet{}}
	for _, de := range dirEntries {
		name, ok := EntryName(de.Name())
		if !ok || de.IsDir() {
			continue
		}
		e, err := loadEntry(fsys, dir, name, metas[name])
		if err != nil {
			return nil, err
		}
		snap.Entries = append(snap.Entries, e)
	}

	mappingPath := filepath.Join(dir, WmClassFile)
	data, err := fsys.ReadFile(mappingPath)
	if err != nil {
		return nil, &LoadError{Dir: dir, Path: mappingPath, Reason: "read", Err: err}
	}
	snap.WmClassTags, err = DecodeWmClassTags(data)
	if err != nil {
		return nil, &LoadError{Dir: dir, Path: mappingPath, Reason: "decode", Err: err}
	}

	store := content.FromSnapshot(snap)
	slog.Info("content loaded",
		"dir", dir,
		"entries", store.Len(),
		"wm_classes", len(snap.WmClassTags),
	)
	return store, nil
}

func loadEntry(fsys FS, dir, name string, hasMeta bool) (content.Entry, error) {
	blobPath := BlobPath(dir, name)
	metaPath := MetadataPath(dir, name)
	if !hasMeta {
		return content.Entry{}, &LoadError{Dir: dir, Path: blobPath, Reason: "image without metadata"}
	}

	raw, err := fsys.ReadFile(blobPath)
	if err != nil {
		return content.Entry{}, &LoadError{Dir: dir, Path: blobPath, Reason: "read", Err: err}
	}
	img, err := DecodeBitmap(raw)
	if err != nil {
		return content.Entry{}, &LoadError{Dir: dir, Path: blobPath, Reason: "decode", Err: err}
	}

	raw, err = fsys.ReadFile(metaPath)
	if err != nil {
		return content.Entry{}, &LoadError{Dir: dir, Path: metaPath, Reason: "read", Err: err}
	}
	tags, err := DecodeMetadata(raw)
	if err != nil {
		return content.Entry{}, &LoadError{Dir: dir, Path: metaPath, Reason: "decode", Err: err}
	}

	return content.Entry{Name: name, Tags: tags, Image: img}, nil
}
