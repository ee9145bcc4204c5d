package persist

import (
	"fmt"
	"path/filepath"

	"github.com/roach88/sheetsync/internal/content"
)

// Job is one filesystem operation: write Data to Path, or delete Path when
// Remove is set.
type Job struct {
	Path   string
	Data   []byte
	Remove bool
}

// EncodeSave produces a full save round for snap: each entry's blob then
// its metadata, in entry order, then the wm_class mapping.
func EncodeSave(snap content.Snapshot, dir string) ([]Job, error) {
	jobs := make([]Job, 0, 2*len(snap.Entries)+1)
	for _, e := range snap.Entries {
		blob, err := EncodeBitmap(e.Image)
		if err != nil {
			return nil, fmt.Errorf("encode entry %q: %w", e.Name, err)
		}
		meta, err := EncodeMetadata(e.Tags)
		if err != nil {
			return nil, fmt.Errorf("encode metadata %q: %w", e.Name, err)
		}
		jobs = append(jobs,
			Job{Path: BlobPath(dir, e.Name), Data: blob},
			Job{Path: MetadataPath(dir, e.Name), Data: meta},
		)
	}

	mapping, err := EncodeWmClassTags(snap.WmClassTags)
	if err != nil {
		return nil, fmt.Errorf("encode wm_class tags: %w", err)
	}
	jobs = append(jobs, Job{Path: filepath.Join(dir, WmClassFile), Data: mapping})
	return jobs, nil
}

// RemovalJobs deletes the file pair of entry name.
func RemovalJobs(name, dir string) []Job {
	return []Job{
		{Path: BlobPath(dir, name), Remove: true},
		{Path: MetadataPath(dir, name), Remove: true},
	}
}
