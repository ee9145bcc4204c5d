package persist

import (
	"io/fs"
	"os"
)

// FS is the filesystem surface the pipeline touches. Tests substitute a
// failing or recording implementation.
type FS interface {
	// MkdirAll creates a directory and its parents.
	MkdirAll(path string, perm os.FileMode) error

	// WriteFile creates or truncates path, writes data and flushes it to
	// stable storage. It is not atomic.
	WriteFile(path string, data []byte, perm os.FileMode) error

	// Remove deletes a file. A missing file is not an error.
	Remove(path string) error

	// ReadFile reads a whole file.
	ReadFile(path string) ([]byte, error)

	// ReadDir lists a directory sorted by name.
	ReadDir(path string) ([]fs.DirEntry, error)
}

// OSFS implements FS on the host filesystem.
type OSFS struct{}

// MkdirAll creates a directory and all parents.
func (OSFS) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// WriteFile writes and fsyncs path in place.
func (OSFS) WriteFile(path string, data []byte, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Remove deletes path, ignoring a missing file.
func (OSFS) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ReadFile reads path.
func (OSFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// ReadDir lists path.
func (OSFS) ReadDir(path string) ([]fs.DirEntry, error) {
	return os.ReadDir(path)
}
