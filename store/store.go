// Package store persists downloaded model files in one flat directory. There
// is no index file: a model is considered available when a file with the
// descriptor's target filename exists and its byte length matches the
// descriptor's expected size.
package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/platekit/go-alpr/catalog"
)

// Store resolves and verifies model files on disk.
type Store struct {
	dir string
	cat *catalog.Catalog
}

// New creates the models directory if needed and returns a store over it.
func New(dir string, cat *catalog.Catalog) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("store: models directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create models directory: %w", err)
	}
	return &Store{dir: dir, cat: cat}, nil
}

// Dir returns the models directory.
func (s *Store) Dir() string { return s.dir }

// FilePath returns where the model file for the given descriptor lives,
// whether or not it is present.
func (s *Store) FilePath(d catalog.Descriptor) string {
	return filepath.Join(s.dir, d.Filename)
}

// IsDownloaded reports whether the model file is present and has exactly the
// expected size. Size match is a cheap integrity check, not a cryptographic
// one.
func (s *Store) IsDownloaded(id string) bool {
	d, ok := s.cat.Get(id)
	if !ok {
		return false
	}
	info, err := os.Stat(s.FilePath(d))
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() == d.SizeBytes
}

// PathFor returns the on-disk path for a downloaded, verified model. The
// second return is false when the model is unknown or not downloaded.
func (s *Store) PathFor(id string) (string, bool) {
	if !s.IsDownloaded(id) {
		return "", false
	}
	d, _ := s.cat.Get(id)
	return s.FilePath(d), true
}

// Delete removes the model file. Deleting a model that is not present is a
// no-op, not an error.
func (s *Store) Delete(id string) error {
	d, ok := s.cat.Get(id)
	if !ok {
		return fmt.Errorf("store: unknown model %q", id)
	}
	if err := os.Remove(s.FilePath(d)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("store: delete %q: %w", id, err)
	}
	return nil
}

// TotalStorageBytes sums the sizes of all catalog model files currently on
// disk. In-flight partial files use a different name and are not counted.
func (s *Store) TotalStorageBytes() uint64 {
	var total uint64
	for _, d := range s.cat.List("") {
		info, err := os.Stat(s.FilePath(d))
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		total += uint64(info.Size())
	}
	return total
}
