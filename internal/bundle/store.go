package bundle

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/adcommander/adcmdr-tools/internal/models"
)

// Store errors.
var (
	ErrInvalidName    = errors.New("invalid bundle name")
	ErrBundleNotFound = errors.New("bundle not found")
)

// DefaultFilters select bundle archives among the export dir contents.
var DefaultFilters = []string{".zip", ArchivePrefix}

// Store manages the bundle archives in the export directory.
type Store struct {
	dir string
}

// NewStore creates a Store over dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the directory the store manages.
func (s *Store) Dir() string { return s.dir }

// List returns the regular files whose names contain every filter, newest
// first. With no filters the DefaultFilters apply. A missing directory
// yields an empty list.
func (s *Store) List(filters ...string) ([]models.BundleInfo, error) {
	if len(filters) == 0 {
		filters = DefaultFilters
	}

	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []models.BundleInfo{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("listing bundles: %w", err)
	}

	out := make([]models.BundleInfo, 0, len(entries))

	for _, e := range entries {
		if !e.Type().IsRegular() || !matchesAll(e.Name(), filters) {
			continue
		}

		info, err := e.Info()
		if err != nil {
			continue
		}

		out = append(out, models.BundleInfo{
			Name:    e.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime().UTC(),
		})
	}

	slices.SortStableFunc(out, func(a, b models.BundleInfo) int {
		if c := b.ModTime.Compare(a.ModTime); c != 0 {
			return c
		}

		return strings.Compare(b.Name, a.Name)
	})

	return out, nil
}

// Path resolves name inside the store, rejecting anything that is not the
// plain file name of a bundle archive.
func (s *Store) Path(name string) (string, error) {
	if !validName(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	return filepath.Join(s.dir, name), nil
}

// Open opens a bundle for reading.
func (s *Store) Open(name string) (*os.File, fs.FileInfo, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, ErrBundleNotFound
	}

	if err != nil {
		return nil, nil, fmt.Errorf("opening bundle: %w", err)
	}

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		f.Close() //nolint:errcheck

		return nil, nil, ErrBundleNotFound
	}

	return f, info, nil
}

// Delete removes a bundle. Deleting a bundle that does not exist succeeds.
func (s *Store) Delete(name string) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting bundle: %w", err)
	}

	return nil
}

// validName accepts plain file names of bundle archives only.
func validName(name string) bool {
	return name != "" &&
		name == filepath.Base(name) &&
		!strings.HasPrefix(name, ".") &&
		!strings.ContainsAny(name, `/\`) &&
		name != indexFile &&
		matchesAll(name, DefaultFilters)
}

func matchesAll(name string, filters []string) bool {
	for _, f := range filters {
		if !strings.Contains(name, f) {
			return false
		}
	}

	return true
}
