package bundle

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	dirPerm   = 0o750
	indexFile = "index.html"
)

// Dirs holds the working directories under the uploads root.
type Dirs struct {
	Export string
	Import string
}

// DirsFor derives the export and import directories from the uploads root.
func DirsFor(uploads string) Dirs {
	base := filepath.Join(uploads, "ad-commander")

	return Dirs{
		Export: filepath.Join(base, "export"),
		Import: filepath.Join(base, "import"),
	}
}

// EnsureDir creates dir and any missing parents. Every directory it creates
// gets an empty index.html so web servers never list its contents.
func EnsureDir(dir string) error {
	var missing []string

	for d := filepath.Clean(dir); ; d = filepath.Dir(d) {
		_, err := os.Stat(d)
		if err == nil {
			break
		}

		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("checking %s: %w", d, err)
		}

		missing = append(missing, d)

		if parent := filepath.Dir(d); parent == d {
			break
		}
	}

	if len(missing) == 0 {
		return nil
	}

	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	for _, d := range missing {
		if err := os.WriteFile(filepath.Join(d, indexFile), nil, 0o640); err != nil {
			return fmt.Errorf("writing index for %s: %w", d, err)
		}
	}

	return nil
}

// writable reports whether a file can be created in dir.
func writable(dir string) bool {
	f, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return false
	}

	name := f.Name()
	f.Close()       //nolint:errcheck
	os.Remove(name) //nolint:errcheck

	return true
}
