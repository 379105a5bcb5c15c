package bundle

import (
	"errors"

	"golang.org/x/sys/unix"
)

// MinFreeBytes is the free space a temp dir needs to receive an extraction.
const MinFreeBytes uint64 = 200 << 20

// ErrNoTempSpace is returned when no candidate directory is usable.
var ErrNoTempSpace = errors.New("no writable temporary directory with enough free space")

// FreeSpaceFunc reports the bytes available to unprivileged users in dir.
type FreeSpaceFunc func(dir string) (uint64, error)

// FreeSpace queries the filesystem holding dir.
func FreeSpace(dir string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return 0, err
	}

	return st.Bavail * uint64(st.Bsize), nil //nolint:gosec
}

// chooseTempDir returns the first candidate that is writable and has at
// least minFree bytes available.
func chooseTempDir(free FreeSpaceFunc, minFree uint64, candidates ...string) (string, error) {
	for _, dir := range candidates {
		if dir == "" || !writable(dir) {
			continue
		}

		n, err := free(dir)
		if err != nil || n < minFree {
			continue
		}

		return dir, nil
	}

	return "", ErrNoTempSpace
}
