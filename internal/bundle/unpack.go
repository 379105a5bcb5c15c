package bundle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/zip"

	"github.com/adcommander/adcmdr-tools/internal/models"
)

const zipMIME = "application/zip"

// DefaultMaxExtractBytes caps the total uncompressed size of one upload.
const DefaultMaxExtractBytes int64 = 512 << 20

// Import errors.
var (
	ErrNotZip      = errors.New("uploaded file is not a zip archive")
	ErrUnsafeEntry = errors.New("archive entry escapes the extraction directory")
	ErrTooLarge    = errors.New("archive expands beyond the allowed size")
	ErrNoEntities  = errors.New("archive contains no entity csv files")
)

// Extraction is an unpacked upload. Close removes it from disk.
type Extraction struct {
	Dir string
	// Files lists the extracted entity CSVs, sorted by name.
	Files []string
	// Basename is the sanitized upload name without extension.
	Basename string
}

// Find returns the first extracted file whose name contains the entity
// file prefix for t.
func (e *Extraction) Find(t models.EntityType) (string, bool) {
	needle := FilePrefix + t.String()

	for _, f := range e.Files {
		if strings.Contains(filepath.Base(f), needle) {
			return f, true
		}
	}

	return "", false
}

// Types returns the entity types present in the extraction, in import order.
func (e *Extraction) Types() []models.EntityType {
	var out []models.EntityType

	for _, t := range models.AllEntityTypes() {
		if _, ok := e.Find(t); ok {
			out = append(out, t)
		}
	}

	return out
}

// Close removes the extraction directory.
func (e *Extraction) Close() error {
	if e == nil || e.Dir == "" {
		return nil
	}

	return os.RemoveAll(e.Dir)
}

// UnpackerOption configures an Unpacker.
type UnpackerOption func(*Unpacker)

// WithTempDirs overrides the candidate temp dirs, tried in order.
func WithTempDirs(dirs ...string) UnpackerOption {
	return func(u *Unpacker) { u.tempDirs = dirs }
}

// WithFreeSpace overrides the free space probe.
func WithFreeSpace(fn FreeSpaceFunc) UnpackerOption {
	return func(u *Unpacker) { u.freeSpace = fn }
}

// WithMaxExtractBytes caps the total uncompressed size of an upload.
func WithMaxExtractBytes(n int64) UnpackerOption {
	return func(u *Unpacker) { u.maxBytes = n }
}

// Unpacker validates and extracts uploaded bundles.
type Unpacker struct {
	tempDirs  []string
	freeSpace FreeSpaceFunc
	minFree   uint64
	maxBytes  int64
	now       func() time.Time
}

// NewUnpacker creates an Unpacker that extracts into the system temp dir,
// falling back to importDir.
func NewUnpacker(importDir string, opts ...UnpackerOption) *Unpacker {
	u := &Unpacker{
		tempDirs:  []string{os.TempDir(), importDir},
		freeSpace: FreeSpace,
		minFree:   MinFreeBytes,
		maxBytes:  DefaultMaxExtractBytes,
		now:       time.Now,
	}

	for _, o := range opts {
		o(u)
	}

	return u
}

// IsZip sniffs the content of r and reports whether it is a zip archive.
// Formats built on zip, such as docx or jar, are accepted.
func IsZip(r io.Reader) (bool, error) {
	mt, err := mimetype.DetectReader(r)
	if err != nil {
		return false, fmt.Errorf("detecting content type: %w", err)
	}

	for m := mt; m != nil; m = m.Parent() {
		if m.Is(zipMIME) {
			return true, nil
		}
	}

	return false, nil
}

// Unpack sniffs upload, extracts it into a fresh directory named after the
// upload and returns the entity CSVs found. The caller must Close the
// returned Extraction.
func (u *Unpacker) Unpack(ctx context.Context, upload io.ReaderAt, size int64, name string) (*Extraction, error) {
	ok, err := IsZip(io.NewSectionReader(upload, 0, size))
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, ErrNotZip
	}

	// A reader returned alongside an error only flags insecure entry names,
	// which extract rejects itself.
	zr, err := zip.NewReader(upload, size)
	if zr == nil {
		return nil, fmt.Errorf("%w: %w", ErrNotZip, err)
	}

	for _, dir := range u.tempDirs {
		if dir != "" {
			EnsureDir(dir) //nolint:errcheck
		}
	}

	tmp, err := chooseTempDir(u.freeSpace, u.minFree, u.tempDirs...)
	if err != nil {
		return nil, err
	}

	base := Basename(name)
	ex := &Extraction{
		Dir:      filepath.Join(tmp, base+"_"+strconv.FormatInt(u.now().UnixNano(), 10)),
		Basename: base,
	}

	if err := os.MkdirAll(ex.Dir, dirPerm); err != nil {
		return nil, fmt.Errorf("creating extraction dir: %w", err)
	}

	if err := u.extract(ctx, zr, ex); err != nil {
		ex.Close() //nolint:errcheck

		return nil, err
	}

	if len(ex.Files) == 0 {
		ex.Close() //nolint:errcheck

		return nil, ErrNoEntities
	}

	return ex, nil
}

func (u *Unpacker) extract(ctx context.Context, zr *zip.Reader, ex *Extraction) error {
	remaining := u.maxBytes

	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}

		rel := filepath.Clean(filepath.FromSlash(f.Name))
		if !filepath.IsLocal(rel) {
			return fmt.Errorf("%w: %s", ErrUnsafeEntry, f.Name)
		}

		if f.FileInfo().IsDir() {
			continue
		}

		if !f.Mode().IsRegular() {
			continue
		}

		dst := filepath.Join(ex.Dir, rel)
		if err := os.MkdirAll(filepath.Dir(dst), dirPerm); err != nil {
			return fmt.Errorf("creating %s: %w", filepath.Dir(dst), err)
		}

		n, err := extractFile(f, dst, remaining)
		if err != nil {
			return err
		}

		remaining -= n

		if isEntityCSV(dst) {
			ex.Files = append(ex.Files, dst)
		}
	}

	slices.Sort(ex.Files)

	return nil
}

func extractFile(f *zip.File, dst string, limit int64) (int64, error) {
	src, err := f.Open()
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", f.Name, err)
	}
	defer src.Close() //nolint:errcheck

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", dst, err)
	}
	defer out.Close() //nolint:errcheck

	n, err := io.Copy(out, io.LimitReader(src, limit+1))
	if err != nil {
		return n, fmt.Errorf("extracting %s: %w", f.Name, err)
	}

	if n > limit {
		return n, ErrTooLarge
	}

	return n, out.Close()
}

func isEntityCSV(path string) bool {
	base := filepath.Base(path)

	return strings.Contains(base, FilePrefix) && strings.EqualFold(filepath.Ext(base), ".csv")
}
