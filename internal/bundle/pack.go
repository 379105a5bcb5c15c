package bundle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/adcommander/adcmdr-tools/internal/csvcodec"
	"github.com/adcommander/adcmdr-tools/internal/models"
)

// Export errors.
var (
	ErrNothingToExport   = errors.New("nothing to export")
	ErrExportUnavailable = errors.New("export is unavailable on this host")
)

// EntityFile is the flattened rowset of one entity type.
type EntityFile struct {
	Type     models.EntityType
	Headings []string
	Rows     []models.Row
}

// Packer writes entity rowsets into a bundle archive in the export dir.
type Packer struct {
	dir   string
	codec *csvcodec.Codec
	now   func() time.Time
}

// NewPacker creates a Packer writing into dir.
func NewPacker(dir string, codec *csvcodec.Codec) *Packer {
	return &Packer{dir: dir, codec: codec, now: time.Now}
}

// Dir returns the export directory.
func (p *Packer) Dir() string { return p.dir }

// Probe checks that the export dir can be created and written and that an
// archive writer can be built. Failures wrap ErrExportUnavailable.
func (p *Packer) Probe() error {
	if err := EnsureDir(p.dir); err != nil {
		return fmt.Errorf("%w: %w", ErrExportUnavailable, err)
	}

	if !writable(p.dir) {
		return fmt.Errorf("%w: %s is not writable", ErrExportUnavailable, p.dir)
	}

	zw := zip.NewWriter(io.Discard)
	if err := zw.Close(); err != nil {
		return fmt.Errorf("%w: zip writer: %w", ErrExportUnavailable, err)
	}

	return nil
}

// Pack writes one CSV per non-empty rowset, zips them into a new bundle and
// removes the intermediate CSVs. It returns the archive path.
func (p *Packer) Pack(ctx context.Context, files []EntityFile) (string, error) {
	var nonEmpty []EntityFile

	for _, f := range files {
		if len(f.Rows) > 0 {
			nonEmpty = append(nonEmpty, f)
		}
	}

	if len(nonEmpty) == 0 {
		return "", ErrNothingToExport
	}

	if err := p.Probe(); err != nil {
		return "", err
	}

	suffix := RunSuffix(p.now())

	csvPaths := make([]string, 0, len(nonEmpty))
	defer func() {
		for _, path := range csvPaths {
			os.Remove(path) //nolint:errcheck
		}
	}()

	for _, f := range nonEmpty {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		path := filepath.Join(p.dir, EntityFileName(f.Type.String(), suffix))
		csvPaths = append(csvPaths, path)

		if err := p.codec.EncodeFile(path, f.Headings, f.Rows); err != nil {
			return "", fmt.Errorf("writing %s csv: %w", f.Type, err)
		}
	}

	archive := filepath.Join(p.dir, ArchiveName(suffix))
	if err := p.zipFiles(ctx, archive, csvPaths); err != nil {
		os.Remove(archive) //nolint:errcheck

		return "", err
	}

	return archive, nil
}

func (p *Packer) zipFiles(ctx context.Context, archive string, paths []string) error {
	out, err := os.OpenFile(archive, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o640)
	if err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}
	defer out.Close() //nolint:errcheck

	zw := zip.NewWriter(out)

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := addFile(zw, path); err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalizing archive: %w", err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("closing archive: %w", err)
	}

	return nil
}

func addFile(zw *zip.Writer, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer src.Close() //nolint:errcheck

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("zip header for %s: %w", path, err)
	}

	hdr.Name = filepath.Base(path)
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("adding %s: %w", hdr.Name, err)
	}

	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("compressing %s: %w", hdr.Name, err)
	}

	return nil
}
