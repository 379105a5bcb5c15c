// Package csvcodec reads and writes entity rows as comma-separated files.
package csvcodec

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/adcommander/adcmdr-tools/internal/models"
)

// DefaultCharset is used when no charset is configured.
const DefaultCharset = "utf-8"

// ErrNoHeader is returned when a file has no header record.
var ErrNoHeader = errors.New("csv has no header row")

// DecodeStats reports row-shape problems repaired while decoding.
type DecodeStats struct {
	Rows      int `json:"rows"`
	Padded    int `json:"padded"`
	Truncated int `json:"truncated"`
	Empty     int `json:"empty"`
}

// Codec encodes and decodes CSV in one character set.
type Codec struct {
	charset string
	enc     encoding.Encoding
}

// New resolves charset through the WHATWG encoding index. An empty name
// selects UTF-8.
func New(charset string) (*Codec, error) {
	charset = strings.ToLower(strings.TrimSpace(charset))
	if charset == "" {
		charset = DefaultCharset
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("resolving csv charset %q: %w", charset, err)
	}

	return &Codec{charset: charset, enc: enc}, nil
}

// Charset returns the canonical name of the configured character set.
func (c *Codec) Charset() string {
	name, err := htmlindex.Name(c.enc)
	if err != nil {
		return c.charset
	}

	return name
}

func (c *Codec) isUTF8() bool {
	return c.Charset() == DefaultCharset
}

// Encode writes a header row followed by one record per row, with cells in
// heading order. Missing keys become empty cells; lists and maps are
// written as JSON.
func (c *Codec) Encode(w io.Writer, headings []string, rows []models.Row) error {
	var tw *transform.Writer

	out := w
	if !c.isUTF8() {
		tw = transform.NewWriter(w, c.enc.NewEncoder())
		out = tw
	}

	cw := csv.NewWriter(out)

	if err := cw.Write(headings); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	record := make([]string, len(headings))

	for i, row := range rows {
		for j, h := range headings {
			record[j] = models.CellString(row[h])
		}

		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing csv row %d: %w", i+1, err)
		}
	}

	cw.Flush()

	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}

	if tw != nil {
		if err := tw.Close(); err != nil {
			return fmt.Errorf("closing csv encoder: %w", err)
		}
	}

	return nil
}

// EncodeFile writes rows to a new file at path.
func (c *Codec) EncodeFile(path string, headings []string, rows []models.Row) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	if err := c.Encode(f, headings, rows); err != nil {
		f.Close() //nolint:errcheck

		return err
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}

	return nil
}

// Decode reads the first record as the header and maps every following
// record onto it. A leading byte order mark is removed. Short rows are
// padded with empty cells, extra cells are dropped, and fully empty rows
// are skipped. A read error after the header returns the rows decoded so
// far together with the error.
func (c *Codec) Decode(r io.Reader) ([]models.RawRow, DecodeStats, error) {
	var stats DecodeStats

	cr := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(c.enc.NewDecoder())))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, stats, ErrNoHeader
	}

	if err != nil {
		return nil, stats, fmt.Errorf("reading csv header: %w", err)
	}

	for i, h := range header {
		header[i] = strings.TrimSpace(h)
	}

	var rows []models.RawRow

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return rows, stats, fmt.Errorf("reading csv record: %w", err)
		}

		if emptyRecord(record) {
			stats.Empty++

			continue
		}

		switch {
		case len(record) < len(header):
			stats.Padded++
		case len(record) > len(header):
			stats.Truncated++
			record = record[:len(header)]
		}

		row := make(models.RawRow, len(header))
		for i, h := range header {
			if i < len(record) {
				row[h] = record[i]
			} else {
				row[h] = ""
			}
		}

		rows = append(rows, row)
	}

	stats.Rows = len(rows)

	return rows, stats, nil
}

func emptyRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}

	return true
}
