// Package bundle packs entity CSV files into zip archives and unpacks
// uploaded archives for import.
package bundle

import (
	"crypto/rand"
	"math/big"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const (
	suffixTimeLayout = "20060102150405"
	tokenAlphabet    = "abcdefghijklmnopqrstuvwxyz0123456789"
	// FilePrefix starts every entity CSV name inside a bundle.
	FilePrefix = "adcmdr_"
	// ArchivePrefix starts every bundle archive name.
	ArchivePrefix = "bundle_"
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// RunSuffix returns the suffix shared by every file of one export run:
// an underscore, the timestamp, another underscore and five random
// lowercase alphanumerics.
func RunSuffix(now time.Time) string {
	return "_" + now.Format(suffixTimeLayout) + "_" + RandomToken(5)
}

// RandomToken returns n random characters from [a-z0-9].
func RandomToken(n int) string {
	var b strings.Builder

	b.Grow(n)

	limit := big.NewInt(int64(len(tokenAlphabet)))

	for range n {
		i, err := rand.Int(rand.Reader, limit)
		if err != nil {
			// crypto/rand does not fail on supported platforms.
			panic(err)
		}

		b.WriteByte(tokenAlphabet[i.Int64()])
	}

	return b.String()
}

// Basename strips directories and the extension from an upload name and
// replaces characters unsafe for paths.
func Basename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.Trim(unsafeNameChars.ReplaceAllString(base, "-"), "-")

	if base == "" || base == "." {
		return "upload"
	}

	return base
}

// EntityFileName returns the CSV name for one entity type within a run.
func EntityFileName(entity, suffix string) string {
	return FilePrefix + entity + suffix + ".csv"
}

// ArchiveName returns the zip name for a run.
func ArchiveName(suffix string) string {
	return "bundle" + suffix + ".zip"
}
