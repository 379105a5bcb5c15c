// Package domain defines the canonical service interfaces shared by the HTTP
// API and its tests. Consumers depend on these interfaces rather than
// re-declaring equivalent ones.
package domain

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/adcommander/adcmdr-tools/internal/models"
)

// ExportService writes bundles.
type ExportService interface {
	Export(ctx context.Context, req models.ExportRequest) (*models.ExportResult, error)
}

// ImportService imports uploaded bundles. Only one import runs at a time.
type ImportService interface {
	ImportBundle(ctx context.Context, upload io.ReaderAt, size int64, filename string, opts models.ImportOptions) (*models.ImportResult, error)
}

// BundleService manages bundle archives already on disk.
type BundleService interface {
	ListBundles() ([]models.BundleInfo, error)
	OpenBundle(name string) (*os.File, time.Time, error)
	DeleteBundle(ctx context.Context, name string) error
}

// StatsService finds and removes statistics rows. Destructive operations do
// nothing unless confirm is true.
type StatsService interface {
	FindRogue(ctx context.Context) (*models.RogueStats, error)
	DeleteRogue(ctx context.Context, confirm bool) (*models.DeleteStatsResult, error)
	DeleteAll(ctx context.Context, confirm bool) (*models.DeleteStatsResult, error)
	DeleteForAd(ctx context.Context, adID int64, confirm bool) (*models.DeleteStatsResult, error)
}

// NonceService issues and verifies per-action tokens.
type NonceService interface {
	Issue(action string) string
	Verify(action, token string) (int, error)
	Lifetime() time.Duration
}
