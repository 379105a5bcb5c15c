package api_test

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/adcommander/adcmdr-tools/internal/domain"
	"github.com/adcommander/adcmdr-tools/internal/models"
)

// Compile-time checks: mocks satisfy the service interfaces.
var (
	_ domain.ExportService = (*mockExports)(nil)
	_ domain.ImportService = (*mockImports)(nil)
	_ domain.BundleService = (*mockBundles)(nil)
	_ domain.StatsService  = (*mockStats)(nil)
)

type mockExports struct {
	exportFn func(ctx context.Context, req models.ExportRequest) (*models.ExportResult, error)
}

func (m *mockExports) Export(ctx context.Context, req models.ExportRequest) (*models.ExportResult, error) {
	return m.exportFn(ctx, req)
}

// importCall records what the import handler passed on.
type importCall struct {
	data     []byte
	size     int64
	filename string
	opts     models.ImportOptions
}

type mockImports struct {
	mu       sync.Mutex
	calls    []importCall
	importFn func(opts models.ImportOptions) (*models.ImportResult, error)
}

func (m *mockImports) ImportBundle(_ context.Context, upload io.ReaderAt, size int64, filename string, opts models.ImportOptions) (*models.ImportResult, error) {
	data, err := io.ReadAll(io.NewSectionReader(upload, 0, size))
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.calls = append(m.calls, importCall{data: data, size: size, filename: filename, opts: opts})
	m.mu.Unlock()

	return m.importFn(opts)
}

type mockBundles struct {
	listFn   func() ([]models.BundleInfo, error)
	openFn   func(name string) (*os.File, time.Time, error)
	deleteFn func(name string) error
}

func (m *mockBundles) ListBundles() ([]models.BundleInfo, error) { return m.listFn() }

func (m *mockBundles) OpenBundle(name string) (*os.File, time.Time, error) { return m.openFn(name) }

func (m *mockBundles) DeleteBundle(_ context.Context, name string) error { return m.deleteFn(name) }

// mockStats refuses destructive calls without confirm, like the real
// service.
type mockStats struct {
	rogue   *models.RogueStats
	deleted []string
	adIDs   []int64
}

func (m *mockStats) FindRogue(context.Context) (*models.RogueStats, error) {
	return m.rogue, nil
}

func (m *mockStats) record(scope string, confirm bool) (*models.DeleteStatsResult, error) {
	if !confirm {
		return nil, models.ErrNotConfirmed
	}

	m.deleted = append(m.deleted, scope)

	return &models.DeleteStatsResult{Impressions: 4, Clicks: 1}, nil
}

func (m *mockStats) DeleteRogue(_ context.Context, confirm bool) (*models.DeleteStatsResult, error) {
	return m.record("rogue", confirm)
}

func (m *mockStats) DeleteAll(_ context.Context, confirm bool) (*models.DeleteStatsResult, error) {
	return m.record("all", confirm)
}

func (m *mockStats) DeleteForAd(_ context.Context, adID int64, confirm bool) (*models.DeleteStatsResult, error) {
	if adID <= 0 {
		return nil, models.ErrInvalidAdID
	}

	m.adIDs = append(m.adIDs, adID)

	return m.record("ad", confirm)
}
