package service

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/adcommander/adcmdr-tools/internal/bundle"
	"github.com/adcommander/adcmdr-tools/internal/domain"
	"github.com/adcommander/adcmdr-tools/internal/metrics"
	"github.com/adcommander/adcmdr-tools/internal/models"
	"github.com/adcommander/adcmdr-tools/internal/objstore"
)

// Compile-time check: *BundleManager must satisfy domain.BundleService.
var _ domain.BundleService = (*BundleManager)(nil)

// BundleManager lists, serves and deletes bundle archives in the export dir.
type BundleManager struct {
	store  *bundle.Store
	mirror objstore.Mirror
	log    *logrus.Logger
}

// NewBundleManager creates a BundleManager. A nil mirror disables mirroring.
func NewBundleManager(store *bundle.Store, mirror objstore.Mirror, log *logrus.Logger) *BundleManager {
	if mirror == nil {
		mirror = objstore.Noop{}
	}

	return &BundleManager{store: store, mirror: mirror, log: log}
}

// ListBundles returns the bundles on disk, newest first.
func (m *BundleManager) ListBundles() ([]models.BundleInfo, error) {
	bundles, err := m.store.List()
	if err != nil {
		return nil, err
	}

	metrics.BundlesOnDisk.Set(float64(len(bundles)))

	return bundles, nil
}

// OpenBundle opens a bundle for download and returns its modification time.
func (m *BundleManager) OpenBundle(name string) (*os.File, time.Time, error) {
	f, info, err := m.store.Open(name)
	if err != nil {
		return nil, time.Time{}, err
	}

	return f, info.ModTime(), nil
}

// DeleteBundle removes a bundle and its mirrored copy. Missing bundles are
// not an error. A failed mirror removal is only logged.
func (m *BundleManager) DeleteBundle(ctx context.Context, name string) error {
	if err := m.store.Delete(name); err != nil {
		return err
	}

	if m.mirror.Enabled() {
		if err := m.mirror.Remove(ctx, name); err != nil {
			m.log.WithError(err).WithField("bundle", name).Warn("removing mirrored bundle failed")
		}
	}

	if bundles, err := m.store.List(); err == nil {
		metrics.BundlesOnDisk.Set(float64(len(bundles)))
	}

	return nil
}
