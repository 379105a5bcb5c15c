package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/adcommander/adcmdr-tools/internal/bundle"
	"github.com/adcommander/adcmdr-tools/internal/csvcodec"
	"github.com/adcommander/adcmdr-tools/internal/domain"
	"github.com/adcommander/adcmdr-tools/internal/metrics"
	"github.com/adcommander/adcmdr-tools/internal/models"
	"github.com/adcommander/adcmdr-tools/internal/sanitize"
	"github.com/adcommander/adcmdr-tools/internal/schema"
)

// Row outcome labels for metrics.ImportRowsTotal.
const (
	outcomeCreated = "created"
	outcomeSkipped = "skipped"
	outcomeFailed  = "failed"
)

// Compile-time check: *Importer must satisfy domain.ImportService.
var _ domain.ImportService = (*Importer)(nil)

// entityHandler imports the sanitized rows of one entity type.
type entityHandler func(ctx context.Context, ic ImportContext, rows []models.Row) (ImportContext, models.EntityCounts)

// ImportRequest describes one run over an already unpacked bundle.
type ImportRequest struct {
	Extraction   *bundle.Extraction
	Types        []models.EntityType
	StatusPolicy models.StatusPolicy
	ImportID     string
}

// ImporterDeps holds the collaborators of an Importer.
type ImporterDeps struct {
	Registry  *schema.Registry
	Sanitizer *sanitize.Sanitizer
	Codec     *csvcodec.Codec
	Unpacker  *bundle.Unpacker
	Posts     postStore
	Groups    groupStore
	Stats     statsStore
	// Images sideloads featured images. Nil disables remote images.
	Images imageSideloader
	// FeaturedImages toggles featured image handling entirely.
	FeaturedImages bool
	SiteURL        string
	Log            *logrus.Logger
}

// Importer recreates groups, ads, placements and stats from a bundle and
// reconnects their cross-references.
type Importer struct {
	registry       *schema.Registry
	sanitizer      *sanitize.Sanitizer
	codec          *csvcodec.Codec
	unpacker       *bundle.Unpacker
	posts          postStore
	groups         groupStore
	stats          statsStore
	images         imageSideloader
	featuredImages bool
	siteURL        string
	log            *logrus.Logger
	lock           *semaphore.Weighted
	now            func() time.Time
	handlers       map[models.EntityType]entityHandler
}

// NewImporter creates an Importer.
func NewImporter(deps ImporterDeps) *Importer {
	i := &Importer{
		registry:       deps.Registry,
		sanitizer:      deps.Sanitizer,
		codec:          deps.Codec,
		unpacker:       deps.Unpacker,
		posts:          deps.Posts,
		groups:         deps.Groups,
		stats:          deps.Stats,
		images:         deps.Images,
		featuredImages: deps.FeaturedImages,
		siteURL:        deps.SiteURL,
		log:            deps.Log,
		lock:           semaphore.NewWeighted(1),
		now:            time.Now,
	}

	i.handlers = map[models.EntityType]entityHandler{
		models.EntityGroups:     i.importGroups,
		models.EntityAds:        i.importPosts(models.EntityAds, models.PostTypeAd),
		models.EntityPlacements: i.importPosts(models.EntityPlacements, models.PostTypePlacement),
		models.EntityStats:      i.importStats,
	}

	return i
}

// ImportBundle unpacks an uploaded archive and imports the selected types.
// Only one import runs at a time; a concurrent call fails with
// models.ErrImportInProgress. The extraction is removed on every path.
func (i *Importer) ImportBundle(ctx context.Context, upload io.ReaderAt, size int64, filename string, opts models.ImportOptions) (*models.ImportResult, error) {
	if len(opts.Types) == 0 {
		return nil, models.ErrNoEntityTypes
	}

	if !i.lock.TryAcquire(1) {
		return nil, models.ErrImportInProgress
	}
	defer i.lock.Release(1)

	res, err := i.importBundle(ctx, upload, size, filename, opts)
	if err != nil {
		metrics.ImportsTotal.WithLabelValues(metrics.ResultFail).Inc()

		return nil, err
	}

	metrics.ImportsTotal.WithLabelValues(metrics.ResultSuccess).Inc()

	return res, nil
}

func (i *Importer) importBundle(ctx context.Context, upload io.ReaderAt, size int64, filename string, opts models.ImportOptions) (*models.ImportResult, error) {
	ex, err := i.unpacker.Unpack(ctx, upload, size, filename)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := ex.Close(); err != nil {
			i.log.WithError(err).WithField("dir", ex.Dir).Warn("removing extraction dir failed")
		}
	}()

	return i.Import(ctx, ImportRequest{
		Extraction:   ex,
		Types:        opts.Types,
		StatusPolicy: opts.StatusPolicy,
		ImportID:     ex.Basename + "_" + strconv.FormatInt(i.now().Unix(), 10),
	})
}

// Import processes the selected entity types of an extraction in import
// order. Types without a file in the bundle are reported as warnings.
// Group meta that references ads is resolved once every phase has run.
func (i *Importer) Import(ctx context.Context, req ImportRequest) (*models.ImportResult, error) {
	types := make([]models.EntityType, 0, len(req.Types))
	for _, t := range models.AllEntityTypes() {
		if models.ContainsEntity(req.Types, t) {
			types = append(types, t)
		}
	}

	if len(types) == 0 {
		return nil, models.ErrNoEntityTypes
	}

	policy := req.StatusPolicy
	if policy != models.StatusPolicyMatch {
		policy = models.StatusPolicyDraft
	}

	ic := NewImportContext(req.ImportID, types, policy)
	res := &models.ImportResult{ImportID: req.ImportID, Types: types}

	for _, t := range req.Extraction.Types() {
		if !models.ContainsEntity(types, t) {
			res.Warnings = append(res.Warnings, fmt.Sprintf("bundle %s file was not selected", t))
		}
	}

	for _, t := range types {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("import %s: %w", req.ImportID, err)
		}

		path, ok := req.Extraction.Find(t)
		if !ok {
			res.Warnings = append(res.Warnings, fmt.Sprintf("bundle has no %s file", t))

			continue
		}

		rows, warnings, err := i.readFile(t, path)
		res.Warnings = append(res.Warnings, warnings...)

		if err != nil {
			i.log.WithError(err).WithField("entity", t.String()).Warn("reading bundle file failed")
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s file could not be read", t))

			continue
		}

		var counts models.EntityCounts

		ic, counts = i.handlers[t](ctx, ic, rows)
		*res.Counts(t) = counts

		recordRows(t, counts)
	}

	ic = i.importGroupPostRelationships(ctx, ic)

	i.log.WithFields(logrus.Fields{
		"import_id": res.ImportID,
		"created":   res.Created(),
		"ads":       len(ic.AdIDs),
		"groups":    len(ic.GroupIDs),
	}).Debug("import finished")

	return res, nil
}

func (i *Importer) readFile(t models.EntityType, path string) ([]models.Row, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s file: %w", t, err)
	}
	defer f.Close() //nolint:errcheck

	return i.readRows(t, f)
}

// readRows decodes and sanitizes one entity file. When reading stops early
// the rows decoded so far are kept and the failure becomes a warning.
func (i *Importer) readRows(t models.EntityType, r io.Reader) ([]models.Row, []string, error) {
	raw, stats, err := i.codec.Decode(r)
	if err != nil && len(raw) == 0 {
		return nil, nil, err
	}

	var warnings []string

	if err != nil {
		i.log.WithError(err).WithFields(logrus.Fields{
			"entity": t.String(),
			"rows":   len(raw),
		}).Warn("bundle file ended early")
		warnings = append(warnings, fmt.Sprintf("%s file could only be read up to row %d", t, len(raw)))
	}

	if stats.Truncated > 0 {
		warnings = append(warnings, fmt.Sprintf("%d %s rows had more cells than headings", stats.Truncated, t))
	}

	rows := make([]models.Row, 0, len(raw))

	for _, rr := range raw {
		row, err := i.sanitizer.Entity(t, models.FromRaw(rr))
		if err != nil {
			return nil, warnings, err
		}

		rows = append(rows, row)
	}

	return rows, warnings, nil
}

// rowFailed logs a skipped row at warn level.
func (i *Importer) rowFailed(t models.EntityType, oldID int64, err error) {
	i.log.WithError(err).WithFields(logrus.Fields{
		"entity": t.String(),
		"old_id": oldID,
	}).Warn("import row skipped")
}

func recordRows(t models.EntityType, c models.EntityCounts) {
	metrics.ImportRowsTotal.WithLabelValues(t.String(), outcomeCreated).Add(float64(c.Created))
	metrics.ImportRowsTotal.WithLabelValues(t.String(), outcomeSkipped).Add(float64(c.Skipped))
	metrics.ImportRowsTotal.WithLabelValues(t.String(), outcomeFailed).Add(float64(c.Failed))
}

// auditMeta returns the import_id meta shared by every created entity.
func (i *Importer) auditMeta(ic ImportContext) models.Meta {
	return models.Meta{i.registry.MakeKey(schema.MetaImportID): ic.ImportID}
}

// setImported records the original value of a primary field.
func (i *Importer) setImported(meta models.Meta, row models.Row, field string) {
	if row.Has(field) {
		meta[i.registry.MakeKey(schema.MetaImportedPrefix+field)] = row.String(field)
	}
}

// copyMeta copies the meta part of a row, except special or deferred
// fields, into meta under namespaced keys.
func (i *Importer) copyMeta(meta models.Meta, es *schema.EntitySchema, metaRow models.Row) {
	for name, v := range metaRow {
		if v == nil || es.IsSpecial(name) || es.IsDeferred(name) {
			continue
		}

		meta[i.registry.MakeKey(name)] = models.CellString(v)
	}
}
