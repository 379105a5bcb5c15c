package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/adcommander/adcmdr-tools/internal/bundle"
	"github.com/adcommander/adcmdr-tools/internal/domain"
	"github.com/adcommander/adcmdr-tools/internal/metrics"
	"github.com/adcommander/adcmdr-tools/internal/models"
	"github.com/adcommander/adcmdr-tools/internal/objstore"
	"github.com/adcommander/adcmdr-tools/internal/schema"
)

// ExportSource tags every exported row.
const ExportSource = "adcmdr_export"

// Compile-time check: *Exporter must satisfy domain.ExportService.
var _ domain.ExportService = (*Exporter)(nil)

// Exporter flattens groups, ads, placements and stats into a bundle.
type Exporter struct {
	registry *schema.Registry
	posts    postStore
	groups   groupStore
	stats    statsStore
	packer   *bundle.Packer
	mirror   objstore.Mirror
	siteURL  string
	log      *logrus.Logger
}

// ExporterDeps holds the collaborators of an Exporter.
type ExporterDeps struct {
	Registry *schema.Registry
	Posts    postStore
	Groups   groupStore
	Stats    statsStore
	Packer   *bundle.Packer
	Mirror   objstore.Mirror
	SiteURL  string
	Log      *logrus.Logger
}

// NewExporter creates an Exporter. A nil mirror disables mirroring.
func NewExporter(deps ExporterDeps) *Exporter {
	mirror := deps.Mirror
	if mirror == nil {
		mirror = objstore.Noop{}
	}

	return &Exporter{
		registry: deps.Registry,
		posts:    deps.Posts,
		groups:   deps.Groups,
		stats:    deps.Stats,
		packer:   deps.Packer,
		mirror:   mirror,
		siteURL:  deps.SiteURL,
		log:      deps.Log,
	}
}

// Export writes a new bundle holding the selected entity types. The export
// dir is probed before any query runs.
func (e *Exporter) Export(ctx context.Context, req models.ExportRequest) (*models.ExportResult, error) {
	res, err := e.export(ctx, req)
	if err != nil {
		metrics.ExportsTotal.WithLabelValues(metrics.ResultFail).Inc()

		return nil, err
	}

	metrics.ExportsTotal.WithLabelValues(metrics.ResultSuccess).Inc()

	return res, nil
}

func (e *Exporter) export(ctx context.Context, req models.ExportRequest) (*models.ExportResult, error) {
	types := req.Types
	if req.IncludeStats && !models.ContainsEntity(types, models.EntityStats) {
		types = append(append([]models.EntityType(nil), types...), models.EntityStats)
	}

	if len(types) == 0 {
		return nil, models.ErrNoEntityTypes
	}

	if err := e.packer.Probe(); err != nil {
		return nil, err
	}

	rows, err := e.load(ctx, types)
	if err != nil {
		return nil, err
	}

	files := make([]bundle.EntityFile, 0, len(types))
	counts := make(map[models.EntityType]int, len(types))

	for _, t := range models.AllEntityTypes() {
		if !models.ContainsEntity(types, t) {
			continue
		}

		files = append(files, bundle.EntityFile{
			Type:     t,
			Headings: e.registry.HeadingNames(t, schema.ExportFields),
			Rows:     rows[t],
		})
		counts[t] = len(rows[t])
	}

	path, err := e.packer.Pack(ctx, files)
	if err != nil {
		return nil, fmt.Errorf("packing bundle: %w", err)
	}

	res := &models.ExportResult{
		Bundle: filepath.Base(path),
		Path:   path,
		Rows:   counts,
	}

	if e.mirror.Enabled() {
		if err := e.mirror.Put(ctx, path); err != nil {
			e.log.WithError(err).WithField("bundle", res.Bundle).Warn("mirroring bundle failed")
		} else {
			res.Mirrored = true
		}
	}

	return res, nil
}

// load reads the selected entity types. Groups, ads and placements are read
// concurrently; stats follow once the exported ad ids are known.
func (e *Exporter) load(ctx context.Context, types []models.EntityType) (map[models.EntityType][]models.Row, error) {
	var (
		groupRows, adRows, placementRows []models.Row
		adIDs                            []int64
	)

	wantStats := models.ContainsEntity(types, models.EntityStats)

	g, gctx := errgroup.WithContext(ctx)

	if models.ContainsEntity(types, models.EntityGroups) {
		g.Go(func() error {
			var err error
			groupRows, err = e.groupRows(gctx)

			return err
		})
	}

	if models.ContainsEntity(types, models.EntityAds) || wantStats {
		g.Go(func() error {
			var err error
			adRows, adIDs, err = e.adRows(gctx)

			return err
		})
	}

	if models.ContainsEntity(types, models.EntityPlacements) {
		g.Go(func() error {
			var err error
			placementRows, err = e.postRows(gctx, models.EntityPlacements, models.PostTypePlacement, nil)

			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := map[models.EntityType][]models.Row{
		models.EntityGroups:     groupRows,
		models.EntityPlacements: placementRows,
	}

	if models.ContainsEntity(types, models.EntityAds) {
		out[models.EntityAds] = adRows
	}

	if wantStats {
		statRows, err := e.statRows(ctx, adIDs)
		if err != nil {
			return nil, err
		}

		out[models.EntityStats] = statRows
	}

	return out, nil
}

func (e *Exporter) provenance() models.Row {
	return models.Row{
		schema.ExtraSource:     ExportSource,
		schema.ExtraSourceSite: e.siteURL,
	}
}

func (e *Exporter) groupRows(ctx context.Context) ([]models.Row, error) {
	groups, err := e.groups.ListGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing groups: %w", err)
	}

	fields := e.registry.Headings(models.EntityGroups, schema.ExportFields)
	rows := make([]models.Row, 0, len(groups))

	for i := range groups {
		meta, err := e.groups.GroupMeta(ctx, groups[i].ID)
		if err != nil {
			return nil, fmt.Errorf("reading meta of group %d: %w", groups[i].ID, err)
		}

		row := e.provenance()
		fill(row, fields, meta, func(name string) any { return groupColumn(&groups[i], name) })
		rows = append(rows, row)
	}

	return rows, nil
}

// adRows flattens every non-trashed ad and returns the exported ad ids.
func (e *Exporter) adRows(ctx context.Context) ([]models.Row, []int64, error) {
	var ids []int64

	rows, err := e.postRows(ctx, models.EntityAds, models.PostTypeAd, func(ctx context.Context, p *models.Post, meta models.Meta, row models.Row) error {
		ids = append(ids, p.ID)

		return e.adExtras(ctx, p, meta, row)
	})
	if err != nil {
		return nil, nil, err
	}

	return rows, ids, nil
}

type rowExtras func(ctx context.Context, p *models.Post, meta models.Meta, row models.Row) error

func (e *Exporter) postRows(ctx context.Context, t models.EntityType, postType string, extras rowExtras) ([]models.Row, error) {
	posts, err := e.posts.ListPosts(ctx, postType)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", t, err)
	}

	fields := e.registry.Headings(t, schema.ExportFields)
	rows := make([]models.Row, 0, len(posts))

	for i := range posts {
		p := &posts[i]

		meta, err := e.posts.PostMeta(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("reading meta of %s %d: %w", t, p.ID, err)
		}

		row := e.provenance()

		if extras != nil {
			if err := extras(ctx, p, meta, row); err != nil {
				return nil, err
			}
		}

		fill(row, fields, meta, func(name string) any { return postColumn(p, name) })
		rows = append(rows, row)
	}

	return rows, nil
}

// adExtras adds the group map and featured image of an ad.
func (e *Exporter) adExtras(ctx context.Context, p *models.Post, meta models.Meta, row models.Row) error {
	groups, err := e.groups.PostGroups(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("reading groups of ad %d: %w", p.ID, err)
	}

	if len(groups) > 0 {
		m := make(map[string]any, len(groups))
		for _, g := range groups {
			m[strconv.FormatInt(g.ID, 10)] = g.Name
		}

		row[schema.ExtraGroups] = m
	}

	thumbID, _ := strconv.ParseInt(meta[models.MetaKeyThumbnail], 10, 64)
	if thumbID <= 0 {
		return nil
	}

	att, err := e.posts.GetPost(ctx, thumbID)
	if errors.Is(err, models.ErrPostNotFound) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("reading featured image of ad %d: %w", p.ID, err)
	}

	row[schema.MetaThumbnailID] = att.ID
	row[schema.MetaFeaturedImageURL] = att.GUID

	return nil
}

func (e *Exporter) statRows(ctx context.Context, adIDs []int64) ([]models.Row, error) {
	if len(adIDs) == 0 {
		return nil, nil
	}

	var rows []models.Row

	for _, kind := range models.StatKinds() {
		stats, err := e.stats.StatsForAds(ctx, kind, adIDs)
		if err != nil {
			return nil, fmt.Errorf("reading %s stats: %w", kind, err)
		}

		for _, s := range stats {
			row := e.provenance()
			row[schema.StatTimestamp] = s.Timestamp.Format(models.PostDateLayout)
			row[schema.StatAdID] = s.AdID
			row[schema.StatCount] = s.Count
			row[schema.StatType] = string(kind)
			rows = append(rows, row)
		}
	}

	return rows, nil
}

// fill sets every heading not already present: primary fields from the
// entity, meta fields from the stored meta bag.
func fill(row models.Row, fields []schema.Field, meta models.Meta, column func(string) any) {
	for _, f := range fields {
		if _, set := row[f.Name]; set {
			continue
		}

		switch f.Class {
		case schema.ClassPrimary:
			row[f.Name] = column(f.Name)
		case schema.ClassMeta:
			if v, ok := meta[f.Name]; ok {
				row[f.Name] = v
			}
		case schema.ClassExtra:
		}
	}
}

func postColumn(p *models.Post, name string) any {
	switch name {
	case "ID":
		return p.ID
	case "post_status":
		return p.Status
	case "post_date":
		return formatDate(p.Date)
	case "post_date_gmt":
		return formatDate(p.DateGMT)
	case "post_content":
		return p.Content
	case "post_title":
		return p.Title
	case "post_name":
		return p.Name
	case "post_modified":
		return formatDate(p.Modified)
	case "post_modified_gmt":
		return formatDate(p.ModifiedGMT)
	case "menu_order":
		return int64(p.MenuOrder)
	default:
		return nil
	}
}

func groupColumn(g *models.Group, name string) any {
	switch name {
	case "term_id":
		return g.ID
	case "name":
		return g.Name
	case "slug":
		return g.Slug
	default:
		return nil
	}
}
