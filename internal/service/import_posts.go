package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/adcommander/adcmdr-tools/internal/models"
	"github.com/adcommander/adcmdr-tools/internal/schema"
)

// Post fields that are always system-assigned on import.
var postModifiedFields = []string{"post_modified", "post_modified_gmt"}

// Post fields dropped under the draft status policy.
var postStatusFields = []string{"post_status", "post_date", "post_date_gmt"}

// importPosts returns the handler shared by ads and placements.
func (i *Importer) importPosts(t models.EntityType, postType string) entityHandler {
	return func(ctx context.Context, ic ImportContext, rows []models.Row) (ImportContext, models.EntityCounts) {
		var counts models.EntityCounts

		es, err := i.registry.Schema(t)
		if err != nil {
			i.rowFailed(t, 0, err)
			counts.Failed = len(rows)

			return ic, counts
		}

		for n, row := range rows {
			if ctx.Err() != nil {
				counts.Failed += len(rows) - n

				break
			}

			primary, meta, extra := es.Split(row)
			oldID := primary.Int(es.PrimaryKey)

			p, err := i.importPost(ctx, ic, es, postType, primary, meta)
			if err != nil {
				i.rowFailed(t, oldID, err)
				counts.Failed++

				continue
			}

			counts.Created++

			if t != models.EntityAds {
				continue
			}

			if oldID > 0 {
				ic.AdIDs[oldID] = p.ID
			}

			i.attachGroups(ctx, ic, p.ID, extra)
			i.attachFeaturedImage(ctx, p.ID, extra)
		}

		return ic, counts
	}
}

// importPost creates one post from the primary and meta parts of a row. The
// old id and modified dates are never reused; they survive only as
// imported_* meta.
func (i *Importer) importPost(ctx context.Context, ic ImportContext, es *schema.EntitySchema, postType string, row, metaRow models.Row) (*models.Post, error) {
	req := models.CreatePostRequest{
		Type:      postType,
		Content:   row.String("post_content"),
		Title:     row.String("post_title"),
		Name:      row.String("post_name"),
		MenuOrder: int(row.Int("menu_order")),
	}

	meta := i.auditMeta(ic)
	i.setImported(meta, row, es.PrimaryKey)

	for _, f := range postModifiedFields {
		i.setImported(meta, row, f)
	}

	if ic.Policy == models.StatusPolicyMatch {
		req.Status = row.String("post_status")

		if d, ok := parseDate(row.String("post_date")); ok {
			req.Date = &d
		}

		if d, ok := parseDate(row.String("post_date_gmt")); ok {
			req.DateGMT = &d
		}
	} else {
		req.Status = models.StatusDraft

		for _, f := range postStatusFields {
			i.setImported(meta, row, f)
		}
	}

	i.copyMeta(meta, es, metaRow)

	if es.IsSpecial(schema.MetaPlacementItems) {
		if items, ok := metaRow[schema.MetaPlacementItems].([]any); ok {
			meta[i.registry.MakeKey(schema.MetaPlacementItems)] = models.CellString(ic.RemapPlacementItems(items))
		}
	}

	p, err := i.posts.CreatePost(ctx, req, meta)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", postType, err)
	}

	return p, nil
}

// attachGroups relates a new ad to the groups created in this run. Groups
// that were not imported are skipped.
func (i *Importer) attachGroups(ctx context.Context, ic ImportContext, adID int64, row models.Row) {
	if !ic.Imports(models.EntityGroups) {
		return
	}

	old, ok := row[schema.ExtraGroups].(map[string]any)
	if !ok || len(old) == 0 {
		return
	}

	ids := ic.RemapGroupKeys(old)
	if len(ids) == 0 {
		return
	}

	if err := i.groups.SetPostGroups(ctx, adID, ids); err != nil {
		i.log.WithError(err).WithField("ad_id", adID).Warn("relating ad to groups failed")
	}
}

// attachFeaturedImage reuses the original attachment when the bundle came
// from this site, and sideloads the image URL otherwise. Failures are
// logged and never fail the ad.
func (i *Importer) attachFeaturedImage(ctx context.Context, adID int64, row models.Row) {
	if !i.featuredImages {
		return
	}

	log := i.log.WithField("ad_id", adID)

	var attachmentID int64

	if thumb := row.Int(schema.MetaThumbnailID); thumb > 0 && sameSite(row.String(schema.ExtraSourceSite), i.siteURL) {
		exists, err := i.posts.PostExists(ctx, thumb, models.PostTypeAttachment)
		if err != nil {
			log.WithError(err).Warn("checking featured image failed")
		}

		if exists {
			attachmentID = thumb
		}
	}

	if imageURL := row.String(schema.MetaFeaturedImageURL); attachmentID == 0 && imageURL != "" && i.images != nil {
		id, err := i.images.Sideload(ctx, imageURL)
		if err != nil {
			log.WithError(err).WithFields(logrus.Fields{"url": imageURL}).Warn("sideloading featured image failed")

			return
		}

		attachmentID = id
	}

	if attachmentID == 0 {
		return
	}

	err := i.posts.SetPostMeta(ctx, adID, models.Meta{models.MetaKeyThumbnail: strconv.FormatInt(attachmentID, 10)})
	if err != nil {
		log.WithError(err).Warn("setting featured image failed")
	}
}

func sameSite(a, b string) bool {
	norm := func(s string) string { return strings.ToLower(strings.TrimRight(strings.TrimSpace(s), "/")) }

	return a != "" && norm(a) == norm(b)
}
