package service

import (
	"context"
	"fmt"

	"github.com/adcommander/adcmdr-tools/internal/bundle"
	"github.com/adcommander/adcmdr-tools/internal/models"
	"github.com/adcommander/adcmdr-tools/internal/schema"
)

// maxUniquifyAttempts bounds how often the batch token is appended to a
// taken group name before a random suffix is used instead.
const maxUniquifyAttempts = 10

func (i *Importer) importGroups(ctx context.Context, ic ImportContext, rows []models.Row) (ImportContext, models.EntityCounts) {
	var counts models.EntityCounts

	es, err := i.registry.Schema(models.EntityGroups)
	if err != nil {
		i.rowFailed(models.EntityGroups, 0, err)
		counts.Failed = len(rows)

		return ic, counts
	}

	for n, row := range rows {
		if ctx.Err() != nil {
			counts.Failed += len(rows) - n

			break
		}

		primary, meta, _ := es.Split(row)
		oldID := primary.Int(es.PrimaryKey)

		newID, err := i.importGroup(ctx, ic, es, primary, meta)
		if err != nil {
			i.rowFailed(models.EntityGroups, oldID, err)
			counts.Failed++

			continue
		}

		if oldID > 0 {
			ic.GroupIDs[oldID] = newID
		}

		counts.Created++
	}

	return ic, counts
}

func (i *Importer) importGroup(ctx context.Context, ic ImportContext, es *schema.EntitySchema, row, metaRow models.Row) (int64, error) {
	name, err := i.uniqueGroupName(ctx, row.String("name"), ic.ImportID)
	if err != nil {
		return 0, err
	}

	meta := i.auditMeta(ic)
	i.copyMeta(meta, es, metaRow)

	for field := range row {
		i.setImported(meta, row, field)
	}

	g, err := i.groups.CreateGroup(ctx, models.CreateGroupRequest{Name: name, Slug: row.String("slug")}, meta)
	if err != nil {
		return 0, fmt.Errorf("creating group: %w", err)
	}

	deferred := make(models.Row)

	for _, key := range es.Deferred {
		if v, ok := metaRow[key]; ok && v != nil {
			deferred[key] = v
		}
	}

	if len(deferred) > 0 {
		ic.GroupMetaAfterAds[g.ID] = deferred
	}

	return g.ID, nil
}

// uniqueGroupName appends "_<token>" until no group has the name. After
// maxUniquifyAttempts a random suffix is appended once.
func (i *Importer) uniqueGroupName(ctx context.Context, name, token string) (string, error) {
	if name == "" {
		return "", models.ErrMissingName
	}

	for range maxUniquifyAttempts {
		taken, err := i.groups.GroupNameExists(ctx, name)
		if err != nil {
			return "", err
		}

		if !taken {
			return name, nil
		}

		name += "_" + token
	}

	return name + "_" + bundle.RandomToken(5), nil
}

// importGroupPostRelationships persists the parked group meta once ad ids
// are known. Ad references without a mapping are dropped.
func (i *Importer) importGroupPostRelationships(ctx context.Context, ic ImportContext) ImportContext {
	if len(ic.GroupMetaAfterAds) == 0 {
		return ic
	}

	es, err := i.registry.Schema(models.EntityGroups)
	if err != nil {
		i.log.WithError(err).Warn("resolving group meta failed")

		return ic
	}

	for groupID, deferred := range ic.GroupMetaAfterAds {
		meta := make(models.Meta, len(deferred))

		for name, v := range deferred {
			f, _ := es.Field(name)

			switch f.Shape {
			case schema.List:
				list, _ := v.([]any)
				meta[i.registry.MakeKey(name)] = models.CellString(ic.RemapAdList(list))
			case schema.Map:
				m, _ := v.(map[string]any)
				meta[i.registry.MakeKey(name)] = models.CellString(ic.RemapAdKeys(m))
			case schema.Scalar:
				if id, ok := ic.MapAd(cellInt(v)); ok {
					meta[i.registry.MakeKey(name)] = models.CellString(id)
				}
			}
		}

		if err := i.groups.SetGroupMeta(ctx, groupID, meta); err != nil {
			i.log.WithError(err).WithField("group_id", groupID).Warn("saving group ad meta failed")
		}
	}

	ic.GroupMetaAfterAds = make(map[int64]models.Row)

	return ic
}
