package service

import (
	"context"
	"fmt"

	"github.com/adcommander/adcmdr-tools/internal/models"
	"github.com/adcommander/adcmdr-tools/internal/schema"
)

// importStats inserts stat rows for ads created in this run. Rows for other
// ads are skipped, and an existing (ad, timestamp) row is left untouched.
func (i *Importer) importStats(ctx context.Context, ic ImportContext, rows []models.Row) (ImportContext, models.EntityCounts) {
	var counts models.EntityCounts

	for n, row := range rows {
		if ctx.Err() != nil {
			counts.Failed += len(rows) - n

			break
		}

		oldID := row.Int(schema.StatAdID)

		adID, ok := ic.MapAd(oldID)
		if !ok {
			counts.Skipped++

			continue
		}

		ts, ok := parseDate(row.String(schema.StatTimestamp))
		if !ok {
			i.rowFailed(models.EntityStats, oldID, fmt.Errorf("invalid timestamp %q", row.String(schema.StatTimestamp)))
			counts.Failed++

			continue
		}

		inserted, err := i.stats.InsertStat(ctx, models.Stat{
			AdID:      adID,
			Timestamp: ts,
			Count:     row.Int(schema.StatCount),
			Kind:      models.StatKind(row.String(schema.StatType)),
		})
		if err != nil {
			i.rowFailed(models.EntityStats, oldID, err)
			counts.Failed++

			continue
		}

		if inserted {
			counts.Created++
		} else {
			counts.Skipped++
		}
	}

	return ic, counts
}
