package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/adcommander/adcmdr-tools/internal/models"
)

const (
	termMetaTable  = "termmeta"
	termMetaColumn = "term_id"
)

// GroupStore handles ad group terms, their meta and ad memberships.
type GroupStore struct {
	Base
}

// NewGroupStore creates a new GroupStore.
func NewGroupStore(base Base) *GroupStore {
	return &GroupStore{Base: base}
}

// CreateGroup inserts a group term with its meta. An empty or taken slug
// is replaced by one derived from the name with a numeric suffix.
func (s *GroupStore) CreateGroup(ctx context.Context, req models.CreateGroupRequest, meta models.Meta) (*models.Group, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating group: %w", err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	slug, err := uniqueSlug(ctx, tx, req.Slug, req.Name)
	if err != nil {
		return nil, err
	}

	g := models.Group{Name: req.Name, Slug: slug}

	err = tx.QueryRow(ctx,
		`INSERT INTO terms (taxonomy, name, slug) VALUES ($1, $2, $3) RETURNING term_id`,
		models.TaxonomyGroups, g.Name, g.Slug).Scan(&g.ID)
	if err != nil {
		return nil, fmt.Errorf("inserting group: %w", err)
	}

	if len(meta) > 0 {
		if err := upsertMeta(ctx, tx, termMetaTable, termMetaColumn, g.ID, meta); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing create group: %w", err)
	}

	return &g, nil
}

func uniqueSlug(ctx context.Context, tx pgx.Tx, slug, name string) (string, error) {
	base := models.Slugify(slug)
	if base == "" {
		base = models.Slugify(name)
	}

	if base == "" {
		base = "group"
	}

	candidate := base

	for i := 2; ; i++ {
		var taken bool

		err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM terms WHERE taxonomy = $1 AND slug = $2)`,
			models.TaxonomyGroups, candidate).Scan(&taken)
		if err != nil {
			return "", fmt.Errorf("checking group slug: %w", err)
		}

		if !taken {
			return candidate, nil
		}

		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

// GroupNameExists reports whether a group with exactly name exists.
func (s *GroupStore) GroupNameExists(ctx context.Context, name string) (bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var exists bool

	err := s.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM terms WHERE taxonomy = $1 AND name = $2)`,
		models.TaxonomyGroups, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking group name: %w", err)
	}

	return exists, nil
}

// ListGroups returns every group ordered by id.
func (s *GroupStore) ListGroups(ctx context.Context) ([]models.Group, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.Pool.Query(ctx,
		`SELECT term_id, name, slug FROM terms WHERE taxonomy = $1 ORDER BY term_id`,
		models.TaxonomyGroups)
	if err != nil {
		return nil, fmt.Errorf("listing groups: %w", err)
	}

	groups, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Group, error) {
		var g models.Group
		err := row.Scan(&g.ID, &g.Name, &g.Slug)

		return g, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning groups: %w", err)
	}

	return groups, nil
}

// GroupMeta returns every meta value of a group.
func (s *GroupStore) GroupMeta(ctx context.Context, id int64) (models.Meta, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	return readMeta(ctx, s.Pool, termMetaTable, termMetaColumn, id)
}

// SetGroupMeta writes meta values onto an existing group.
func (s *GroupStore) SetGroupMeta(ctx context.Context, id int64, meta models.Meta) error {
	if len(meta) == 0 {
		return nil
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginTx(ctx)
	if err != nil {
		return fmt.Errorf("setting group meta: %w", err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	if err := upsertMeta(ctx, tx, termMetaTable, termMetaColumn, id, meta); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing group meta: %w", err)
	}

	return nil
}

// SetPostGroups adds post to each group. Existing memberships are kept;
// unknown group ids are ignored.
func (s *GroupStore) SetPostGroups(ctx context.Context, postID int64, groupIDs []int64) error {
	if len(groupIDs) == 0 {
		return nil
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := s.Pool.Exec(ctx,
		`INSERT INTO term_relationships (object_id, term_id)
		SELECT $1, term_id FROM terms WHERE taxonomy = $2 AND term_id = ANY($3)
		ON CONFLICT DO NOTHING`,
		postID, models.TaxonomyGroups, groupIDs)
	if err != nil {
		return fmt.Errorf("setting post groups: %w", err)
	}

	return nil
}

// PostGroups returns the groups a post belongs to, ordered by id.
func (s *GroupStore) PostGroups(ctx context.Context, postID int64) ([]models.Group, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.Pool.Query(ctx,
		`SELECT t.term_id, t.name, t.slug
		FROM term_relationships r JOIN terms t ON t.term_id = r.term_id
		WHERE r.object_id = $1 AND t.taxonomy = $2
		ORDER BY t.term_id`,
		postID, models.TaxonomyGroups)
	if err != nil {
		return nil, fmt.Errorf("listing post groups: %w", err)
	}

	groups, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Group, error) {
		var g models.Group
		err := row.Scan(&g.ID, &g.Name, &g.Slug)

		return g, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning post groups: %w", err)
	}

	return groups, nil
}
