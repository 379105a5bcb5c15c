package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/adcommander/adcmdr-tools/internal/models"
)

// postColumns lists the columns selected for post queries.
const postColumns = `id, post_type, post_status, post_date, post_date_gmt, post_content,
	post_title, post_name, post_modified, post_modified_gmt, menu_order, guid, post_mime_type`

const (
	postMetaTable  = "postmeta"
	postMetaColumn = "post_id"
)

// PostStore handles ads, placements and attachments.
type PostStore struct {
	Base
	now func() time.Time
}

// NewPostStore creates a new PostStore.
func NewPostStore(base Base) *PostStore {
	return &PostStore{Base: base, now: time.Now}
}

func scanPost(scan func(dest ...any) error) (*models.Post, error) {
	var p models.Post

	err := scan(
		&p.ID,
		&p.Type,
		&p.Status,
		&p.Date,
		&p.DateGMT,
		&p.Content,
		&p.Title,
		&p.Name,
		&p.Modified,
		&p.ModifiedGMT,
		&p.MenuOrder,
		&p.GUID,
		&p.MimeType,
	)
	if err != nil {
		return nil, err
	}

	return &p, nil
}

// CreatePost inserts a post with its meta in one transaction. Nil dates
// default to now; the modified timestamps are always now.
func (s *PostStore) CreatePost(ctx context.Context, req models.CreatePostRequest, meta models.Meta) (*models.Post, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating post: %w", err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	local := s.now()
	gmt := local.UTC()

	date, dateGMT := local, gmt
	if req.Date != nil {
		date = *req.Date
	}

	if req.DateGMT != nil {
		dateGMT = *req.DateGMT
	}

	status := req.Status
	if status == "" {
		status = models.StatusDraft
	}

	query := `INSERT INTO posts (post_type, post_status, post_date, post_date_gmt, post_content,
			post_title, post_name, post_modified, post_modified_gmt, menu_order, guid, post_mime_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + postColumns

	row := tx.QueryRow(ctx, query,
		req.Type, status, date, dateGMT, req.Content,
		req.Title, req.Name, local, gmt, req.MenuOrder, req.GUID, req.MimeType)

	p, err := scanPost(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("scanning created post: %w", err)
	}

	if len(meta) > 0 {
		if err := upsertMeta(ctx, tx, postMetaTable, postMetaColumn, p.ID, meta); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing create post: %w", err)
	}

	return p, nil
}

// GetPost returns one post by id.
func (s *PostStore) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := s.Pool.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id)

	p, err := scanPost(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrPostNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("getting post: %w", err)
	}

	return p, nil
}

// ListPosts returns every post of postType that is not trashed, ordered by id.
func (s *PostStore) ListPosts(ctx context.Context, postType string) ([]models.Post, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.Pool.Query(ctx,
		`SELECT `+postColumns+` FROM posts WHERE post_type = $1 AND post_status <> $2 ORDER BY id`,
		postType, models.StatusTrash)
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	defer rows.Close()

	var out []models.Post

	for rows.Next() {
		p, err := scanPost(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning post: %w", err)
		}

		out = append(out, *p)
	}

	return out, rows.Err()
}

// PostIDs returns the ids of every post of postType in any status.
func (s *PostStore) PostIDs(ctx context.Context, postType string) ([]int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.Pool.Query(ctx, `SELECT id FROM posts WHERE post_type = $1 ORDER BY id`, postType)
	if err != nil {
		return nil, fmt.Errorf("listing post ids: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scanning post ids: %w", err)
	}

	return ids, nil
}

// PostExists reports whether a post of postType with id exists.
func (s *PostStore) PostExists(ctx context.Context, id int64, postType string) (bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var exists bool

	err := s.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM posts WHERE id = $1 AND post_type = $2)`, id, postType).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking post: %w", err)
	}

	return exists, nil
}

// PostMeta returns every meta value of a post.
func (s *PostStore) PostMeta(ctx context.Context, id int64) (models.Meta, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	return readMeta(ctx, s.Pool, postMetaTable, postMetaColumn, id)
}

// SetPostMeta writes meta values onto an existing post.
func (s *PostStore) SetPostMeta(ctx context.Context, id int64, meta models.Meta) error {
	if len(meta) == 0 {
		return nil
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginTx(ctx)
	if err != nil {
		return fmt.Errorf("setting post meta: %w", err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	if err := upsertMeta(ctx, tx, postMetaTable, postMetaColumn, id, meta); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing post meta: %w", err)
	}

	return nil
}
