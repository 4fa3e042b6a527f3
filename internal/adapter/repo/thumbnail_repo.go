// Package repo provides the PostgreSQL-backed implementations of the domain
// repository interfaces.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"thumbnailer/internal/domain"
)

// ThumbnailRepositoryPG implements domain.ThumbnailRepository.
type ThumbnailRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewThumbnailRepository creates a repository backed by PostgreSQL.
func NewThumbnailRepository(pool *pgxpool.Pool) *ThumbnailRepositoryPG {
	return &ThumbnailRepositoryPG{pool: pool}
}

const thumbnailColumns = `id, owner_id, title, style, color_scheme, aspect_ratio, user_prompt, text_overlay, composed_prompt, status, image_url, provider, error_message, created_at, updated_at`

// Create inserts a new job record in pending state.
func (r *ThumbnailRepositoryPG) Create(ctx context.Context, t *domain.Thumbnail) error {
	query := `
INSERT INTO thumbnails (id, owner_id, title, style, color_scheme, aspect_ratio, user_prompt, text_overlay, composed_prompt, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
`
	_, err := r.pool.Exec(ctx, query,
		t.ID,
		t.OwnerID,
		t.Title,
		t.Style,
		t.ColorScheme,
		t.AspectRatio,
		t.UserPrompt,
		t.TextOverlay,
		t.ComposedPrompt,
		domain.StatusPending,
	)
	return err
}

// MarkGenerating records the composed prompt and moves the job out of
// pending. Safe to repeat for jobs a worker already claimed.
func (r *ThumbnailRepositoryPG) MarkGenerating(ctx context.Context, id, composedPrompt string) error {
	query := `
UPDATE thumbnails
SET status = $2,
    composed_prompt = $3,
    updated_at = NOW()
WHERE id = $1 AND status IN ($4, $2);
`
	tag, err := r.pool.Exec(ctx, query, id, domain.StatusGenerating, composedPrompt, domain.StatusPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Complete commits the successful terminal transition. The status guard keeps
// the transition single-shot: a job already terminal is left untouched.
func (r *ThumbnailRepositoryPG) Complete(ctx context.Context, id, imageURL, providerID string) error {
	query := `
UPDATE thumbnails
SET status = $2,
    image_url = $3,
    provider = $4,
    error_message = '',
    updated_at = NOW()
WHERE id = $1 AND status = $5;
`
	tag, err := r.pool.Exec(ctx, query, id, domain.StatusCompleted, imageURL, providerID, domain.StatusGenerating)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Fail commits the failed terminal transition with a human-readable reason.
func (r *ThumbnailRepositoryPG) Fail(ctx context.Context, id, reason string) error {
	query := `
UPDATE thumbnails
SET status = $2,
    error_message = $3,
    updated_at = NOW()
WHERE id = $1 AND status IN ($4, $5);
`
	tag, err := r.pool.Exec(ctx, query, id, domain.StatusFailed, reason, domain.StatusPending, domain.StatusGenerating)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Requeue returns a generating job to pending for the worker binary.
func (r *ThumbnailRepositoryPG) Requeue(ctx context.Context, id string) error {
	query := `
UPDATE thumbnails
SET status = $2, updated_at = NOW()
WHERE id = $1 AND status = $3;
`
	tag, err := r.pool.Exec(ctx, query, id, domain.StatusPending, domain.StatusGenerating)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID fetches one job scoped to its owner. A job belonging to another
// owner reads as not found.
func (r *ThumbnailRepositoryPG) GetByID(ctx context.Context, id, ownerID string) (*domain.Thumbnail, error) {
	query := `
SELECT ` + thumbnailColumns + `
FROM thumbnails
WHERE id = $1 AND owner_id = $2;
`
	row := r.pool.QueryRow(ctx, query, id, ownerID)
	t, err := scanThumbnail(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

// ListByOwner returns every job for an owner, newest first.
func (r *ThumbnailRepositoryPG) ListByOwner(ctx context.Context, ownerID string) ([]domain.Thumbnail, error) {
	query := `
SELECT ` + thumbnailColumns + `
FROM thumbnails
WHERE owner_id = $1
ORDER BY created_at DESC;
`
	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Thumbnail
	for rows.Next() {
		t, err := scanThumbnail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// Delete removes one job scoped to its owner.
func (r *ThumbnailRepositoryPG) Delete(ctx context.Context, id, ownerID string) error {
	query := `DELETE FROM thumbnails WHERE id = $1 AND owner_id = $2;`
	tag, err := r.pool.Exec(ctx, query, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ClaimPending atomically claims the oldest stranded pending job. The age
// guard leaves room for the API's own in-process dispatch to pick the job up
// first; SKIP LOCKED keeps concurrent workers off the same row.
func (r *ThumbnailRepositoryPG) ClaimPending(ctx context.Context, minAge time.Duration) (*domain.Thumbnail, error) {
	query := `
WITH next_job AS (
    SELECT id
    FROM thumbnails
    WHERE status = $1
      AND created_at < NOW() - make_interval(secs => $3)
    ORDER BY created_at ASC
    FOR UPDATE SKIP LOCKED
    LIMIT 1
),
claimed AS (
    UPDATE thumbnails
    SET status = $2, updated_at = NOW()
    WHERE id IN (SELECT id FROM next_job)
    RETURNING ` + thumbnailColumns + `
)
SELECT * FROM claimed;
`
	row := r.pool.QueryRow(ctx, query, domain.StatusPending, domain.StatusGenerating, minAge.Seconds())
	t, err := scanThumbnail(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNoJobPending
		}
		return nil, err
	}
	return t, nil
}

func scanThumbnail(row pgx.Row) (*domain.Thumbnail, error) {
	var t domain.Thumbnail
	if err := row.Scan(
		&t.ID,
		&t.OwnerID,
		&t.Title,
		&t.Style,
		&t.ColorScheme,
		&t.AspectRatio,
		&t.UserPrompt,
		&t.TextOverlay,
		&t.ComposedPrompt,
		&t.Status,
		&t.ImageURL,
		&t.Provider,
		&t.ErrorMessage,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &t, nil
}

var _ domain.ThumbnailRepository = (*ThumbnailRepositoryPG)(nil)
