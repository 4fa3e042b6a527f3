package infra

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS thumbnails (
    id              UUID PRIMARY KEY,
    owner_id        TEXT NOT NULL,
    title           TEXT NOT NULL,
    style           TEXT NOT NULL,
    color_scheme    TEXT NOT NULL DEFAULT '',
    aspect_ratio    TEXT NOT NULL DEFAULT '16:9',
    user_prompt     TEXT NOT NULL DEFAULT '',
    text_overlay    BOOLEAN NOT NULL DEFAULT FALSE,
    composed_prompt TEXT NOT NULL DEFAULT '',
    status          TEXT NOT NULL DEFAULT 'pending',
    image_url       TEXT NOT NULL DEFAULT '',
    provider        TEXT NOT NULL DEFAULT '',
    error_message   TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_thumbnails_owner_created
    ON thumbnails (owner_id, created_at DESC);

CREATE INDEX IF NOT EXISTS idx_thumbnails_status_created
    ON thumbnails (status, created_at ASC);
`

// EnsureSchema creates the tables and indexes the service needs. Statements
// are idempotent so every binary can run this at startup.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
