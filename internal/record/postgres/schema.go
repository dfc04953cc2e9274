// Package postgres provides a PostgreSQL-backed [record.Store] using a
// [pgxpool.Pool].
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//
//	_ = store.Append(ctx, rec)
//
// [NewStore] does not require the database to be reachable. When it is not,
// the schema migration is retried on the next [Store.Append].
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TableName is the table diagnosis records are written to.
const TableName = "user_audio_records"

const ddlUserAudioRecords = `
CREATE TABLE IF NOT EXISTS ` + TableName + ` (
    id                  UUID              PRIMARY KEY,
    user_id             TEXT              NOT NULL,
    audio_file_path     TEXT              NOT NULL,
    tempo               DOUBLE PRECISION  NOT NULL,
    average_pitch       DOUBLE PRECISION  NOT NULL,
    spectral_centroid   DOUBLE PRECISION  NOT NULL,
    zero_crossing_rate  DOUBLE PRECISION  NOT NULL,
    chroma_mean         DOUBLE PRECISION  NOT NULL,
    diagnosis           TEXT              NOT NULL,
    created_at          TIMESTAMPTZ       NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_` + TableName + `_user_id
    ON ` + TableName + ` (user_id);

CREATE INDEX IF NOT EXISTS idx_` + TableName + `_created_at
    ON ` + TableName + ` (created_at);
`

// Migrate creates the records table and its indexes if they do not exist.
// It is idempotent and safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlUserAudioRecords); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}
