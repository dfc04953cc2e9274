package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/speechcheck/internal/record"
)

// Compile-time interface check.
var _ record.Store = (*Store)(nil)

const insertRecord = `
INSERT INTO ` + TableName + `
    (id, user_id, audio_file_path, tempo, average_pitch, spectral_centroid,
     zero_crossing_rate, chroma_mean, diagnosis, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

// Store appends diagnosis records to PostgreSQL. All operations are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool

	migrated atomic.Bool
	migrateM sync.Mutex
}

// NewStore parses dsn, creates a connection pool, and attempts to migrate
// the schema. Only an invalid DSN is fatal: an unreachable database is logged
// and the migration is retried lazily by [Store.Append].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		slog.Warn("postgres store: database not ready, will retry on first write", "err", err)
	}
	return s, nil
}

// ensureSchema runs [Migrate] once per Store lifetime. Failed attempts are
// not remembered, so the next caller retries.
func (s *Store) ensureSchema(ctx context.Context) error {
	if s.migrated.Load() {
		return nil
	}
	s.migrateM.Lock()
	defer s.migrateM.Unlock()
	if s.migrated.Load() {
		return nil
	}
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres store: ping: %w", err)
	}
	if err := Migrate(ctx, s.pool); err != nil {
		return err
	}
	s.migrated.Store(true)
	return nil
}

// Append writes rec in its own transaction on a connection acquired from the
// pool. The connection is released on every exit path.
func (s *Store) Append(ctx context.Context, rec record.DiagnosisRecord) error {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return fmt.Errorf("postgres store: record id: %w", err)
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("postgres store: acquire: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres store: begin: %w", err)
	}
	// No-op after a successful commit.
	defer tx.Rollback(ctx) //nolint:errcheck

	f := rec.Features
	if _, err := tx.Exec(ctx, insertRecord,
		id,
		rec.UserID,
		rec.AudioPath,
		f.Tempo,
		f.AvgPitch,
		f.SpectralCentroid,
		f.ZeroCrossingRate,
		f.ChromaMean,
		string(rec.Diagnosis),
		rec.CreatedAt,
	); err != nil {
		return fmt.Errorf("postgres store: insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres store: commit: %w", err)
	}
	return nil
}

// Ping checks connectivity to the database.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres store: ping: %w", err)
	}
	return nil
}

// Close releases all connections held by the underlying connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
