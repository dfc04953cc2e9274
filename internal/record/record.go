// Package record persists one row per analysed upload: who uploaded it, where
// the audio was stored, the five feature values, and the diagnosis label.
//
// Persistence is best-effort by default. A [Writer] in best-effort mode logs
// and counts a failed append but never reports it to the caller, so an
// unreachable datastore cannot fail an upload. Strict mode (see
// [WithRequired]) propagates the error instead.
//
// Backends implement [Store]:
//
//   - postgres: PostgreSQL via pgxpool (table user_audio_records)
//   - jsonl: append-only JSON lines file
//   - mock: in-memory test double
//
// [FailoverStore] chains backends behind circuit breakers.
package record

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/speechcheck/internal/analysis"
)

// ErrPersistence is wrapped by [Writer.Save] when a store append fails in
// strict mode.
var ErrPersistence = errors.New("record: persistence failed")

// DiagnosisRecord is one persisted analysis result.
type DiagnosisRecord struct {
	ID        string             `json:"id"`
	UserID    string             `json:"user_id"`
	AudioPath string             `json:"audio_file_path"`
	Features  analysis.Features  `json:"features"`
	Diagnosis analysis.Diagnosis `json:"diagnosis"`
	CreatedAt time.Time          `json:"created_at"`
}

// NewRecord builds a [DiagnosisRecord] with a fresh random ID and the current
// UTC time.
func NewRecord(userID, audioPath string, f analysis.Features, d analysis.Diagnosis) DiagnosisRecord {
	return DiagnosisRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		AudioPath: audioPath,
		Features:  f,
		Diagnosis: d,
		CreatedAt: time.Now().UTC(),
	}
}

// Store is an append-only sink for [DiagnosisRecord] values.
//
// Implementations must be safe for concurrent use and must release any
// per-call resources (connections, file handles) before Append returns,
// whether it succeeds or not.
type Store interface {
	// Append durably writes rec.
	Append(ctx context.Context, rec DiagnosisRecord) error

	// Ping reports whether the backing datastore is currently reachable.
	Ping(ctx context.Context) error

	// Close releases long-lived resources such as connection pools.
	Close() error
}
