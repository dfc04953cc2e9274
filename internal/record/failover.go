package record

import (
	"context"
	"log/slog"

	"github.com/MrWong99/speechcheck/internal/resilience"
)

// FailoverStore puts every backend behind its own circuit breaker and appends
// to the first one that accepts the record. After repeated failures a dead
// primary is skipped outright until its breaker probes it again, so uploads
// stop waiting on connection timeouts.
type FailoverStore struct {
	group *resilience.FallbackGroup[Store]
}

var _ Store = (*FailoverStore)(nil)

// NewFailoverStore wraps primary. Breakers for primary and every later
// fallback are built from cfg.
func NewFailoverStore(primaryName string, primary Store, cfg resilience.CircuitBreakerConfig) *FailoverStore {
	return &FailoverStore{group: resilience.NewFallbackGroup(primaryName, primary, cfg)}
}

// AddFallback registers a backend tried after the primary and any earlier
// fallbacks. Call it before the store is used.
func (s *FailoverStore) AddFallback(name string, st Store) {
	s.group.AddFallback(name, st)
}

// Append implements [Store].
func (s *FailoverStore) Append(ctx context.Context, rec DiagnosisRecord) error {
	name, err := s.group.Execute(ctx, func(ctx context.Context, st Store) error {
		return st.Append(ctx, rec)
	})
	if err != nil {
		return err
	}
	slog.Debug("record stored", "backend", name, "id", rec.ID)
	return nil
}

// Ping succeeds when at least one backend is reachable.
func (s *FailoverStore) Ping(ctx context.Context) error {
	var total int
	err := s.group.Each(func(_ string, st Store) error {
		total++
		return st.Ping(ctx)
	})
	if err == nil {
		return nil
	}
	if n := len(unjoin(err)); n < total {
		return nil
	}
	return err
}

// unjoin returns the errors combined by [errors.Join].
func unjoin(err error) []error {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}

// Close closes every backend and joins their errors.
func (s *FailoverStore) Close() error {
	return s.group.Each(func(_ string, st Store) error { return st.Close() })
}

// Breakers reports the breaker state of each backend.
func (s *FailoverStore) Breakers() map[string]resilience.State {
	return s.group.States()
}
