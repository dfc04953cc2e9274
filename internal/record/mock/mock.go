// Package mock provides an in-memory test double for the record.Store
// interface.
//
// Example:
//
//	s := &mock.Store{AppendErr: errors.New("connection refused")}
//	w := record.NewWriter(s, record.WithDriver("mock"))
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/speechcheck/internal/record"
)

// Call records a single method invocation on the mock.
type Call struct {
	Method string
	Args   []any
}

// Store is a mock implementation of record.Store. Successful appends are kept
// in Records.
type Store struct {
	mu sync.Mutex

	// AppendErr, if non-nil, is returned by Append and the record is dropped.
	AppendErr error

	// PingErr, if non-nil, is returned by Ping.
	PingErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// Records holds every successfully appended record in order.
	Records []record.DiagnosisRecord

	// Closed reports whether Close has been called.
	Closed bool

	calls []Call
}

var _ record.Store = (*Store)(nil)

// Append records the call and stores rec unless AppendErr is set.
func (s *Store) Append(ctx context.Context, rec record.DiagnosisRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: "Append", Args: []any{rec}})
	if s.AppendErr != nil {
		return s.AppendErr
	}
	s.Records = append(s.Records, rec)
	return nil
}

// Ping records the call and returns PingErr.
func (s *Store) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: "Ping"})
	return s.PingErr
}

// Close records the call, marks the store closed, and returns CloseErr.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: "Close"})
	s.Closed = true
	return s.CloseErr
}

// Calls returns a copy of all recorded calls.
func (s *Store) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount returns how many times method was called.
func (s *Store) CallCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Saved returns a copy of the successfully appended records.
func (s *Store) Saved() []record.DiagnosisRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]record.DiagnosisRecord, len(s.Records))
	copy(out, s.Records)
	return out
}
