// Package jsonl stores diagnosis records as append-only JSON lines in a local
// file. It suits single-instance deployments and development where running
// PostgreSQL is not worth it.
package jsonl

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/MrWong99/speechcheck/internal/record"
)

// Compile-time interface check.
var _ record.Store = (*FileStore)(nil)

// FileStore persists records as JSON lines in a local file.
// Thread-safe for concurrent use.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a FileStore that writes to the given path.
// The file and its parent directory are created on first append.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (fs *FileStore) Path() string { return fs.path }

// Append writes rec as a single JSON line. The file is opened and closed on
// every call.
func (fs *FileStore) Append(ctx context.Context, rec record.DiagnosisRecord) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("jsonl: append: %w", err)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("jsonl: marshal: %w", err)
	}
	data = append(data, '\n')

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(fs.path), 0o755); err != nil {
		return fmt.Errorf("jsonl: create dir: %w", err)
	}
	f, err := os.OpenFile(fs.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("jsonl: open file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("jsonl: write: %w", err)
	}
	return nil
}

// ReadAll returns every record in file order. A missing file yields no
// records and no error.
func (fs *FileStore) ReadAll(ctx context.Context) ([]record.DiagnosisRecord, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	f, err := os.Open(fs.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("jsonl: open file: %w", err)
	}
	defer f.Close()

	var out []record.DiagnosisRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for line := 1; sc.Scan(); line++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("jsonl: read: %w", err)
		}
		if len(sc.Bytes()) == 0 {
			continue
		}
		var rec record.DiagnosisRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("jsonl: line %d: %w", line, err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("jsonl: read: %w", err)
	}
	return out, nil
}

// Ping reports whether the parent directory exists or can be created.
func (fs *FileStore) Ping(_ context.Context) error {
	if err := os.MkdirAll(filepath.Dir(fs.path), 0o755); err != nil {
		return fmt.Errorf("jsonl: ping: %w", err)
	}
	return nil
}

// Close is a no-op; files are not held open between appends.
func (fs *FileStore) Close() error { return nil }
