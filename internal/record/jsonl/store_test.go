package jsonl_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/MrWong99/speechcheck/internal/analysis"
	"github.com/MrWong99/speechcheck/internal/record"
	"github.com/MrWong99/speechcheck/internal/record/jsonl"
)

func TestFileStore_AppendAndReadAll(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "data", "records.jsonl")
	fs := jsonl.NewFileStore(path)
	ctx := context.Background()

	first := record.NewRecord("1", "uploads/a.wav", analysis.Features{ZeroCrossingRate: 0.03}, analysis.Normal)
	second := record.NewRecord("2", "uploads/b.wav", analysis.Features{ZeroCrossingRate: 0.2}, analysis.Stammering)
	for _, r := range []record.DiagnosisRecord{first, second} {
		if err := fs.Append(ctx, r); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if lines := strings.Count(string(raw), "\n"); lines != 2 {
		t.Errorf("file has %d lines, want 2", lines)
	}

	got, err := fs.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadAll returned %d records, want 2", len(got))
	}
	if got[0].ID != first.ID || got[1].Diagnosis != analysis.Stammering {
		t.Errorf("records out of order or corrupted: %+v", got)
	}
	if !got[0].CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got[0].CreatedAt, first.CreatedAt)
	}
}

func TestFileStore_ReadAllMissingFile(t *testing.T) {
	t.Parallel()
	fs := jsonl.NewFileStore(filepath.Join(t.TempDir(), "none.jsonl"))
	got, err := fs.ReadAll(context.Background())
	if err != nil || len(got) != 0 {
		t.Fatalf("ReadAll = %v, %v; want empty, nil", got, err)
	}
}

func TestFileStore_ConcurrentAppends(t *testing.T) {
	t.Parallel()
	fs := jsonl.NewFileStore(filepath.Join(t.TempDir(), "records.jsonl"))
	ctx := context.Background()

	const n = 40
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fs.Append(ctx, record.NewRecord("1", "uploads/x.wav", analysis.Features{}, analysis.Normal)); err != nil {
				t.Errorf("Append: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := fs.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != n {
		t.Errorf("ReadAll returned %d records, want %d", len(got), n)
	}
}

func TestFileStore_AppendFailsOnDirectoryPath(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	fs := jsonl.NewFileStore(dir) // a directory cannot be opened for append
	err := fs.Append(context.Background(), record.NewRecord("1", "a.wav", analysis.Features{}, analysis.Normal))
	if err == nil {
		t.Fatal("expected error appending to a directory")
	}
}

func TestFileStore_CancelledContext(t *testing.T) {
	t.Parallel()
	fs := jsonl.NewFileStore(filepath.Join(t.TempDir(), "r.jsonl"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := fs.Append(ctx, record.NewRecord("1", "a.wav", analysis.Features{}, analysis.Normal)); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
