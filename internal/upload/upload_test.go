package upload

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizeName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "clip.wav", want: "clip.wav"},
		{in: "../../etc/passwd", want: "passwd"},
		{in: "dir/sub/take 2.mp3", want: "take 2.mp3"},
		{in: `C:\Users\me\rec.wav`, want: "rec.wav"},
		{in: "", wantErr: true},
		{in: ".", wantErr: true},
		{in: "..", wantErr: true},
		{in: "/", wantErr: true},
	}
	for _, tc := range tests {
		got, err := SanitizeName(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidFilename) {
				t.Errorf("SanitizeName(%q) err = %v, want ErrInvalidFilename", tc.in, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("SanitizeName(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
	}
}

func TestDir_SaveCreatesAndOverwrites(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "uploads")
	d, err := New(root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Removing the directory after New must not break Save.
	if err := os.RemoveAll(root); err != nil {
		t.Fatal(err)
	}

	path, err := d.Save("sub/clip.wav", strings.NewReader("first"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if want := filepath.Join(root, "clip.wav"); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}

	if _, err := d.Save("clip.wav", strings.NewReader("second")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "second" {
		t.Errorf("content = %q, want last write to win", data)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestDir_SaveRemovesPartialFile(t *testing.T) {
	t.Parallel()

	d, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.Save("clip.wav", failingReader{}); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("err = %v, want ErrUnexpectedEOF", err)
	}
	if _, err := os.Stat(filepath.Join(d.Root(), "clip.wav")); !os.IsNotExist(err) {
		t.Errorf("partial file left behind: %v", err)
	}
}

func TestNew_EmptyRoot(t *testing.T) {
	t.Parallel()
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty root")
	}
}
