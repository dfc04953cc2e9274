package dsp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrTranscoderUnavailable is returned by [Transcoder.ToWAV] when no ffmpeg
// binary is configured or it cannot be found on PATH.
var ErrTranscoderUnavailable = errors.New("dsp: transcoder unavailable")

// Transcoder converts audio formats the native decoders do not understand
// (m4a, flac, webm, …) into 16-bit PCM WAV by shelling out to ffmpeg. The
// sample rate is preserved and channels are mixed down to mono.
type Transcoder struct {
	// Bin is the ffmpeg executable name or path. Empty disables transcoding.
	Bin string

	// TempDir is where intermediate WAV files are written. Empty uses
	// [os.TempDir].
	TempDir string
}

// Available reports whether the configured binary can be resolved.
func (t *Transcoder) Available() bool {
	if t == nil || t.Bin == "" {
		return false
	}
	_, err := exec.LookPath(t.Bin)
	return err == nil
}

// ToWAV converts in to a temporary WAV file and returns its path together
// with a cleanup function that removes it. The cleanup function is non-nil
// only on success.
func (t *Transcoder) ToWAV(ctx context.Context, in string) (string, func(), error) {
	if !t.Available() {
		return "", nil, ErrTranscoderUnavailable
	}

	f, err := os.CreateTemp(t.TempDir, strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))+"-*.wav")
	if err != nil {
		return "", nil, fmt.Errorf("dsp: transcode: create temp file: %w", err)
	}
	out := f.Name()
	f.Close()
	cleanup := func() { os.Remove(out) }

	args := []string{
		"-hide_banner", "-v", "error", "-y",
		"-i", in,
		"-ac", "1",
		"-c:a", "pcm_s16le",
		"-f", "wav",
		out,
	}
	cmd := exec.CommandContext(ctx, t.Bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		cleanup()
		msg := strings.TrimSpace(stderr.String())
		return "", nil, fmt.Errorf("%w: ffmpeg %q: %w: %s", ErrDecode, in, err, msg)
	}
	return out, cleanup, nil
}

// LoadAny decodes path natively when its extension is supported and falls
// back to t for everything else. t may be nil.
func LoadAny(ctx context.Context, path string, t *Transcoder) (*Waveform, error) {
	w, err := Load(path)
	if err == nil || !errors.Is(err, ErrUnsupportedFormat) || !t.Available() {
		return w, err
	}

	wavPath, cleanup, terr := t.ToWAV(ctx, path)
	if terr != nil {
		return nil, terr
	}
	defer cleanup()
	return Load(wavPath)
}
