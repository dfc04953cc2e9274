package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// DefaultWatchInterval is how often a [Watcher] started with [Watcher.Run]
// looks at the config file.
const DefaultWatchInterval = 5 * time.Second

// Watcher re-reads a config file and reports what changed between the last
// valid config and the new one as a [ConfigDiff]. Edits that fail to parse or
// validate are rejected and the previous config stays current.
type Watcher struct {
	path     string
	interval time.Duration
	onReload func(ConfigDiff, *Config)

	mu      sync.Mutex
	current *Config
	seen    fingerprint
}

// fingerprint identifies one observed version of the config file. The cheap
// stat fields gate the content hash.
type fingerprint struct {
	modTime time.Time
	size    int64
	sum     [sha256.Size]byte
}

func (f fingerprint) statEqual(info os.FileInfo) bool {
	return f.modTime.Equal(info.ModTime()) && f.size == info.Size()
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval used by [Watcher.Run].
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// OnReload registers fn to receive every non-empty diff along with the config
// that produced it. fn runs on the goroutine that called [Watcher.Check].
func OnReload(fn func(ConfigDiff, *Config)) WatcherOption {
	return func(w *Watcher) { w.onReload = fn }
}

// NewWatcher loads path once and returns a Watcher holding it as the current
// config. Nothing is polled until [Watcher.Run] or [Watcher.Check] is called.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{path: path, interval: DefaultWatchInterval}
	for _, opt := range opts {
		opt(w)
	}

	cfg, fp, err := readFingerprinted(path)
	if err != nil {
		return nil, fmt.Errorf("config: watch %q: %w", path, err)
	}
	w.current, w.seen = cfg, fp
	return w, nil
}

// Current returns the most recently accepted config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Run calls [Watcher.Check] every interval until ctx is done. Rejected edits
// are logged at warn level.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Check(); err != nil {
				slog.Warn("config watcher: reload rejected", "path", w.path, "err", err)
			}
		}
	}
}

// Check looks at the file once and returns its diff against the current
// config. An untouched file, a touch without edits, or an edit that only
// changes comments or formatting all yield an empty diff and no callback.
func (w *Watcher) Check() (ConfigDiff, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return ConfigDiff{}, fmt.Errorf("config: watch %q: %w", w.path, err)
	}

	w.mu.Lock()
	unchanged := w.seen.statEqual(info)
	w.mu.Unlock()
	if unchanged {
		return ConfigDiff{}, nil
	}

	cfg, fp, err := readFingerprinted(w.path)
	if err != nil {
		return ConfigDiff{}, fmt.Errorf("config: watch %q: %w", w.path, err)
	}

	w.mu.Lock()
	if fp.sum == w.seen.sum {
		w.seen = fp
		w.mu.Unlock()
		return ConfigDiff{}, nil
	}
	d := Diff(w.current, cfg)
	w.current, w.seen = cfg, fp
	w.mu.Unlock()

	if d.Empty() {
		return d, nil
	}

	slog.Info("config watcher: configuration reloaded",
		"path", w.path,
		"log_level_changed", d.LogLevelChanged,
		"restart_required", d.RestartRequired,
	)
	// Outside the lock: the callback may call Current.
	if w.onReload != nil {
		w.onReload(d, cfg)
	}
	return d, nil
}

func readFingerprinted(path string) (*Config, fingerprint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fingerprint{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fingerprint{}, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fingerprint{}, err
	}

	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fingerprint{}, err
	}
	return cfg, fingerprint{
		modTime: info.ModTime(),
		size:    info.Size(),
		sum:     sha256.Sum256(data),
	}, nil
}
