package config_test

import (
	"slices"
	"testing"
	"time"

	"github.com/MrWong99/speechcheck/internal/config"
)

func baseConfig() *config.Config {
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	return cfg
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := baseConfig()
	d := config.Diff(cfg, cfg)
	if !d.Empty() {
		t.Errorf("expected empty diff, got %+v", d)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Server.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
	if len(d.RestartRequired) != 0 {
		t.Errorf("log level alone should not require restart, got %v", d.RestartRequired)
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
		key    string
	}{
		{"listen addr", func(c *config.Config) { c.Server.ListenAddr = ":9000" }, "server.listen_addr"},
		{"upload cap", func(c *config.Config) { c.Server.MaxUploadMB = 10 }, "server.max_upload_mb"},
		{"shutdown timeout", func(c *config.Config) { c.Server.ShutdownTimeout = time.Minute }, "server.shutdown_timeout"},
		{"upload dir", func(c *config.Config) { c.Storage.UploadDir = "elsewhere" }, "storage.upload_dir"},
		{"database required", func(c *config.Config) { c.Database.Required = true }, "database.required"},
		{"database driver", func(c *config.Config) { c.Database.Driver = config.DriverJSONL }, "database.driver"},
		{"breaker", func(c *config.Config) { c.Database.Breaker.MaxFailures = 9 }, "database.breaker"},
		{"ffmpeg", func(c *config.Config) { c.Analysis.FFmpegBin = "ffmpeg" }, "analysis.ffmpeg_bin"},
		{"service name", func(c *config.Config) { c.Telemetry.ServiceName = "x" }, "telemetry.service_name"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			new := baseConfig()
			tc.mutate(new)
			d := config.Diff(baseConfig(), new)
			if !slices.Equal(d.RestartRequired, []string{tc.key}) {
				t.Errorf("RestartRequired = %v, want [%s]", d.RestartRequired, tc.key)
			}
			if d.LogLevelChanged || d.Empty() {
				t.Errorf("unexpected diff %+v", d)
			}
		})
	}
}
