package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated [Config]
// with defaults applied. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}

	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. An empty document yields the default configuration.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.MaxUploadMB < 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_mb %d must not be negative", cfg.Server.MaxUploadMB))
	}
	if cfg.Server.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout %s must not be negative", cfg.Server.ShutdownTimeout))
	}

	// Storage
	if strings.TrimSpace(cfg.Storage.UploadDir) == "" {
		errs = append(errs, errors.New("storage.upload_dir is required"))
	}

	// Database
	db := cfg.Database
	switch {
	case db.Driver != "" && !db.Driver.IsValid():
		errs = append(errs, fmt.Errorf("database.driver %q is invalid; valid values: postgres, jsonl, none", db.Driver))
	case db.Driver == DriverPostgres && db.PostgresDSN == "":
		errs = append(errs, errors.New("database.postgres_dsn is required when driver is postgres"))
	case db.Driver == DriverJSONL && db.JSONLPath == "":
		errs = append(errs, errors.New("database.jsonl_path is required when driver is jsonl"))
	}
	if db.FallbackJSONLPath != "" && db.Driver != DriverPostgres {
		errs = append(errs, errors.New("database.fallback_jsonl_path requires driver postgres"))
	}
	if db.Breaker.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("database.breaker.max_failures %d must not be negative", db.Breaker.MaxFailures))
	}
	if db.Breaker.ResetTimeout < 0 {
		errs = append(errs, fmt.Errorf("database.breaker.reset_timeout %s must not be negative", db.Breaker.ResetTimeout))
	}
	if db.Required {
		if db.Driver == DriverNone || db.Driver == "" {
			errs = append(errs, errors.New("database.required is set but no database.driver is configured"))
		} else {
			slog.Warn("database.required is set; a failed record write will fail the upload request",
				"driver", db.Driver,
			)
		}
	}

	return errors.Join(errs...)
}
