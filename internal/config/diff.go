package config

// ConfigDiff describes what changed between two configs.
// Only LogLevel is applied at runtime; every other change is reported so the
// caller can warn that a restart is needed.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// RestartRequired lists the dotted keys of changed settings that only
	// take effect on restart.
	RestartRequired []string
}

// Empty reports whether the diff contains no changes at all.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	// Log level
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	changed := func(key string, differs bool) {
		if differs {
			d.RestartRequired = append(d.RestartRequired, key)
		}
	}
	changed("server.listen_addr", old.Server.ListenAddr != new.Server.ListenAddr)
	changed("server.max_upload_mb", old.Server.MaxUploadMB != new.Server.MaxUploadMB)
	changed("server.shutdown_timeout", old.Server.ShutdownTimeout != new.Server.ShutdownTimeout)
	changed("storage.upload_dir", old.Storage.UploadDir != new.Storage.UploadDir)
	od, nd := old.Database, new.Database
	changed("database.driver", od.Driver != nd.Driver)
	changed("database.postgres_dsn", od.PostgresDSN != nd.PostgresDSN)
	changed("database.jsonl_path", od.JSONLPath != nd.JSONLPath)
	changed("database.required", od.Required != nd.Required)
	changed("database.fallback_jsonl_path", od.FallbackJSONLPath != nd.FallbackJSONLPath)
	changed("database.breaker", od.Breaker != nd.Breaker)
	changed("analysis.ffmpeg_bin", old.Analysis.FFmpegBin != new.Analysis.FFmpegBin)
	changed("telemetry.service_name", old.Telemetry.ServiceName != new.Telemetry.ServiceName)

	return d
}
