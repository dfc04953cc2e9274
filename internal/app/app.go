// Package app wires all speechcheck subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP until its context is cancelled, and Shutdown
// tears everything down in order.
//
// For testing, inject doubles via functional options (WithRecordStore,
// WithExtractor, WithRenderer). When an option is not provided, New creates
// real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/speechcheck/internal/analysis"
	"github.com/MrWong99/speechcheck/internal/api"
	"github.com/MrWong99/speechcheck/internal/chart"
	"github.com/MrWong99/speechcheck/internal/config"
	"github.com/MrWong99/speechcheck/internal/health"
	"github.com/MrWong99/speechcheck/internal/observe"
	"github.com/MrWong99/speechcheck/internal/pipeline"
	"github.com/MrWong99/speechcheck/internal/record"
	"github.com/MrWong99/speechcheck/internal/record/jsonl"
	"github.com/MrWong99/speechcheck/internal/record/postgres"
	"github.com/MrWong99/speechcheck/internal/resilience"
	"github.com/MrWong99/speechcheck/internal/upload"
	"github.com/MrWong99/speechcheck/pkg/dsp"
)

// readHeaderTimeout bounds how long a client may take to send request headers.
const readHeaderTimeout = 10 * time.Second

// App owns all subsystem lifetimes and serves the speechcheck HTTP API.
type App struct {
	cfg     *config.Config
	metrics *observe.Metrics

	// Subsystems, initialised in New and torn down in Shutdown.
	store     record.Store
	storeSet  bool
	failover  *record.FailoverStore
	writer    *record.Writer
	extractor analysis.Extractor
	renderer  chart.Renderer
	uploads   *upload.Dir
	orch      *pipeline.Orchestrator
	handler   http.Handler
	server    *http.Server

	mu   sync.Mutex
	addr string

	// closers are called in order during Shutdown.
	closers []func() error

	serverOnce sync.Once
	serverErr  error
	stopOnce   sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithRecordStore injects a record store instead of creating one from
// database.driver. A nil store disables persistence.
func WithRecordStore(s record.Store) Option {
	return func(a *App) {
		a.store = s
		a.storeSet = true
	}
}

// WithExtractor injects a feature extractor instead of the DSP extractor.
func WithExtractor(e analysis.Extractor) Option {
	return func(a *App) { a.extractor = e }
}

// WithRenderer injects a chart renderer instead of the bar chart renderer.
func WithRenderer(r chart.Renderer) Option {
	return func(a *App) { a.renderer = r }
}

// WithMetrics records telemetry on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New creates an App by wiring all subsystems together. Use Option functions
// to inject test doubles for any subsystem.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	uploads, err := upload.New(cfg.Storage.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("app: init uploads: %w", err)
	}
	a.uploads = uploads

	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	transcoding := a.initAnalysis()

	orch, err := pipeline.New(pipeline.Deps{
		Uploads:   a.uploads,
		Extractor: a.extractor,
		Writer:    a.writer,
		Renderer:  a.renderer,
		Metrics:   a.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("app: init pipeline: %w", err)
	}
	a.orch = orch

	a.handler = a.buildHandler(transcoding)
	a.server = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return a, nil
}

// initStore selects the record store by driver unless one was injected, and
// wraps it in the best-effort writer.
func (a *App) initStore(ctx context.Context) error {
	db := a.cfg.Database
	driver := string(db.Driver)

	if !a.storeSet {
		primary, err := openStore(ctx, db.Driver, db.PostgresDSN, db.JSONLPath)
		if err != nil {
			return err
		}
		if primary == nil {
			driver = string(config.DriverNone)
		} else {
			fs := record.NewFailoverStore(driver, primary, resilience.CircuitBreakerConfig{
				MaxFailures:  db.Breaker.MaxFailures,
				ResetTimeout: db.Breaker.ResetTimeout,
			})
			if db.FallbackJSONLPath != "" {
				fs.AddFallback(string(config.DriverJSONL), jsonl.NewFileStore(db.FallbackJSONLPath))
				slog.Info("record fallback enabled", "path", db.FallbackJSONLPath)
			}
			a.store, a.failover = fs, fs
		}
	} else if a.store != nil && (driver == "" || driver == string(config.DriverNone)) {
		driver = "injected"
	}

	a.writer = record.NewWriter(a.store,
		record.WithDriver(driver),
		record.WithRequired(db.Required),
		record.WithMetrics(a.metrics),
	)
	a.closers = append(a.closers, a.writer.Close)
	slog.Info("record store ready", "driver", a.writer.Driver(), "required", db.Required)
	return nil
}

// openStore creates the backend for driver, or nil for [config.DriverNone].
func openStore(ctx context.Context, driver config.Driver, dsn, path string) (record.Store, error) {
	switch driver {
	case config.DriverPostgres:
		return postgres.NewStore(ctx, dsn)
	case config.DriverJSONL:
		return jsonl.NewFileStore(path), nil
	default:
		return nil, nil
	}
}

// initAnalysis builds the default extractor and renderer and reports whether
// ffmpeg transcoding is active.
func (a *App) initAnalysis() bool {
	var tc *dsp.Transcoder
	if bin := a.cfg.Analysis.FFmpegBin; bin != "" {
		tc = &dsp.Transcoder{Bin: bin}
		if !tc.Available() {
			slog.Warn("ffmpeg not found; only natively supported formats will decode", "ffmpeg_bin", bin)
		}
	}
	if a.extractor == nil {
		a.extractor = analysis.NewDSPExtractor(analysis.WithTranscoder(tc))
	}
	if a.renderer == nil {
		a.renderer = chart.NewBarRenderer()
	}
	return tc.Available()
}

func (a *App) buildHandler(transcoding bool) http.Handler {
	mux := http.NewServeMux()

	api.New(a.orch, a.uploads.Root(),
		api.WithMaxUploadBytes(a.cfg.Server.MaxUploadBytes()),
		api.WithTranscoding(transcoding),
	).Register(mux)

	checkers := []health.Checker{health.WritableDir("uploads", a.uploads.Root())}
	if a.store != nil {
		checkers = append(checkers, health.Checker{
			Name:     "database",
			Check:    a.writer.Ping,
			Advisory: !a.cfg.Database.Required,
		})
	}
	if a.failover != nil {
		checkers = append(checkers, health.Checker{
			Name:     "record_breakers",
			Check:    func(context.Context) error { return breakerStates(a.failover.Breakers()) },
			Advisory: true,
		})
	}
	health.New(checkers...).Register(mux)

	mux.Handle("GET /metrics", promhttp.Handler())

	return observe.Middleware(a.metrics)(mux)
}

// breakerStates fails when any record backend is being skipped or probed,
// naming each such backend with its state.
func breakerStates(states map[string]resilience.State) error {
	var tripped []string
	for name, st := range states {
		if st != resilience.StateClosed {
			tripped = append(tripped, name+"="+st.String())
		}
	}
	if len(tripped) == 0 {
		return nil
	}
	slices.Sort(tripped)
	return fmt.Errorf("circuit not closed: %s", strings.Join(tripped, ", "))
}

// Handler returns the root HTTP handler with all routes and middleware.
func (a *App) Handler() http.Handler { return a.handler }

// Addr returns the address the server is listening on, or "" before Run has
// bound its listener.
func (a *App) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addr
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests for
// up to server.shutdown_timeout. It returns ctx.Err() after a clean stop.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("app: listen %q: %w", a.cfg.Server.ListenAddr, err)
	}
	a.mu.Lock()
	a.addr = ln.Addr().String()
	a.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		return a.shutdownServer(shutdownCtx)
	})

	slog.Info("app running", "addr", ln.Addr().String(), "upload_dir", a.uploads.Root())
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (a *App) shutdownServer(ctx context.Context) error {
	a.serverOnce.Do(func() {
		if err := a.server.Shutdown(ctx); err != nil {
			a.serverErr = fmt.Errorf("app: shutdown server: %w", err)
		}
	})
	return a.serverErr
}

// Shutdown stops the HTTP server and then runs the closers in order. It
// respects the context deadline: if ctx expires before all closers finish,
// remaining closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if err := a.shutdownServer(ctx); err != nil {
			slog.Warn("http server shutdown error", "err", err)
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
