package observe

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// testSetup wires metrics to a ManualReader and installs an in-memory tracer
// provider as the global one.
func testSetup(t *testing.T) (*Metrics, *sdkmetric.ManualReader, *tracetest.InMemoryExporter) {
	t.Helper()

	m, reader := newTestMetrics(t)

	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	origTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(origTP) })

	return m, reader, exp
}

// captureLogs routes the default logger into a buffer for the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(orig) })
	return &buf
}

// serviceMux mimics the routes the app registers.
func serviceMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /upload_audio", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("case") {
		case "large":
			w.WriteHeader(http.StatusRequestEntityTooLarge)
		case "broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusOK)
		}
	})
	mux.HandleFunc("GET /uploads/{file}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func TestMiddleware_Requests(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		target     string
		wantSpan   string
		wantStatus int
		wantLevel  string
		wantError  bool
	}{
		{
			name:       "index",
			method:     http.MethodGet,
			target:     "/",
			wantSpan:   "HTTP GET /{$}",
			wantStatus: http.StatusOK,
			wantLevel:  "INFO",
		},
		{
			name:       "upload analysed",
			method:     http.MethodPost,
			target:     "/upload_audio",
			wantSpan:   "HTTP POST /upload_audio",
			wantStatus: http.StatusOK,
			wantLevel:  "INFO",
		},
		{
			name:       "upload too large",
			method:     http.MethodPost,
			target:     "/upload_audio?case=large",
			wantSpan:   "HTTP POST /upload_audio",
			wantStatus: http.StatusRequestEntityTooLarge,
			wantLevel:  "WARN",
		},
		{
			name:       "analysis failed",
			method:     http.MethodPost,
			target:     "/upload_audio?case=broken",
			wantSpan:   "HTTP POST /upload_audio",
			wantStatus: http.StatusInternalServerError,
			wantLevel:  "ERROR",
			wantError:  true,
		},
		{
			name:       "unknown route",
			method:     http.MethodGet,
			target:     "/nope",
			wantSpan:   "HTTP GET /nope",
			wantStatus: http.StatusNotFound,
			wantLevel:  "WARN",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m, _, exp := testSetup(t)
			logs := captureLogs(t)

			rec := httptest.NewRecorder()
			Middleware(m)(serviceMux()).ServeHTTP(rec, httptest.NewRequest(tc.method, tc.target, nil))

			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			spans := exp.GetSpans()
			if len(spans) != 1 {
				t.Fatalf("spans = %d, want 1", len(spans))
			}
			s := spans[0]
			if s.Name != tc.wantSpan {
				t.Errorf("span name = %q, want %q", s.Name, tc.wantSpan)
			}
			var status int64
			for _, a := range s.Attributes {
				if a.Key == "http.response.status_code" {
					status = a.Value.AsInt64()
				}
			}
			if status != int64(tc.wantStatus) {
				t.Errorf("span status attribute = %d, want %d", status, tc.wantStatus)
			}
			if got := s.Status.Code == codes.Error; got != tc.wantError {
				t.Errorf("span error = %v, want %v", got, tc.wantError)
			}
			if !strings.Contains(logs.String(), "level="+tc.wantLevel) {
				t.Errorf("log = %q, want level %s", logs.String(), tc.wantLevel)
			}
		})
	}
}

func TestMiddleware_StoredFilesShareOneRoute(t *testing.T) {
	m, reader, exp := testSetup(t)
	handler := Middleware(m)(serviceMux())

	for _, p := range []string{"/uploads/a.wav", "/uploads/a_graph.png", "/uploads/b.mp3"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	met := findMetric(collect(t, reader), "speechcheck.http.request.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist := met.Data.(metricdata.Histogram[float64])
	if len(hist.DataPoints) != 1 {
		t.Fatalf("data points = %d, want 1", len(hist.DataPoints))
	}
	dp := hist.DataPoints[0]
	if dp.Count != 3 {
		t.Errorf("sample count = %d, want 3", dp.Count)
	}
	path, _ := dp.Attributes.Value("path")
	if got := path.AsString(); got != "GET /uploads/{file}" {
		t.Errorf("path attribute = %q, want %q", got, "GET /uploads/{file}")
	}
	method, _ := dp.Attributes.Value("method")
	if got := method.AsString(); got != http.MethodGet {
		t.Errorf("method attribute = %q, want GET", got)
	}

	for _, s := range exp.GetSpans() {
		var route string
		for _, a := range s.Attributes {
			if a.Key == "http.route" {
				route = a.Value.AsString()
			}
		}
		if route != "GET /uploads/{file}" {
			t.Errorf("span %q http.route = %q", s.Name, route)
		}
	}
}

func TestMiddleware_CorrelationHeader(t *testing.T) {
	m, _, _ := testSetup(t)

	var seen string
	handler := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CorrelationID(r.Context())
	}))

	t.Run("new trace", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/upload_audio", nil))
		if len(seen) != 32 {
			t.Fatalf("correlation ID %q, want 32 hex chars", seen)
		}
		if got := rec.Header().Get(CorrelationHeader); got != seen {
			t.Errorf("%s = %q, want %q", CorrelationHeader, got, seen)
		}
	})

	t.Run("continues traceparent", func(t *testing.T) {
		const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
		req := httptest.NewRequest(http.MethodPost, "/upload_audio", nil)
		req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if seen != traceID {
			t.Errorf("correlation ID = %q, want %q", seen, traceID)
		}
		if got := rec.Header().Get(CorrelationHeader); got != traceID {
			t.Errorf("%s = %q, want %q", CorrelationHeader, got, traceID)
		}
		if tp := rec.Header().Get("traceparent"); !strings.Contains(tp, traceID) {
			t.Errorf("traceparent = %q, want trace %s", tp, traceID)
		}
	})
}
