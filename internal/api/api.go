// Package api exposes the upload pipeline over HTTP.
//
// Routes:
//
//   - GET  /                HTML upload form
//   - POST /upload_audio    multipart upload; file part "audio", optional "user_id"
//   - GET  /uploads/{file}  stored audio and rendered charts
package api

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/MrWong99/speechcheck/internal/observe"
	"github.com/MrWong99/speechcheck/internal/pipeline"
	"github.com/MrWong99/speechcheck/internal/upload"
	"github.com/MrWong99/speechcheck/pkg/dsp"
)

// Error messages returned in the "error" field.
const (
	MsgNoAudio         = "No audio file uploaded"
	MsgInvalidFilename = "Invalid audio filename"
	MsgTooLarge        = "Audio file too large"
	MsgAnalysisFailed  = "audio analysis failed"
)

// defaultMaxUploadBytes caps request bodies when no limit is configured.
const defaultMaxUploadBytes = 50 << 20

// multipartMemory is how much of a multipart body is buffered in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

//go:embed templates/index.html
var templateFS embed.FS

var indexTmpl = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// Analyzer runs one upload through the pipeline.
type Analyzer interface {
	Analyze(ctx context.Context, u pipeline.Upload) (*pipeline.Result, error)
}

// UploadResponse is the success body of POST /upload_audio.
type UploadResponse struct {
	Message   string `json:"message"`
	Diagnosis string `json:"diagnosis"`
	GraphURL  string `json:"graph_url"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Handler serves the HTTP API.
type Handler struct {
	analyzer   Analyzer
	uploadsDir string
	maxBytes   int64
	extraExts  bool
}

// Option configures a [Handler].
type Option func(*Handler)

// WithMaxUploadBytes sets the request body cap. Non-positive values keep the
// default of 50 MiB.
func WithMaxUploadBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxBytes = n
		}
	}
}

// WithTranscoding advertises ffmpeg-backed formats on the upload form.
func WithTranscoding(enabled bool) Option {
	return func(h *Handler) { h.extraExts = enabled }
}

// New returns a Handler that analyses uploads with a and serves stored files
// from uploadsDir.
func New(a Analyzer, uploadsDir string, opts ...Option) *Handler {
	h := &Handler{analyzer: a, uploadsDir: uploadsDir, maxBytes: defaultMaxUploadBytes}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.Index)
	mux.HandleFunc("POST /upload_audio", h.UploadAudio)
	mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(noListing{http.Dir(h.uploadsDir)})))
}

// Index renders the upload form.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	formats := strings.Join(dsp.SupportedExtensions, ", ")
	if h.extraExts {
		formats += ", and anything ffmpeg can read"
	}
	data := struct {
		Title         string
		Formats       string
		MaxUploadMB   int64
		DefaultUserID string
	}{
		Title:         "Speech Analysis",
		Formats:       formats,
		MaxUploadMB:   h.maxBytes >> 20,
		DefaultUserID: pipeline.DefaultUserID,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTmpl.Execute(w, data); err != nil {
		observe.Logger(r.Context()).Error("api: render index", "err", err)
	}
}

// UploadAudio handles POST /upload_audio.
func (h *Handler) UploadAudio(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := observe.Logger(ctx)

	if r.ContentLength > h.maxBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: MsgTooLarge})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	u := pipeline.Upload{}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: MsgTooLarge})
			return
		}
		// Not a usable multipart body: treated as a request without audio.
		log.Debug("api: parse multipart form", "err", err)
	} else {
		defer r.MultipartForm.RemoveAll()
		u.UserID = r.FormValue("user_id")
		file, header, err := r.FormFile("audio")
		if err == nil {
			defer file.Close()
			u.Filename = header.Filename
			u.Body = file
		} else if !errors.Is(err, http.ErrMissingFile) {
			log.Debug("api: read audio part", "err", err)
		}
	}

	res, err := h.analyzer.Analyze(ctx, u)
	switch {
	case err == nil:
	case errors.Is(err, pipeline.ErrNoAudio):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: MsgNoAudio})
		return
	case errors.Is(err, upload.ErrInvalidFilename):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: MsgInvalidFilename})
		return
	default:
		log.Error("api: upload analysis failed", "filename", u.Filename, "err", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: MsgAnalysisFailed})
		return
	}

	writeJSON(w, http.StatusOK, UploadResponse{
		Message:   res.Message,
		Diagnosis: string(res.Diagnosis),
		GraphURL:  filepath.ToSlash(res.GraphPath),
	})
}

// noListing hides directory indexes from [http.FileServer].
type noListing struct {
	root http.FileSystem
}

func (n noListing) Open(name string) (http.File, error) {
	f, err := n.root.Open(name)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if st.IsDir() {
		f.Close()
		return nil, fs.ErrNotExist
	}
	return f, nil
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
	}
}
