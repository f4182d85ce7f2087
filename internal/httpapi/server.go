package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/harishchavandke01/FaceClear/internal/blob"
	"github.com/harishchavandke01/FaceClear/internal/imageproc"
	"github.com/harishchavandke01/FaceClear/internal/model"
	"github.com/harishchavandke01/FaceClear/internal/pipeline"
	"github.com/harishchavandke01/FaceClear/internal/store"
)

// Starter launches a job without waiting for it.
type Starter interface {
	Start(job model.Job)
}

type Server struct {
	Blobs          blob.LocalFS // public root; uploads and results live under it
	Jobs           store.Store
	Runner         Starter
	BaseURL        string // optional, overrides the request host in result URLs
	AllowedOrigins []string
	MaxUploadBytes int64
	Logger         *slog.Logger
	Now            func() time.Time
}

const defaultMaxUpload = 50 << 20

func (s Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger()))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins(),
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/deblur", func(r chi.Router) {
		r.Post("/start", s.handleStart)
		r.Get("/status/{job_id}", s.handleStatus)
	})

	r.Get(pipeline.StaticPrefix+"/*", s.handleStatic)
	r.Get("/*", s.handleFrontend)

	return r
}

func (s Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s Server) allowedOrigins() []string {
	if len(s.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return s.AllowedOrigins
}

func (s Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// uploadName returns a collision-resistant artifact name: UTC timestamp plus
// eight random hex digits.
func uploadName(now time.Time) string {
	return fmt.Sprintf("%s_%s.png", now.UTC().Format("20060102T150405"), uuid.NewString()[:8])
}

func (s Server) handleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := s.MaxUploadBytes
	if limit <= 0 {
		limit = defaultMaxUpload
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("parse multipart: %w", err))
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		// A part without a filename is parsed as a plain form value.
		if _, ok := r.MultipartForm.Value["image"]; ok {
			writeErr(w, http.StatusBadRequest, errors.New("empty filename"))
			return
		}
		writeErr(w, http.StatusBadRequest, errors.New("no image uploaded"))
		return
	}
	defer file.Close()
	if strings.TrimSpace(header.Filename) == "" {
		writeErr(w, http.StatusBadRequest, errors.New("empty filename"))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("read upload: %w", err))
		return
	}
	// Undecodable payloads are kept as sent; the job reports the load
	// failure when it runs.
	if img, err := imageproc.Decode(bytes.NewReader(data)); err == nil {
		if canonical, err := imageproc.EncodePNG(img); err == nil {
			data = canonical
		}
	}

	name := uploadName(s.now())
	if _, err := s.Blobs.Put(path.Join(pipeline.UploadDir, name), bytes.NewReader(data)); err != nil {
		writeErr(w, http.StatusInternalServerError, fmt.Errorf("store upload: %w", err))
		return
	}

	id := uuid.NewString()
	job, err := s.Jobs.Create(ctx, id, name)
	if err != nil {
		if errors.Is(err, model.ErrDuplicateID) {
			s.logger().Error("job id collision", "job_id", id)
		}
		writeErr(w, http.StatusInternalServerError, fmt.Errorf("create job: %w", err))
		return
	}
	s.Runner.Start(job)

	s.logger().Info("job accepted", "job_id", id, "upload", name, "filename", header.Filename)
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": id})
}

type statusResponse struct {
	JobID       string             `json:"job_id"`
	Status      model.JobStatus    `json:"status"`
	Progress    int                `json:"progress"`
	Message     string             `json:"message"`
	ResultURL   string             `json:"result_url,omitempty"`
	ErrorDetail *model.ErrorDetail `json:"error_detail,omitempty"`
}

func (s Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "job_id")
	job, err := s.Jobs.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			writeErr(w, http.StatusNotFound, errors.New("invalid job id"))
			return
		}
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	resp := statusResponse{
		JobID:       job.ID,
		Status:      job.Status,
		Progress:    job.Progress,
		Message:     job.Message,
		ResultURL:   job.ResultLocator,
		ErrorDetail: job.Error,
	}
	if strings.HasPrefix(resp.ResultURL, "/") && !strings.HasPrefix(resp.ResultURL, "//") {
		resp.ResultURL = s.baseURL(r) + resp.ResultURL
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s Server) baseURL(r *http.Request) string {
	if s.BaseURL != "" {
		return strings.TrimRight(s.BaseURL, "/")
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		proto = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
		if proto == "http" || proto == "https" {
			scheme = proto
		}
	}
	return scheme + "://" + r.Host
}

func (s Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	rel := chi.URLParam(r, "*")
	if !s.Blobs.Exists(rel) {
		writeErr(w, http.StatusNotFound, errors.New("not found"))
		return
	}
	s.serveBlob(w, r, rel)
}

// handleFrontend serves a file from the public root if one matches, else the
// bundled index.html.
func (s Server) handleFrontend(w http.ResponseWriter, r *http.Request) {
	rel := chi.URLParam(r, "*")
	if rel != "" && s.Blobs.Exists(rel) {
		s.serveBlob(w, r, rel)
		return
	}
	if s.Blobs.Exists("index.html") {
		s.serveBlob(w, r, "index.html")
		return
	}
	http.Error(w, "frontend not built: place the built files in the public directory", http.StatusNotFound)
}

func (s Server) serveBlob(w http.ResponseWriter, r *http.Request, rel string) {
	f, err := s.Blobs.Open(rel)
	if err != nil {
		writeErr(w, http.StatusNotFound, errors.New("not found"))
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	http.ServeContent(w, r, path.Base(rel), info.ModTime(), f)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]any{"error": err.Error()})
}
