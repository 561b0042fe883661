package server

import (
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// Resolver maps an untrusted request path to a servable file
type Resolver interface {
	Resolve(requested string) (string, bool)
}

// Handler streams resolved files. Anything that does not resolve, or fails to
// open afterwards, gets an empty 404; no error detail ever reaches the client.
type Handler struct {
	resolver Resolver
	metrics  *RequestMetrics
	logger   zerolog.Logger
}

// NewHandler creates a Handler over resolver. metrics may be nil.
func NewHandler(resolver Resolver, metrics *RequestMetrics, logger zerolog.Logger) *Handler {
	if metrics == nil {
		metrics = &RequestMetrics{}
	}
	return &Handler{
		resolver: resolver,
		metrics:  metrics,
		logger:   logger,
	}
}

// Metrics returns the counters this handler records into
func (h *Handler) Metrics() *RequestMetrics {
	return h.metrics
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requested := strings.TrimPrefix(r.URL.Path, "/")

	path, ok := h.resolver.Resolve(requested)
	if !ok {
		h.notFound(w, r, requested, nil)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		h.notFound(w, r, requested, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		h.notFound(w, r, requested, err)
		return
	}

	ctype := mime.TypeByExtension(filepath.Ext(path))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.WriteHeader(http.StatusOK)

	written, err := io.Copy(w, f)
	if err != nil {
		hlog.FromRequest(r).Debug().Str("path", path).Err(err).Msg("stream interrupted")
	}
	h.metrics.record(true, written)
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request, requested string, err error) {
	if err != nil {
		hlog.FromRequest(r).Debug().Str("requested", requested).Err(err).Msg("resolved file not readable")
	}
	h.metrics.record(false, 0)
	w.WriteHeader(http.StatusNotFound)
}

// Router mounts h on every path with request ids and access logging.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(hlog.NewHandler(h.logger))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(middleware.GetHead)

	r.Get("/*", h.ServeHTTP)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	return r
}
