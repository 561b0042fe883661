package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Status is the document served by the status endpoint. It never lists paths.
type Status struct {
	Base     string          `json:"base"`
	Pattern  string          `json:"pattern"`
	Indexed  int             `json:"indexed"`
	Requests MetricsSnapshot `json:"requests"`
}

// IndexInfo is the read-only view of the index the status endpoint reports on
type IndexInfo interface {
	Base() string
	Pattern() string
	Count() int
}

// StatusFunc returns a function producing the current Status
func StatusFunc(index IndexInfo, metrics *RequestMetrics) func(ctx context.Context) (Status, error) {
	return func(_ context.Context) (Status, error) {
		return Status{
			Base:     index.Base(),
			Pattern:  index.Pattern(),
			Indexed:  index.Count(),
			Requests: metrics.Snapshot(),
		}, nil
	}
}

// StatusHandler serves f's result as JSON on GET /
func StatusHandler[T any](f func(ctx context.Context) (T, error)) http.Handler {
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		stat, err := f(r.Context())
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(stat)
	})
	return r
}

// RunStatus serves the status document on addr until ctx is done
func RunStatus[T any](ctx context.Context, addr string, logger zerolog.Logger, f func(ctx context.Context) (T, error)) error {
	srv := &Server{
		Addr:    addr,
		Handler: StatusHandler(f),
		Logger:  logger,
	}
	return srv.Run(ctx)
}
