package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/globserve/globserve/trees"
)

func newIndex(t *testing.T, pattern string, files map[string]string) *trees.PathIndex {
	t.Helper()

	dir := t.TempDir()
	for name, contents := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(contents), 0o644))
	}

	idx, err := trees.New(dir, pattern)
	require.NoError(t, err)
	idx.Build()
	return idx
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHandlerNestedTextFiles(t *testing.T) {
	idx := newIndex(t, "**/*.txt", map[string]string{
		"a.txt":     "alpha",
		"sub/b.txt": "bravo",
	})
	require.Equal(t, 2, idx.Count())

	h := NewHandler(idx, nil, zerolog.Nop())
	router := h.Router()

	rec := get(t, router, "/a.txt")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alpha", rec.Body.String())
	assert.Equal(t, "5", rec.Header().Get("Content-Length"))
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")

	rec = get(t, router, "/sub/b.txt")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bravo", rec.Body.String())

	rec = get(t, router, "/../a.txt")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Body.String())

	snap := h.Metrics().Snapshot()
	assert.Equal(t, int64(3), snap.Total)
	assert.Equal(t, int64(2), snap.Found)
	assert.Equal(t, int64(1), snap.NotFound)
	assert.Equal(t, int64(10), snap.BytesServed)
	assert.False(t, snap.LastRequestAt.IsZero())
}

func TestHandlerEmptyBase(t *testing.T) {
	idx := newIndex(t, "*", nil)
	assert.Equal(t, 0, idx.Count())

	router := NewHandler(idx, nil, zerolog.Nop()).Router()
	for _, target := range []string{"/", "/a.txt", "/sub/", "/index.html"} {
		rec := get(t, router, target)
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
		assert.Empty(t, rec.Body.String(), target)
	}
}

func TestHandlerPatternMismatch(t *testing.T) {
	idx := newIndex(t, "*.json", map[string]string{"notes.txt": "hidden"})
	assert.Equal(t, 0, idx.Count())

	rec := get(t, NewHandler(idx, nil, zerolog.Nop()).Router(), "/notes.txt")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestHandlerTraversalAlwaysNotFound(t *testing.T) {
	idx := newIndex(t, "*", map[string]string{"a.txt": "alpha"})
	router := NewHandler(idx, nil, zerolog.Nop()).Router()

	targets := []string{
		"/../../etc/hosts",
		"/../../../../../../../../../../etc/hosts",
		"/%2e%2e/%2e%2e/etc/hosts",
		"/..%2f..%2fetc%2fhosts",
		"//etc/hosts",
		"/a.txt/../../etc/hosts",
	}
	for _, target := range targets {
		rec := get(t, router, target)
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
		assert.Empty(t, rec.Body.String(), target)
	}
}

func TestHandlerHead(t *testing.T) {
	idx := newIndex(t, "*", map[string]string{"a.txt": "alpha"})
	router := NewHandler(idx, nil, zerolog.Nop()).Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/a.txt", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("Content-Length"))
}

// staticResolver resolves every request to the same path
type staticResolver string

func (s staticResolver) Resolve(string) (string, bool) {
	return string(s), true
}

func TestHandlerUnreadableAfterResolve(t *testing.T) {
	dir := t.TempDir()

	for _, path := range []string{filepath.Join(dir, "vanished.txt"), dir} {
		rec := get(t, NewHandler(staticResolver(path), nil, zerolog.Nop()), "/whatever")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Empty(t, rec.Body.String(), path)
	}
}

func TestServerServe(t *testing.T) {
	idx := newIndex(t, "*", map[string]string{"hello.txt": "hello world"})

	srv := &Server{
		Addr:    "127.0.0.1:0",
		Handler: NewHandler(idx, nil, zerolog.Nop()).Router(),
		Logger:  zerolog.Nop(),
	}
	ln, err := srv.Listen()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := pool.New().WithErrors()
	p.Go(func() error {
		return srv.Serve(ctx, ln)
	})

	base := "http://" + ln.Addr().String()

	resp, err := http.Get(base + "/hello.txt")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello world", string(body))

	resp, err = http.Get(base + "/missing.txt")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	cancel()
	assert.NoError(t, p.Wait())
}

func TestStatusHandler(t *testing.T) {
	idx := newIndex(t, "*.txt", map[string]string{"a.txt": "a", "b.txt": "b", "c.json": "{}"})
	h := NewHandler(idx, nil, zerolog.Nop())
	get(t, h.Router(), "/a.txt")
	get(t, h.Router(), "/c.json")

	rec := get(t, StatusHandler(StatusFunc(idx, h.Metrics())), "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var status Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, idx.Base(), status.Base)
	assert.Equal(t, "*.txt", status.Pattern)
	assert.Equal(t, 2, status.Indexed)
	assert.Equal(t, int64(2), status.Requests.Total)
	assert.Equal(t, int64(1), status.Requests.Found)
	assert.Equal(t, int64(1), status.Requests.NotFound)
	assert.NotContains(t, rec.Body.String(), "a.txt")
}
