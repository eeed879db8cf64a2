package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/scoracle-fusion/internal/cache"
	"github.com/albapepper/scoracle-fusion/internal/config"
	"github.com/albapepper/scoracle-fusion/internal/listener"
)

type fakeRow struct {
	data []byte
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	switch d := dest[0].(type) {
	case *[]byte:
		*d = r.data
	case *int:
		*d = 1
	}
	return nil
}

// fakeDB answers prepared statements by name and records the arguments.
type fakeDB struct {
	mu      sync.Mutex
	results map[string]fakeRow
	calls   map[string][][]any
}

func newFakeDB() *fakeDB {
	return &fakeDB{results: make(map[string]fakeRow), calls: make(map[string][][]any)}
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[sql] = append(f.calls[sql], args)
	if r, ok := f.results[sql]; ok {
		return r
	}
	return fakeRow{err: pgx.ErrNoRows}
}

func (f *fakeDB) count(stmt string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls[stmt])
}

func testConfig() *config.Config {
	return &config.Config{
		CORSAllowOrigins:  []string{"http://localhost:5173"},
		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
	}
}

func serve(t *testing.T, h http.Handler, method, target string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGetPlayerPassthroughAndCache(t *testing.T) {
	db := newFakeDB()
	db.results["api_fused_player"] = fakeRow{data: []byte(`{"player_id":7,"minutes_played":null}`)}
	router := NewRouter(db, cache.New(true), testConfig())

	rec := serve(t, router, http.MethodGet, "/api/v1/players/7", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"player_id":7,"minutes_played":null}`, rec.Body.String())
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.NotEmpty(t, rec.Header().Get("X-Process-Time"))
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)
	assert.Equal(t, []any{int64(7)}, db.calls["api_fused_player"][0])

	rec = serve(t, router, http.MethodGet, "/api/v1/players/7", nil)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Equal(t, 1, db.count("api_fused_player"))

	rec = serve(t, router, http.MethodGet, "/api/v1/players/7", map[string]string{"If-None-Match": etag})
	assert.Equal(t, http.StatusNotModified, rec.Code)
}

func TestGetPlayerErrors(t *testing.T) {
	db := newFakeDB()
	router := NewRouter(db, cache.New(false), testConfig())

	rec := serve(t, router, http.MethodGet, "/api/v1/players/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_ID")

	rec = serve(t, router, http.MethodGet, "/api/v1/players/9", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	db.results["api_fused_player"] = fakeRow{err: errors.New("boom")}
	rec = serve(t, router, http.MethodGet, "/api/v1/players/9", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestListPlayersValidatesPaging(t *testing.T) {
	db := newFakeDB()
	db.results["api_fused_list"] = fakeRow{data: []byte(`[]`)}
	router := NewRouter(db, cache.New(false), testConfig())

	tests := []struct {
		query string
		code  int
	}{
		{"", http.StatusOK},
		{"?after=10&limit=50", http.StatusOK},
		{"?limit=0", http.StatusBadRequest},
		{"?limit=501", http.StatusBadRequest},
		{"?after=-1", http.StatusBadRequest},
		{"?after=x", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := serve(t, router, http.MethodGet, "/api/v1/players"+tt.query, nil)
			assert.Equal(t, tt.code, rec.Code)
		})
	}
	assert.Equal(t, []any{10, 50}, db.calls["api_fused_list"][1])
}

func TestReviewEndpoints(t *testing.T) {
	db := newFakeDB()
	db.results["api_review_candidates"] = fakeRow{data: []byte(`[{"kind":"merge_conflict"}]`)}
	db.results["api_review_missing"] = fakeRow{data: []byte(`[]`)}
	db.results["api_coverage"] = fakeRow{data: []byte(`{"players":3,"all_three":1}`)}
	router := NewRouter(db, cache.New(false), testConfig())

	rec := serve(t, router, http.MethodGet, "/api/v1/review/candidates?kind=merge_conflict", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"merge_conflict", 100}, db.calls["api_review_candidates"][0])

	rec = serve(t, router, http.MethodGet, "/api/v1/review/candidates?kind=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, router, http.MethodGet, "/api/v1/review/missing/transfermarkt", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"transfermarkt"}, db.calls["api_review_missing"][0])

	rec = serve(t, router, http.MethodGet, "/api/v1/review/missing/opta", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, router, http.MethodGet, "/api/v1/coverage", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"players":3,"all_three":1}`, rec.Body.String())
}

func TestHealthDB(t *testing.T) {
	db := newFakeDB()
	router := NewRouter(db, cache.New(false), testConfig())

	rec := serve(t, router, http.MethodGet, "/health/db", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	db.results["health_check"] = fakeRow{}
	rec = serve(t, router, http.MethodGet, "/health/db", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitEnabled = true
	cfg.RateLimitRequests = 2
	router := NewRouter(newFakeDB(), cache.New(false), cfg)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, serve(t, router, http.MethodGet, "/health/", nil).Code)
	}
	assert.Equal(t, http.StatusOK, codes[0])
	assert.Equal(t, http.StatusTooManyRequests, codes[2])
}

func TestInvalidatorDropsStaleKeys(t *testing.T) {
	c := cache.New(true)
	c.Set(cache.PrefixFused+"7", []byte("a"), time.Minute)
	c.Set(cache.PrefixReview+"candidates::100", []byte("b"), time.Minute)
	c.Set(cache.PrefixCoverage, []byte("c"), time.Minute)
	inv := Invalidator(c, slog.New(slog.NewTextHandler(io.Discard, nil)))

	inv(listener.Event{Kind: listener.KindResolved})
	_, _, ok := c.Get(cache.PrefixReview + "candidates::100")
	assert.False(t, ok)
	_, _, ok = c.Get(cache.PrefixFused + "7")
	assert.True(t, ok)

	inv(listener.Event{Kind: listener.KindPublished})
	_, _, ok = c.Get(cache.PrefixFused + "7")
	assert.False(t, ok)
	_, _, ok = c.Get(cache.PrefixCoverage)
	assert.False(t, ok)
}
