package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/metrics"
)

func newTestHandler(t *testing.T, m *metrics.Metrics) *http.ServeMux {
	return newCachedTestHandler(t, m, nil)
}

func newCachedTestHandler(t *testing.T, m *metrics.Metrics, queryCache *cache.QueryCache) *http.ServeMux {
	t.Helper()
	ctx := context.Background()
	store := index.NewMemoryIndex()
	require.NoError(t, store.IndexDocument(ctx, catalog.Header{ID: 1, Title: "Moby-Dick", Author: "Herman Melville", Language: "English", Year: 1851},
		index.TermWeights{"whale": 2}))
	require.NoError(t, store.IndexDocument(ctx, catalog.Header{ID: 2, Title: "Typee", Author: "Herman Melville", Language: "English", Year: 1846},
		index.TermWeights{"whale": 1, "ship": 1}))
	require.NoError(t, store.IndexDocument(ctx, catalog.Header{ID: 3, Title: "Vingt mille lieues", Author: "Jules Verne", Language: "French", Year: 1870},
		index.TermWeights{"ship": 3}))

	mux := http.NewServeMux()
	New(executor.New(store), queryCache, m, 50, 500).Register(mux)
	return mux
}

func get(mux *http.ServeMux, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) []catalog.RankedResult {
	t.Helper()
	var results []catalog.RankedResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&results))
	return results
}

func TestSearch_RanksAndReturnsList(t *testing.T) {
	mux := newTestHandler(t, nil)
	rec := get(mux, "/search?q=whale+ship&unknown=ignored")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	results := decode(t, rec)
	require.Len(t, results, 3)
	assert.Equal(t, catalog.BookID(3), results[0].ID)
	assert.Equal(t, 3.0, results[0].Score)
	assert.Equal(t, "Moby-Dick", results[1].Title)
}

func TestSearch_Filters(t *testing.T) {
	mux := newTestHandler(t, nil)

	results := decode(t, get(mux, "/search?q=whale+ship&author=verne"))
	require.Len(t, results, 1)
	assert.Equal(t, catalog.BookID(3), results[0].ID)

	results = decode(t, get(mux, "/search?q=whale&language=english&year=1846"))
	require.Len(t, results, 1)
	assert.Equal(t, catalog.BookID(2), results[0].ID)
}

func TestSearch_Limit(t *testing.T) {
	results := decode(t, get(newTestHandler(t, nil), "/search?q=whale+ship&limit=2"))
	assert.Len(t, results, 2)
}

func TestSearch_EmptyResultIsEmptyList(t *testing.T) {
	rec := get(newTestHandler(t, nil), "/search?q=kraken")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestSearch_BadRequests(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	mux := newTestHandler(t, m)
	for _, target := range []string{
		"/search",
		"/search?q=+++",
		"/search?q=whale&year=abc",
		"/search?q=whale&limit=0",
	} {
		rec := get(mux, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
	assert.Equal(t, 4.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("invalid")))
}

func TestCacheStats_Disabled(t *testing.T) {
	rec := get(newTestHandler(t, nil), "/search/cache/stats")
	assert.JSONEq(t, `{"status":"disabled"}`, rec.Body.String())
}

type mapKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (k *mapKV) Get(ctx context.Context, key string) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	v, ok := k.data[key]
	if !ok {
		return nil, redis.Nil
	}
	return v, nil
}

func (k *mapKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.data[key] = value
	return nil
}

func (k *mapKV) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	n := int64(len(k.data))
	k.data = make(map[string][]byte)
	return n, nil
}

func TestSearch_CacheHeaderAndInvalidate(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	mux := newCachedTestHandler(t, m, cache.New(&mapKV{data: make(map[string][]byte)}, time.Minute, m))

	first := get(mux, "/search?q=whale")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "miss", first.Header().Get(CacheHeader))

	second := get(mux, "/search?q=WHALE")
	assert.Equal(t, "hit", second.Header().Get(CacheHeader))
	assert.Equal(t, decode(t, first), decode(t, second))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/search/cache/invalidate", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "miss", get(mux, "/search?q=whale").Header().Get(CacheHeader))
}
