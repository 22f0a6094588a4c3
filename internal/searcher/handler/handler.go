package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/metrics"
)

type SearchExecutor interface {
	ExecutePlan(ctx context.Context, plan *parser.QueryPlan, filters executor.Filters) ([]catalog.RankedResult, error)
}

type Handler struct {
	executor     SearchExecutor
	cache        *cache.QueryCache
	metrics      *metrics.Metrics
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

// New builds the search handler. queryCache and m may be nil.
func New(exec SearchExecutor, queryCache *cache.QueryCache, m *metrics.Metrics, defaultLimit, maxResults int) *Handler {
	return &Handler{
		executor:     exec,
		cache:        queryCache,
		metrics:      m,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /search", h.Search)
	mux.HandleFunc("GET /search/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /search/cache/invalidate", h.CacheInvalidate)
}

// Search serves GET /search. Only q, author, language, year and limit are
// read; other parameters are ignored.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)
	params := r.URL.Query()

	plan, err := parser.Parse(params.Get("q"))
	if err != nil {
		h.count("invalid")
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	filters := executor.Filters{
		Author:   params.Get("author"),
		Language: params.Get("language"),
	}
	if y := params.Get("year"); y != "" {
		year, err := strconv.Atoi(y)
		if err != nil || year <= 0 {
			h.count("invalid")
			h.writeError(w, http.StatusBadRequest, "year must be a positive integer")
			return
		}
		filters.Year = year
	}

	limit := h.defaultLimit
	if l := params.Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			h.count("invalid")
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if h.maxResults > 0 && limit > h.maxResults {
		limit = h.maxResults
	}

	var results []catalog.RankedResult
	cacheHit := false
	compute := func(ctx context.Context) ([]catalog.RankedResult, error) {
		return h.executor.ExecutePlan(ctx, plan, filters)
	}
	if h.cache != nil {
		results, cacheHit, err = h.cache.GetOrCompute(ctx, cache.Key(plan.Terms, filters.Key()), compute)
	} else {
		results, err = compute(ctx)
	}
	if err != nil {
		h.count("error")
		log.Error("search execution failed", "query", plan.RawQuery, "error", err)
		status := apperrors.HTTPStatusCode(err)
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		h.writeError(w, status, "search failed")
		return
	}

	total := len(results)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	latency := time.Since(start)
	if h.metrics != nil {
		h.metrics.SearchLatency.WithLabelValues(cacheLabel(cacheHit)).Observe(latency.Seconds())
		h.metrics.SearchResultsCount.Observe(float64(len(results)))
	}
	if total == 0 {
		h.count("zero_result")
	} else {
		h.count("ok")
	}

	log.Info("search completed",
		"query", plan.RawQuery,
		"terms", plan.Terms,
		"total_hits", total,
		"returned", len(results),
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	if h.cache != nil {
		w.Header().Set(CacheHeader, cacheLabel(cacheHit))
	}
	h.writeJSON(w, http.StatusOK, results)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	h.writeJSON(w, http.StatusOK, map[string]int64{
		"hits":   hits,
		"misses": misses,
		"total":  hits + misses,
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

// CacheHeader reports whether a search was answered from the query cache.
const CacheHeader = "X-Cache"

func cacheLabel(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}

func (h *Handler) count(resultType string) {
	if h.metrics != nil {
		h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
