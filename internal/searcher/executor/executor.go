// Package executor runs a parsed query against the index store: it fetches
// postings per term, aggregates scores, joins metadata and applies
// filters.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/tracing"
)

const lookupConcurrency = 8

// Filters narrow results by metadata. Zero values match everything.
type Filters struct {
	Author   string
	Language string
	Year     int
}

// Match reports whether h passes every set filter. Author is a
// case-insensitive substring match, language a case-insensitive equality
// and year exact.
func (f Filters) Match(h catalog.Header) bool {
	if f.Author != "" && !strings.Contains(strings.ToLower(h.Author), strings.ToLower(f.Author)) {
		return false
	}
	if f.Language != "" && !strings.EqualFold(strings.TrimSpace(h.Language), strings.TrimSpace(f.Language)) {
		return false
	}
	if f.Year != 0 && h.Year != f.Year {
		return false
	}
	return true
}

// Key is a stable representation used in cache keys.
func (f Filters) Key() string {
	return "author=" + strings.ToLower(f.Author) +
		"|language=" + strings.ToLower(f.Language) +
		"|year=" + strconv.Itoa(f.Year)
}

type Executor struct {
	store  index.Store
	logger *slog.Logger
}

func New(store index.Store) *Executor {
	return &Executor{
		store:  store,
		logger: slog.Default().With("component", "query-executor"),
	}
}

// Execute answers a raw query. Blank queries fail with ErrInvalidInput
// before the store is touched. Matches whose metadata cannot be resolved
// are dropped and logged.
func (e *Executor) Execute(ctx context.Context, rawQuery string, filters Filters) ([]catalog.RankedResult, error) {
	plan, err := parser.Parse(rawQuery)
	if err != nil {
		return nil, err
	}
	return e.ExecutePlan(ctx, plan, filters)
}

func (e *Executor) ExecutePlan(ctx context.Context, plan *parser.QueryPlan, filters Filters) ([]catalog.RankedResult, error) {
	results := make([]catalog.RankedResult, 0)
	if len(plan.Terms) == 0 {
		return results, nil
	}

	ctx, span := tracing.Start(ctx, "execute")
	defer func() {
		span.End()
		span.Log(e.logger)
	}()

	// Each distinct term is fetched once; a repeated term contributes its
	// postings once per occurrence.
	distinct := uniqueTerms(plan.Terms)
	_, lookupSpan := tracing.Start(ctx, "lookup")
	lookupSpan.SetAttr("terms", len(distinct))
	fetched := make([]index.PostingList, len(distinct))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupConcurrency)
	for i, term := range distinct {
		g.Go(func() error {
			list, err := e.store.LookupTerm(gctx, term)
			if err != nil {
				return fmt.Errorf("looking up %q: %w", term, err)
			}
			fetched[i] = list
			return nil
		})
	}
	err := g.Wait()
	lookupSpan.End()
	if err != nil {
		return nil, err
	}

	byTerm := make(map[string]index.PostingList, len(distinct))
	for i, term := range distinct {
		byTerm[term] = fetched[i]
	}
	lists := make([]index.PostingList, len(plan.Terms))
	for i, term := range plan.Terms {
		lists[i] = byTerm[term]
	}

	hits := ranker.Aggregate(lists)
	span.SetAttr("candidates", len(hits))
	if len(hits) == 0 {
		return results, nil
	}

	ids := make([]catalog.BookID, len(hits))
	for i, h := range hits {
		ids[i] = h.BookID
	}
	_, metaSpan := tracing.Start(ctx, "metadata")
	meta, err := e.store.FindMetadataByIDs(ctx, ids)
	metaSpan.End()
	if err != nil {
		return nil, fmt.Errorf("resolving metadata: %w", err)
	}

	missing := 0
	for _, h := range hits {
		header, ok := meta[h.BookID]
		if !ok {
			missing++
			e.logger.Warn("matched book has no metadata, dropping", "book_id", h.BookID)
			continue
		}
		if !filters.Match(header) {
			continue
		}
		results = append(results, catalog.RankedResult{Header: header, Score: h.Score})
	}

	e.logger.Debug("query executed",
		"query", plan.RawQuery,
		"terms", plan.Terms,
		"candidates", len(hits),
		"missing_metadata", missing,
		"results", len(results),
	)
	return results, nil
}

func uniqueTerms(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
