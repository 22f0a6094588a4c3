// Package indexer turns a downloaded book into index entries: it locates
// the raw files in the datalake, extracts header metadata, tokenizes the
// body and writes postings and metadata to the index store.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/indexer/locator"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/indexer/processor"
	apperrors "github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/tracing"
)

// Weighting selects how a term's posting weight is derived.
type Weighting string

const (
	// WeightFrequency weights a posting by the term's occurrence count.
	WeightFrequency Weighting = "frequency"
	// WeightPresence gives every posting weight 1.
	WeightPresence Weighting = "presence"
)

// Source reads a book section from wherever raw text is kept.
type Source interface {
	Read(id catalog.BookID, section locator.Section) (string, error)
}

// Publisher announces completed index writes.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Result summarises one IndexBook call.
type Result struct {
	Header catalog.Header `json:"header"`
	Terms  int            `json:"terms"`
}

type Service struct {
	source    Source
	store     index.Store
	weighting Weighting
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewService wires the service. publisher and m may be nil.
func NewService(source Source, store index.Store, weighting Weighting, publisher Publisher, m *metrics.Metrics) *Service {
	if weighting == "" {
		weighting = WeightFrequency
	}
	return &Service{
		source:    source,
		store:     store,
		weighting: weighting,
		publisher: publisher,
		metrics:   m,
		logger:    slog.Default().With("component", "indexer"),
	}
}

// IndexBook indexes a single book. Indexing is idempotent: a second call
// overwrites the first.
func (s *Service) IndexBook(ctx context.Context, id catalog.BookID) (Result, error) {
	start := time.Now()
	if !id.Valid() {
		s.fail("invalid_id")
		return Result{}, apperrors.InvalidInput("invalid book id %d", id)
	}

	ctx, span := tracing.Start(ctx, "index_book")
	span.SetAttr("book_id", int64(id))
	defer func() {
		span.End()
		span.Log(s.logger)
	}()

	_, readSpan := tracing.Start(ctx, "read")
	rawHeader, err := s.source.Read(id, locator.SectionHeader)
	if err != nil {
		readSpan.End()
		s.fail(reason(err))
		return Result{}, fmt.Errorf("reading header of book %d: %w", id, err)
	}
	body, err := s.source.Read(id, locator.SectionBody)
	readSpan.End()
	if err != nil {
		s.fail(reason(err))
		return Result{}, fmt.Errorf("reading body of book %d: %w", id, err)
	}

	header := processor.ExtractHeader(rawHeader)
	if header.ID != id {
		if header.ID.Valid() {
			s.logger.Warn("header id differs from requested id, keeping requested",
				"book_id", id,
				"header_id", header.ID,
			)
		}
		header.ID = id
	}

	_, tokenSpan := tracing.Start(ctx, "tokenize")
	terms := s.weigh(body)
	tokenSpan.End()

	_, storeSpan := tracing.Start(ctx, "store")
	err = s.store.IndexDocument(ctx, header, terms)
	storeSpan.End()
	if err != nil {
		s.fail("store")
		return Result{}, fmt.Errorf("storing book %d: %w", id, err)
	}

	latency := time.Since(start)
	if s.metrics != nil {
		s.metrics.BooksIndexedTotal.Inc()
		s.metrics.TermsPerBook.Observe(float64(len(terms)))
	}
	s.logger.Info("book indexed",
		"book_id", id,
		"title", header.Title,
		"terms", len(terms),
		"latency_ms", latency.Milliseconds(),
	)
	s.announce(ctx, catalog.IndexEvent{
		BookID:    id,
		Title:     header.Title,
		Terms:     len(terms),
		LatencyMs: latency.Milliseconds(),
		IndexedAt: time.Now().UTC(),
	})
	return Result{Header: header, Terms: len(terms)}, nil
}

func (s *Service) weigh(body string) index.TermWeights {
	freqs := processor.TermFrequencies(body)
	weights := make(index.TermWeights, len(freqs))
	for term, n := range freqs {
		if s.weighting == WeightPresence {
			weights[term] = 1
			continue
		}
		weights[term] = float64(n)
	}
	return weights
}

// announce publishes the index-complete event. The index write has already
// succeeded, so a publish failure is logged and not returned.
func (s *Service) announce(ctx context.Context, event catalog.IndexEvent) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(ctx, kafka.Event{Key: event.BookID.String(), Value: event})
	if err != nil {
		s.logger.Warn("failed to publish index event", "book_id", event.BookID, "error", err)
	}
}

func (s *Service) fail(reason string) {
	if s.metrics != nil {
		s.metrics.IndexFailuresTotal.WithLabelValues(reason).Inc()
	}
}

func reason(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperrors.ErrInvalidInput):
		return "invalid_id"
	default:
		return "io"
	}
}
