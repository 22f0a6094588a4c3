// Package acquisition downloads raw book text into the datalake. Requests
// return immediately; the download runs in the background and its progress
// is reported through a bounded status table.
package acquisition

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/metrics"
)

// Fetcher retrieves one book into the datalake.
type Fetcher interface {
	Download(ctx context.Context, id catalog.BookID) (string, error)
}

// Lake reports whether a book is already stored.
type Lake interface {
	Exists(id catalog.BookID) bool
}

type Service struct {
	fetcher Fetcher
	lake    Lake
	tracker *Tracker
	metrics *metrics.Metrics
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService builds the service. m may be nil.
func NewService(fetcher Fetcher, lake Lake, tracker *Tracker, m *metrics.Metrics) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		fetcher: fetcher,
		lake:    lake,
		tracker: tracker,
		metrics: m,
		logger:  slog.Default().With("component", "acquisition"),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Acquire starts a background download unless the book is already stored,
// queued or in progress. Failed downloads may be retried.
func (s *Service) Acquire(id catalog.BookID) Status {
	if st, ok := s.tracker.Get(id); ok && st.State != StateFailed {
		return st
	}
	if s.lake.Exists(id) {
		s.tracker.Set(id, StateDownloaded, "")
		return newStatus(id, StateDownloaded, "")
	}
	if !s.tracker.Claim(id) {
		st, _ := s.tracker.Get(id)
		return st
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.download(id)
	}()
	return newStatus(id, StatePending, "")
}

func (s *Service) download(id catalog.BookID) {
	start := time.Now()
	s.tracker.Set(id, StateDownloading, "")
	dir, err := s.fetcher.Download(s.ctx, id)
	if err != nil {
		s.tracker.Set(id, StateFailed, err.Error())
		s.count(StateFailed)
		s.logger.Error("download failed", "book_id", id, "error", err)
		return
	}
	s.tracker.Set(id, StateDownloaded, "")
	s.count(StateDownloaded)
	s.logger.Info("book downloaded",
		"book_id", id,
		"dir", dir,
		"latency_ms", time.Since(start).Milliseconds(),
	)
}

// Status reports the book's state. ok is false when the book was never
// requested and is not in the datalake.
func (s *Service) Status(id catalog.BookID) (Status, bool) {
	if st, ok := s.tracker.Get(id); ok {
		return st, true
	}
	if s.lake.Exists(id) {
		return newStatus(id, StateDownloaded, ""), true
	}
	return Status{BookID: id, State: "unknown"}, false
}

// Close cancels in-flight downloads and waits for them to stop.
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *Service) count(state State) {
	if s.metrics != nil {
		s.metrics.AcquisitionsTotal.WithLabelValues(string(state)).Inc()
	}
}
