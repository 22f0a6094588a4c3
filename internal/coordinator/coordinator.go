// Package coordinator implements the one-shot pipeline control loop. Each
// Run performs at most one unit of work: index a book that was downloaded
// but not indexed, or acquire a new book and wait for it to land.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/ledger"
	apperrors "github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/resilience"
)

// ErrNoCandidate is returned when no undownloaded id could be drawn.
var ErrNoCandidate = errors.New("no acquisition candidate available")

// Acquirer is the acquisition service as seen by the coordinator.
type Acquirer interface {
	Acquire(ctx context.Context, id catalog.BookID) error
	Status(ctx context.Context, id catalog.BookID) (Readiness, error)
}

// Indexer is the index service as seen by the coordinator.
type Indexer interface {
	Index(ctx context.Context, id catalog.BookID) error
}

type Action string

const (
	ActionIndexed    Action = "indexed"
	ActionDownloaded Action = "downloaded"
	ActionTimedOut   Action = "timed_out"
)

// Outcome describes what one Run did.
type Outcome struct {
	Action  Action
	BookID  catalog.BookID
	Backlog int
	Elapsed time.Duration
}

type Options struct {
	PollInterval    time.Duration
	DownloadTimeout time.Duration
	MaxBookID       int64
	MaxDraws        int
	// Candidate, when valid, replaces the random draw.
	Candidate catalog.BookID
	Clock     resilience.Clock
	Rand      *rand.Rand
	Metrics   *metrics.Metrics
}

type Coordinator struct {
	ledger   ledger.Ledger
	acquirer Acquirer
	indexer  Indexer
	opts     Options
	logger   *slog.Logger
}

func New(l ledger.Ledger, acquirer Acquirer, indexer Indexer, opts Options) *Coordinator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.DownloadTimeout <= 0 {
		opts.DownloadTimeout = 60 * time.Second
	}
	if opts.MaxBookID <= 0 {
		opts.MaxBookID = 70000
	}
	if opts.MaxDraws <= 0 {
		opts.MaxDraws = 100
	}
	if opts.Clock == nil {
		opts.Clock = resilience.SystemClock{}
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Coordinator{
		ledger:   l,
		acquirer: acquirer,
		indexer:  indexer,
		opts:     opts,
		logger:   slog.Default().With("component", "coordinator"),
	}
}

// Run evaluates the decision rule once. A download that does not become
// ready before the deadline yields ActionTimedOut with a nil error and no
// ledger write.
func (c *Coordinator) Run(ctx context.Context) (Outcome, error) {
	start := c.opts.Clock.Now()

	backlog, err := ledger.Backlog(ctx, c.ledger)
	if err != nil {
		return Outcome{}, fmt.Errorf("computing backlog: %w", err)
	}
	if c.opts.Metrics != nil {
		c.opts.Metrics.LedgerBacklog.Set(float64(backlog))
	}
	c.logger.Info("coordinator run started", "backlog", backlog)

	var out Outcome
	if backlog > 0 {
		id, ok, err := c.nextOutstanding(ctx)
		if err != nil {
			return Outcome{}, err
		}
		if ok {
			out, err = c.index(ctx, id)
			return c.finish(out, backlog, start, err)
		}
		// Duplicate download entries inflate the count without leaving
		// anything to index.
		c.logger.Warn("backlog reported but every downloaded book is indexed", "backlog", backlog)
	}

	out, err = c.acquire(ctx, start)
	return c.finish(out, backlog, start, err)
}

func (c *Coordinator) finish(out Outcome, backlog int, start time.Time, err error) (Outcome, error) {
	out.Backlog = backlog
	out.Elapsed = c.opts.Clock.Now().Sub(start)
	if err != nil {
		if c.opts.Metrics != nil {
			c.opts.Metrics.CoordinatorRuns.WithLabelValues("error").Inc()
		}
		return out, err
	}
	if c.opts.Metrics != nil {
		c.opts.Metrics.CoordinatorRuns.WithLabelValues(string(out.Action)).Inc()
	}
	c.logger.Info("coordinator run finished",
		"action", out.Action,
		"book_id", out.BookID,
		"elapsed_ms", out.Elapsed.Milliseconds(),
	)
	return out, nil
}

func (c *Coordinator) nextOutstanding(ctx context.Context) (catalog.BookID, bool, error) {
	outstanding, err := ledger.Outstanding(ctx, c.ledger)
	if err != nil {
		return 0, false, fmt.Errorf("finding outstanding books: %w", err)
	}
	if len(outstanding) == 0 {
		return 0, false, nil
	}
	return outstanding[0], true, nil
}

func (c *Coordinator) index(ctx context.Context, id catalog.BookID) (Outcome, error) {
	out := Outcome{BookID: id}
	c.logger.Info("requesting index", "book_id", id)
	if err := c.indexer.Index(ctx, id); err != nil {
		return out, fmt.Errorf("indexing book %d: %w", id, err)
	}
	if err := c.ledger.Record(ctx, id, ledger.Indexed); err != nil {
		return out, fmt.Errorf("recording book %d as indexed: %w", id, err)
	}
	out.Action = ActionIndexed
	return out, nil
}

func (c *Coordinator) acquire(ctx context.Context, start time.Time) (Outcome, error) {
	id, err := c.candidate(ctx)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{BookID: id}

	c.logger.Info("requesting acquisition", "book_id", id)
	if err := c.acquirer.Acquire(ctx, id); err != nil {
		return out, fmt.Errorf("acquiring book %d: %w", id, err)
	}

	poller := resilience.NewPoller("download-status", c.opts.PollInterval, start, c.opts.DownloadTimeout, c.opts.Clock)
	result, err := poller.Wait(ctx, func(ctx context.Context) (bool, error) {
		r, err := c.acquirer.Status(ctx, id)
		if err != nil {
			return false, err
		}
		if r.Failed {
			return false, fmt.Errorf("%w: acquisition service reported failure", apperrors.ErrUpstream)
		}
		return r.Ready, nil
	})
	if err != nil {
		return out, fmt.Errorf("waiting for book %d: %w", id, err)
	}

	switch result {
	case resilience.PollReady:
		if err := c.ledger.Record(ctx, id, ledger.Downloaded); err != nil {
			return out, fmt.Errorf("recording book %d as downloaded: %w", id, err)
		}
		out.Action = ActionDownloaded
	case resilience.PollTimedOut:
		c.logger.Warn("download not ready before deadline", "book_id", id, "timeout", c.opts.DownloadTimeout)
		out.Action = ActionTimedOut
	default:
		return out, fmt.Errorf("waiting for book %d: unexpected poll result %s", id, result)
	}
	return out, nil
}

// candidate returns the override id, or draws from [1, MaxBookID] until it
// finds one not yet downloaded.
func (c *Coordinator) candidate(ctx context.Context) (catalog.BookID, error) {
	if c.opts.Candidate.Valid() {
		seen, err := c.ledger.IsRecorded(ctx, c.opts.Candidate, ledger.Downloaded)
		if err != nil {
			return 0, fmt.Errorf("checking candidate %d: %w", c.opts.Candidate, err)
		}
		if seen {
			return 0, apperrors.InvalidInput("book %d is already downloaded", c.opts.Candidate)
		}
		return c.opts.Candidate, nil
	}
	for range c.opts.MaxDraws {
		id := catalog.BookID(c.opts.Rand.Int64N(c.opts.MaxBookID) + 1)
		seen, err := c.ledger.IsRecorded(ctx, id, ledger.Downloaded)
		if err != nil {
			return 0, fmt.Errorf("checking candidate %d: %w", id, err)
		}
		if !seen {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w after %d draws", ErrNoCandidate, c.opts.MaxDraws)
}
