package coordinator

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/ledger"
	apperrors "github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/metrics"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return nil
}

type fakeAcquirer struct {
	acquired   []catalog.BookID
	acquireErr error
	// readyAfter is the number of status checks before the book reports
	// ready; negative means never.
	readyAfter int
	checks     int
	failed     bool
}

func (f *fakeAcquirer) Acquire(ctx context.Context, id catalog.BookID) error {
	f.acquired = append(f.acquired, id)
	return f.acquireErr
}

func (f *fakeAcquirer) Status(ctx context.Context, id catalog.BookID) (Readiness, error) {
	f.checks++
	if f.failed {
		return Readiness{Failed: true}, nil
	}
	return Readiness{Ready: f.readyAfter >= 0 && f.checks >= f.readyAfter}, nil
}

type fakeIndexer struct {
	indexed []catalog.BookID
	err     error
}

func (f *fakeIndexer) Index(ctx context.Context, id catalog.BookID) error {
	f.indexed = append(f.indexed, id)
	return f.err
}

func seed(t *testing.T, l ledger.Ledger, stage ledger.Stage, ids ...catalog.BookID) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, l.Record(context.Background(), id, stage))
	}
}

func newTestCoordinator(l ledger.Ledger, a Acquirer, ix Indexer, opts Options) (*Coordinator, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	opts.Clock = clock
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(1, 2))
	}
	return New(l, a, ix, opts), clock
}

func TestRun_EqualCountsChooseAcquisition(t *testing.T) {
	l := ledger.NewMemoryLedger()
	seed(t, l, ledger.Downloaded, 1, 2, 3, 4, 5)
	seed(t, l, ledger.Indexed, 1, 2, 3, 4, 5)

	acq := &fakeAcquirer{readyAfter: 1}
	ix := &fakeIndexer{}
	c, _ := newTestCoordinator(l, acq, ix, Options{MaxBookID: 1000})

	out, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ActionDownloaded, out.Action)
	assert.Empty(t, ix.indexed, "index branch must not run without backlog")
	require.Len(t, acq.acquired, 1)
	assert.Equal(t, out.BookID, acq.acquired[0])

	ok, err := l.IsRecorded(context.Background(), out.BookID, ledger.Downloaded)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRun_BacklogIndexesFirstOutstanding(t *testing.T) {
	l := ledger.NewMemoryLedger()
	seed(t, l, ledger.Downloaded, 10, 11, 12)
	seed(t, l, ledger.Indexed, 10)

	acq := &fakeAcquirer{}
	ix := &fakeIndexer{}
	c, _ := newTestCoordinator(l, acq, ix, Options{})

	out, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ActionIndexed, out.Action)
	assert.Equal(t, catalog.BookID(11), out.BookID)
	assert.Equal(t, 2, out.Backlog)
	assert.Equal(t, []catalog.BookID{11}, ix.indexed)
	assert.Empty(t, acq.acquired)

	ok, err := l.IsRecorded(context.Background(), 11, ledger.Indexed)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRun_IndexFailureDoesNotRecord(t *testing.T) {
	l := ledger.NewMemoryLedger()
	seed(t, l, ledger.Downloaded, 7)

	ix := &fakeIndexer{err: apperrors.ErrUpstream}
	c, _ := newTestCoordinator(l, &fakeAcquirer{}, ix, Options{})

	_, err := c.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrUpstream))

	n, err := l.Count(context.Background(), ledger.Indexed)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRun_TimeoutLeavesLedgerUntouched(t *testing.T) {
	l := ledger.NewMemoryLedger()
	acq := &fakeAcquirer{readyAfter: -1}
	c, clock := newTestCoordinator(l, acq, &fakeIndexer{}, Options{Candidate: 99})
	start := clock.Now()

	out, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ActionTimedOut, out.Action)
	assert.Equal(t, catalog.BookID(99), out.BookID)
	assert.Equal(t, 60*time.Second, clock.Now().Sub(start))
	assert.Equal(t, 60, acq.checks)

	n, err := l.Count(context.Background(), ledger.Downloaded)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRun_AcquireFailureIsFatal(t *testing.T) {
	l := ledger.NewMemoryLedger()
	acq := &fakeAcquirer{acquireErr: apperrors.ErrUpstream}
	c, _ := newTestCoordinator(l, acq, &fakeIndexer{}, Options{Candidate: 5})

	_, err := c.Run(context.Background())
	require.Error(t, err)
	assert.Zero(t, acq.checks)
}

func TestRun_FailedDownloadAbortsPoll(t *testing.T) {
	l := ledger.NewMemoryLedger()
	acq := &fakeAcquirer{failed: true}
	c, _ := newTestCoordinator(l, acq, &fakeIndexer{}, Options{Candidate: 5})

	_, err := c.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrUpstream))
	assert.Equal(t, 1, acq.checks)
}

func TestRun_DuplicateEntriesFallThroughToAcquisition(t *testing.T) {
	l := ledger.NewMemoryLedger()
	seed(t, l, ledger.Downloaded, 3, 3)
	seed(t, l, ledger.Indexed, 3)

	acq := &fakeAcquirer{readyAfter: 2}
	ix := &fakeIndexer{}
	c, _ := newTestCoordinator(l, acq, ix, Options{Candidate: 4})

	out, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ActionDownloaded, out.Action)
	assert.Equal(t, 1, out.Backlog)
	assert.Empty(t, ix.indexed)
}

func TestRun_CandidateOverrideAlreadyDownloaded(t *testing.T) {
	l := ledger.NewMemoryLedger()
	seed(t, l, ledger.Downloaded, 4)
	seed(t, l, ledger.Indexed, 4)

	c, _ := newTestCoordinator(l, &fakeAcquirer{}, &fakeIndexer{}, Options{Candidate: 4})
	_, err := c.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestRun_RandomDrawSkipsDownloaded(t *testing.T) {
	l := ledger.NewMemoryLedger()
	seed(t, l, ledger.Downloaded, 1)
	seed(t, l, ledger.Indexed, 1)

	acq := &fakeAcquirer{readyAfter: 1}
	c, _ := newTestCoordinator(l, acq, &fakeIndexer{}, Options{MaxBookID: 2, MaxDraws: 200})

	out, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, catalog.BookID(2), out.BookID)
}

func TestRun_NoCandidateWhenSpaceExhausted(t *testing.T) {
	l := ledger.NewMemoryLedger()
	seed(t, l, ledger.Downloaded, 1)
	seed(t, l, ledger.Indexed, 1)

	c, _ := newTestCoordinator(l, &fakeAcquirer{}, &fakeIndexer{}, Options{MaxBookID: 1, MaxDraws: 5})
	_, err := c.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoCandidate))
}

func TestRun_RecordsMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	l := ledger.NewMemoryLedger()
	seed(t, l, ledger.Downloaded, 8)

	c, _ := newTestCoordinator(l, &fakeAcquirer{}, &fakeIndexer{}, Options{Metrics: m})
	_, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CoordinatorRuns.WithLabelValues("indexed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LedgerBacklog))
}

// orderedLedger fails the test if a book is recorded Indexed before it was
// recorded Downloaded.
type orderedLedger struct {
	*ledger.MemoryLedger
	t *testing.T
}

func (o *orderedLedger) Record(ctx context.Context, id catalog.BookID, stage ledger.Stage) error {
	if stage == ledger.Indexed {
		downloaded, err := o.IsRecorded(ctx, id, ledger.Downloaded)
		require.NoError(o.t, err)
		assert.True(o.t, downloaded, "book %d indexed before it was downloaded", id)
	}
	return o.MemoryLedger.Record(ctx, id, stage)
}

func TestRun_RepeatedRunsKeepStageOrder(t *testing.T) {
	l := &orderedLedger{MemoryLedger: ledger.NewMemoryLedger(), t: t}
	seed(t, l, ledger.Downloaded, 4)

	acq := &fakeAcquirer{readyAfter: 1}
	ix := &fakeIndexer{}
	c, _ := newTestCoordinator(l, acq, ix, Options{MaxBookID: 50})

	var actions []Action
	for range 7 {
		out, err := c.Run(context.Background())
		require.NoError(t, err)
		actions = append(actions, out.Action)
	}

	assert.Equal(t, []Action{
		ActionIndexed, ActionDownloaded, ActionIndexed, ActionDownloaded,
		ActionIndexed, ActionDownloaded, ActionIndexed,
	}, actions)

	downloaded, err := l.List(context.Background(), ledger.Downloaded)
	require.NoError(t, err)
	indexed, err := l.List(context.Background(), ledger.Indexed)
	require.NoError(t, err)
	assert.Equal(t, downloaded, indexed, "every download indexed exactly once, in order")
	assert.Equal(t, ix.indexed, indexed)

	outstanding, err := ledger.Outstanding(context.Background(), l)
	require.NoError(t, err)
	assert.Empty(t, outstanding)
}
