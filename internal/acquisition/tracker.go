package acquisition

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/catalog"
)

// State is the lifecycle of one download request.
type State string

const (
	StatePending     State = "pending"
	StateDownloading State = "downloading"
	StateDownloaded  State = "downloaded"
	StateFailed      State = "failed"
)

// Status is what GET /acquire/status/{id} reports.
type Status struct {
	BookID     catalog.BookID `json:"book_id"`
	State      State          `json:"status"`
	Downloaded bool           `json:"downloaded"`
	Error      string         `json:"error,omitempty"`
}

func newStatus(id catalog.BookID, state State, errMsg string) Status {
	return Status{
		BookID:     id,
		State:      state,
		Downloaded: state == StateDownloaded,
		Error:      errMsg,
	}
}

// Tracker remembers the most recent download states. Old entries are
// evicted once capacity is reached; books already on disk are still found
// through the datalake.
type Tracker struct {
	mu    sync.Mutex
	cache *lru.Cache[catalog.BookID, Status]
}

func NewTracker(capacity int) (*Tracker, error) {
	if capacity <= 0 {
		capacity = 4096
	}
	c, err := lru.New[catalog.BookID, Status](capacity)
	if err != nil {
		return nil, err
	}
	return &Tracker{cache: c}, nil
}

func (t *Tracker) Get(id catalog.BookID) (Status, bool) {
	return t.cache.Get(id)
}

func (t *Tracker) Set(id catalog.BookID, state State, errMsg string) {
	t.cache.Add(id, newStatus(id, state, errMsg))
}

// Claim marks id pending unless a download is already queued, running or
// finished. It reports whether the caller should start the download.
func (t *Tracker) Claim(id catalog.BookID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.cache.Get(id); ok && s.State != StateFailed {
		return false
	}
	t.cache.Add(id, newStatus(id, StatePending, ""))
	return true
}

func (t *Tracker) Len() int { return t.cache.Len() }
