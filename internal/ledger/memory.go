package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/catalog"
)

// MemoryLedger is an in-process Ledger.
type MemoryLedger struct {
	mu      sync.RWMutex
	entries map[Stage][]catalog.BookID
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{entries: make(map[Stage][]catalog.BookID)}
}

func (m *MemoryLedger) Record(ctx context.Context, id catalog.BookID, stage Stage) error {
	if _, err := ParseStage(string(stage)); err != nil {
		return err
	}
	if !id.Valid() {
		return fmt.Errorf("recording book %d: invalid id", id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[stage] = append(m.entries[stage], id)
	return nil
}

func (m *MemoryLedger) IsRecorded(ctx context.Context, id catalog.BookID, stage Stage) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, entry := range m.entries[stage] {
		if entry == id {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryLedger) Count(ctx context.Context, stage Stage) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries[stage]), nil
}

func (m *MemoryLedger) List(ctx context.Context, stage Stage) ([]catalog.BookID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]catalog.BookID, len(m.entries[stage]))
	copy(out, m.entries[stage])
	return out, nil
}
