// Package ledger records which books have completed each pipeline stage.
// Ledgers are append-only: entries are never removed and duplicates are
// tolerated on read.
package ledger

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/catalog"
)

// Stage is one tracked phase of the pipeline.
type Stage string

const (
	Downloaded Stage = "downloaded"
	Indexed    Stage = "indexed"
)

// Stages lists the tracked stages in pipeline order.
func Stages() []Stage { return []Stage{Downloaded, Indexed} }

func ParseStage(s string) (Stage, error) {
	switch Stage(s) {
	case Downloaded, Indexed:
		return Stage(s), nil
	}
	return "", fmt.Errorf("unknown stage %q", s)
}

// Ledger is the per-stage record of completed work.
//
// Count returns the number of entries, not distinct ids; it is only a cheap
// proxy for how far one stage is ahead of another.
type Ledger interface {
	Record(ctx context.Context, id catalog.BookID, stage Stage) error
	IsRecorded(ctx context.Context, id catalog.BookID, stage Stage) (bool, error)
	Count(ctx context.Context, stage Stage) (int, error)
	List(ctx context.Context, stage Stage) ([]catalog.BookID, error)
}

// Outstanding returns the books recorded as Downloaded but not Indexed, in
// download order and without duplicates.
func Outstanding(ctx context.Context, l Ledger) ([]catalog.BookID, error) {
	downloaded, err := l.List(ctx, Downloaded)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", Downloaded, err)
	}
	indexed, err := l.List(ctx, Indexed)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", Indexed, err)
	}
	done := make(map[catalog.BookID]struct{}, len(indexed))
	for _, id := range indexed {
		done[id] = struct{}{}
	}
	out := make([]catalog.BookID, 0)
	for _, id := range downloaded {
		if _, ok := done[id]; ok {
			continue
		}
		done[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

// Backlog is Count(Downloaded) - Count(Indexed).
func Backlog(ctx context.Context, l Ledger) (int, error) {
	downloaded, err := l.Count(ctx, Downloaded)
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", Downloaded, err)
	}
	indexed, err := l.Count(ctx, Indexed)
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", Indexed, err)
	}
	return downloaded - indexed, nil
}
