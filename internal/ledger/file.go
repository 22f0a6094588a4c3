package ledger

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/config"
)

// FileLedger keeps one newline-delimited id file per stage. Appends use
// O_APPEND so a single short line is written atomically; there is no
// cross-process locking.
type FileLedger struct {
	paths  map[Stage]string
	logger *slog.Logger
}

func NewFileLedger(cfg config.LedgerConfig) (*FileLedger, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}
	return &FileLedger{
		paths: map[Stage]string{
			Downloaded: filepath.Join(cfg.Dir, cfg.DownloadedFile),
			Indexed:    filepath.Join(cfg.Dir, cfg.IndexedFile),
		},
		logger: slog.Default().With("component", "ledger"),
	}, nil
}

func (l *FileLedger) path(stage Stage) (string, error) {
	p, ok := l.paths[stage]
	if !ok {
		return "", fmt.Errorf("unknown stage %q", stage)
	}
	return p, nil
}

func (l *FileLedger) Record(ctx context.Context, id catalog.BookID, stage Stage) error {
	if !id.Valid() {
		return fmt.Errorf("recording book %d: invalid id", id)
	}
	path, err := l.path(stage)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s ledger: %w", stage, err)
	}
	if _, err := f.WriteString(id.String() + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("appending to %s ledger: %w", stage, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s ledger: %w", stage, err)
	}
	l.logger.Debug("stage recorded", "book_id", id, "stage", stage)
	return nil
}

func (l *FileLedger) IsRecorded(ctx context.Context, id catalog.BookID, stage Stage) (bool, error) {
	found := false
	err := l.scan(stage, func(entry catalog.BookID) bool {
		if entry == id {
			found = true
			return false
		}
		return true
	})
	return found, err
}

func (l *FileLedger) Count(ctx context.Context, stage Stage) (int, error) {
	n := 0
	err := l.scan(stage, func(catalog.BookID) bool {
		n++
		return true
	})
	return n, err
}

func (l *FileLedger) List(ctx context.Context, stage Stage) ([]catalog.BookID, error) {
	var ids []catalog.BookID
	err := l.scan(stage, func(id catalog.BookID) bool {
		ids = append(ids, id)
		return true
	})
	return ids, err
}

// scan calls fn for every well-formed entry until fn returns false. A
// missing file is an empty ledger; malformed lines are skipped.
func (l *FileLedger) scan(stage Stage, fn func(catalog.BookID) bool) error {
	path, err := l.path(stage)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("opening %s ledger: %w", stage, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		n, err := strconv.ParseInt(line, 10, 64)
		if err != nil || n <= 0 {
			l.logger.Warn("skipping malformed ledger line", "stage", stage, "line", lineNo)
			continue
		}
		if !fn(catalog.BookID(n)) {
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading %s ledger: %w", stage, err)
	}
	return nil
}
