package acquisition

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/indexer/locator"
	apperrors "github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/errors"
)

const (
	startMarker = "*** START OF"
	endMarker   = "*** END OF"
	maxBookSize = 64 << 20
)

// Downloader fetches plain-text books and writes them into the datalake.
type Downloader struct {
	sourceURL string
	root      string
	client    *http.Client
	now       func() time.Time
}

func NewDownloader(sourceURL, root string, timeout time.Duration) *Downloader {
	return &Downloader{
		sourceURL: sourceURL,
		root:      root,
		client:    &http.Client{Timeout: timeout},
		now:       time.Now,
	}
}

// URL expands the source template; every %d becomes the id.
func (d *Downloader) URL(id catalog.BookID) string {
	n := strings.Count(d.sourceURL, "%d")
	args := make([]any, n)
	for i := range args {
		args[i] = int64(id)
	}
	return fmt.Sprintf(d.sourceURL, args...)
}

// Download fetches the book, splits it and writes both sections. It
// returns the directory the files were written to.
func (d *Downloader) Download(ctx context.Context, id catalog.BookID) (string, error) {
	text, err := d.fetch(ctx, id)
	if err != nil {
		return "", err
	}
	header, body, err := Split(text)
	if err != nil {
		return "", fmt.Errorf("splitting book %d: %w", id, err)
	}

	now := d.now().UTC()
	dir := filepath.Join(d.root, now.Format("20060102"), now.Format("15"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating datalake directory: %w", err)
	}
	// Body first so the header's presence implies a complete book.
	if err := writeAtomic(filepath.Join(dir, locator.FileName(id, locator.SectionBody)), body); err != nil {
		return "", err
	}
	if err := writeAtomic(filepath.Join(dir, locator.FileName(id, locator.SectionHeader)), header); err != nil {
		return "", err
	}
	return dir, nil
}

func (d *Downloader) fetch(ctx context.Context, id catalog.BookID) (string, error) {
	url := d.URL(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: fetching %s: %v", apperrors.ErrUpstream, url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", apperrors.NotFound("book %d not available at source", id)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return "", fmt.Errorf("%w: fetching %s returned %d", apperrors.ErrUpstream, url, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBookSize))
	if err != nil {
		return "", fmt.Errorf("%w: reading %s: %v", apperrors.ErrUpstream, url, err)
	}
	return string(data), nil
}

// Split separates the header block from the body. The header ends at the
// line holding the start marker; the body ends before the end marker line,
// or at end of text when there is none.
func Split(text string) (header, body string, err error) {
	start := strings.Index(text, startMarker)
	if start < 0 {
		return "", "", fmt.Errorf("%w: start marker not found", apperrors.ErrUpstream)
	}
	header = text[:lineStart(text, start)]

	rest := text[start:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	} else {
		rest = ""
	}
	if end := strings.Index(rest, endMarker); end >= 0 {
		rest = rest[:lineStart(rest, end)]
	}
	return strings.TrimSpace(header) + "\n", strings.TrimSpace(rest) + "\n", nil
}

func lineStart(s string, i int) int {
	return strings.LastIndexByte(s[:i], '\n') + 1
}

func writeAtomic(path, content string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("renaming into %s: %w", path, err)
	}
	return nil
}
