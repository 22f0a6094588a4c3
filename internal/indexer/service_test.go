package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/indexer/locator"
	apperrors "github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/metrics"
)

const header = "Title: Moby-Dick\nAuthor: Herman Melville\nRelease Date: December 25, 2008 [EBook #2701]\nLanguage: English\n"

const body = "Call me Ishmael. The whale, the WHALE! A ship upon the sea."

type recordingPublisher struct {
	events []kafka.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, e kafka.Event) error {
	p.events = append(p.events, e)
	return p.err
}

func writeBook(t *testing.T, root string, id catalog.BookID, header, body string) {
	t.Helper()
	dir := filepath.Join(root, "20240501", "09")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, locator.FileName(id, locator.SectionHeader)), []byte(header), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, locator.FileName(id, locator.SectionBody)), []byte(body), 0o644))
}

func TestIndexBook_FrequencyWeighting(t *testing.T) {
	root := t.TempDir()
	writeBook(t, root, 2701, header, body)

	store := index.NewMemoryIndex()
	pub := &recordingPublisher{}
	m := metrics.New(prometheus.NewRegistry())
	svc := NewService(locator.New([]string{root}, 3), store, WeightFrequency, pub, m)

	res, err := svc.IndexBook(context.Background(), 2701)
	require.NoError(t, err)
	assert.Equal(t, "Moby-Dick", res.Header.Title)
	assert.Equal(t, 5, res.Terms) // call ishmael whale ship sea

	list, err := store.LookupTerm(context.Background(), "whale")
	require.NoError(t, err)
	assert.Equal(t, index.PostingList{{BookID: 2701, Weight: 2}}, list)

	meta, err := store.FindMetadataByIDs(context.Background(), []catalog.BookID{2701})
	require.NoError(t, err)
	assert.Equal(t, "Herman Melville", meta[2701].Author)

	require.Len(t, pub.events, 1)
	assert.Equal(t, "2701", pub.events[0].Key)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BooksIndexedTotal))
}

func TestIndexBook_PresenceWeighting(t *testing.T) {
	root := t.TempDir()
	writeBook(t, root, 2701, header, body)
	store := index.NewMemoryIndex()
	svc := NewService(locator.New([]string{root}, 3), store, WeightPresence, nil, nil)

	_, err := svc.IndexBook(context.Background(), 2701)
	require.NoError(t, err)

	list, err := store.LookupTerm(context.Background(), "whale")
	require.NoError(t, err)
	assert.Equal(t, index.PostingList{{BookID: 2701, Weight: 1}}, list)
}

func TestIndexBook_RequestedIDWinsOverHeader(t *testing.T) {
	root := t.TempDir()
	writeBook(t, root, 15, "Title: Untitled\n", "harpoon")
	store := index.NewMemoryIndex()
	svc := NewService(locator.New([]string{root}, 3), store, WeightFrequency, nil, nil)

	res, err := svc.IndexBook(context.Background(), 15)
	require.NoError(t, err)
	assert.Equal(t, catalog.BookID(15), res.Header.ID)
}

func TestIndexBook_NotFound(t *testing.T) {
	store := index.NewMemoryIndex()
	m := metrics.New(prometheus.NewRegistry())
	svc := NewService(locator.New([]string{t.TempDir()}, 3), store, WeightFrequency, nil, m)

	_, err := svc.IndexBook(context.Background(), 99)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexFailuresTotal.WithLabelValues("not_found")))

	st, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, st.Books)
}

func TestIndexBook_InvalidID(t *testing.T) {
	svc := NewService(locator.New(nil, 3), index.NewMemoryIndex(), WeightFrequency, nil, nil)
	_, err := svc.IndexBook(context.Background(), 0)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestIndexBook_PublishFailureIsNotFatal(t *testing.T) {
	root := t.TempDir()
	writeBook(t, root, 3, header, body)
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewService(locator.New([]string{root}, 3), index.NewMemoryIndex(), WeightFrequency, pub, nil)

	_, err := svc.IndexBook(context.Background(), 3)
	assert.NoError(t, err)
	assert.Len(t, pub.events, 1)
}
