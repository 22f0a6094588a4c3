package index

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/postgres"
)

func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()
	moby := catalog.Header{ID: 2701, Title: "Moby-Dick", Author: "Herman Melville", Language: "English", Year: 2008}

	require.NoError(t, s.IndexDocument(ctx, moby, TermWeights{"whale": 3, "ship": 1}))
	require.NoError(t, s.IndexDocument(ctx, catalog.Header{ID: 1342, Title: "Pride and Prejudice"}, TermWeights{"ship": 2}))

	list, err := s.LookupTerm(ctx, "ship")
	require.NoError(t, err)
	assert.Equal(t, PostingList{{BookID: 1342, Weight: 2}, {BookID: 2701, Weight: 1}}, list)

	list, err = s.LookupTerm(ctx, "kraken")
	require.NoError(t, err)
	assert.Empty(t, list)

	// Re-indexing replaces postings and metadata.
	moby.Title = "Moby Dick; or, The Whale"
	require.NoError(t, s.IndexDocument(ctx, moby, TermWeights{"whale": 5}))

	list, err = s.LookupTerm(ctx, "ship")
	require.NoError(t, err)
	assert.Equal(t, PostingList{{BookID: 1342, Weight: 2}}, list)

	list, err = s.LookupTerm(ctx, "whale")
	require.NoError(t, err)
	assert.Equal(t, PostingList{{BookID: 2701, Weight: 5}}, list)

	meta, err := s.FindMetadataByIDs(ctx, []catalog.BookID{2701, 1342, 404})
	require.NoError(t, err)
	require.Len(t, meta, 2)
	assert.Equal(t, "Moby Dick; or, The Whale", meta[2701].Title)
	assert.Equal(t, 2008, meta[2701].Year)
	_, ok := meta[404]
	assert.False(t, ok)

	require.NoError(t, s.SaveMetadata(ctx, catalog.Header{ID: 84, Title: "Frankenstein"}))
	meta, err = s.FindMetadataByIDs(ctx, []catalog.BookID{84})
	require.NoError(t, err)
	assert.Equal(t, "Frankenstein", meta[84].Title)

	assert.Error(t, s.IndexDocument(ctx, catalog.Header{}, TermWeights{"x": 1}))
	assert.Error(t, s.SaveMetadata(ctx, catalog.Header{}))
}

func TestMemoryIndex(t *testing.T) {
	m := NewMemoryIndex()
	exerciseStore(t, m)

	st, err := m.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{Books: 3, Terms: 2}, st)
}

func TestMemoryIndex_EmptyMetadataLookup(t *testing.T) {
	meta, err := NewMemoryIndex().FindMetadataByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, meta)
}

func TestPostgresStore(t *testing.T) {
	db := skipIfNoPostgres(t)
	s := NewPostgresStore(db)
	ctx := context.Background()
	require.NoError(t, s.Migrate(ctx))

	_, err := db.DB.ExecContext(ctx, `TRUNCATE books, postings`)
	require.NoError(t, err)

	exerciseStore(t, s)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Books: 3, Terms: 2}, st)
}

func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	db, err := postgres.New(config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            envOrDefaultInt("TEST_POSTGRES_PORT", 5432),
		Database:        envOrDefault("TEST_POSTGRES_DB", "bookpipeline_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "bookpipeline"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		t.Skipf("skipping: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
