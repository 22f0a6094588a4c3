package index

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/postgres"
)

// Schema is the DDL PostgresStore depends on.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS books (
		id         BIGINT PRIMARY KEY,
		title      TEXT NOT NULL DEFAULT '',
		author     TEXT NOT NULL DEFAULT '',
		language   TEXT NOT NULL DEFAULT '',
		year       INTEGER NOT NULL DEFAULT 0,
		indexed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS postings (
		term    TEXT NOT NULL,
		book_id BIGINT NOT NULL,
		weight  DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (term, book_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_postings_book ON postings (book_id)`,
}

const upsertBook = `
	INSERT INTO books (id, title, author, language, year, indexed_at)
	VALUES ($1, $2, $3, $4, $5, NOW())
	ON CONFLICT (id) DO UPDATE SET
		title = EXCLUDED.title,
		author = EXCLUDED.author,
		language = EXCLUDED.language,
		year = EXCLUDED.year,
		indexed_at = EXCLUDED.indexed_at`

// PostgresStore keeps postings and metadata in two tables.
type PostgresStore struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewPostgresStore(db *postgres.Client) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: slog.Default().With("component", "postgres-index"),
	}
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return s.db.EnsureSchema(ctx, Schema...)
}

func (s *PostgresStore) IndexDocument(ctx context.Context, header catalog.Header, terms TermWeights) error {
	if !header.ID.Valid() {
		return fmt.Errorf("indexing book %d: invalid id", header.ID)
	}
	words := make([]string, 0, len(terms))
	weights := make([]float64, 0, len(terms))
	for term, w := range terms {
		words = append(words, term)
		weights = append(weights, w)
	}

	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		if err := execUpsertBook(ctx, tx, header); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM postings WHERE book_id = $1`, int64(header.ID)); err != nil {
			return fmt.Errorf("clearing postings: %w", err)
		}
		if len(words) == 0 {
			return nil
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO postings (term, book_id, weight)
			SELECT t.term, $1, t.weight
			FROM unnest($2::text[], $3::double precision[]) AS t(term, weight)`,
			int64(header.ID), pq.Array(words), pq.Array(weights),
		)
		if err != nil {
			return fmt.Errorf("inserting postings: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("indexing book %d: %w", header.ID, err)
	}
	s.logger.Debug("book stored", "book_id", header.ID, "terms", len(words))
	return nil
}

func execUpsertBook(ctx context.Context, tx *sql.Tx, h catalog.Header) error {
	_, err := tx.ExecContext(ctx, upsertBook, int64(h.ID), h.Title, h.Author, h.Language, h.Year)
	if err != nil {
		return fmt.Errorf("upserting book: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupTerm(ctx context.Context, term string) (PostingList, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT book_id, weight FROM postings WHERE term = $1 ORDER BY book_id`, term)
	if err != nil {
		return nil, fmt.Errorf("looking up term %q: %w", term, err)
	}
	defer rows.Close()

	list := make(PostingList, 0)
	for rows.Next() {
		var id int64
		var p Posting
		if err := rows.Scan(&id, &p.Weight); err != nil {
			return nil, fmt.Errorf("scanning posting: %w", err)
		}
		p.BookID = catalog.BookID(id)
		list = append(list, p)
	}
	return list, rows.Err()
}

func (s *PostgresStore) SaveMetadata(ctx context.Context, header catalog.Header) error {
	if !header.ID.Valid() {
		return fmt.Errorf("saving metadata for book %d: invalid id", header.ID)
	}
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		return execUpsertBook(ctx, tx, header)
	})
}

func (s *PostgresStore) FindMetadataByIDs(ctx context.Context, ids []catalog.BookID) (map[catalog.BookID]catalog.Header, error) {
	out := make(map[catalog.BookID]catalog.Header, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	raw := make([]int64, len(ids))
	for i, id := range ids {
		raw[i] = int64(id)
	}
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, title, author, language, year FROM books WHERE id = ANY($1)`, pq.Array(raw))
	if err != nil {
		return nil, fmt.Errorf("finding metadata: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var h catalog.Header
		if err := rows.Scan(&id, &h.Title, &h.Author, &h.Language, &h.Year); err != nil {
			return nil, fmt.Errorf("scanning metadata: %w", err)
		}
		h.ID = catalog.BookID(id)
		out[h.ID] = h
	}
	return out, rows.Err()
}

func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM books), (SELECT COUNT(DISTINCT term) FROM postings)`,
	).Scan(&st.Books, &st.Terms)
	if err != nil {
		return Stats{}, fmt.Errorf("reading index stats: %w", err)
	}
	return st, nil
}
