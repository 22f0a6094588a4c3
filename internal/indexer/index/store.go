// Package index holds the inverted index and the per-book metadata records
// the query engine reads from.
package index

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/catalog"
)

// Store is the index capability used by the pipeline. PostgresStore is the
// production implementation; MemoryIndex serves tests and local runs.
type Store interface {
	// IndexDocument upserts the header and replaces the book's postings
	// with terms. Re-indexing a book overwrites its previous entry.
	IndexDocument(ctx context.Context, header catalog.Header, terms TermWeights) error
	// LookupTerm returns the term's postings; unknown terms yield an
	// empty list.
	LookupTerm(ctx context.Context, term string) (PostingList, error)
	SaveMetadata(ctx context.Context, header catalog.Header) error
	// FindMetadataByIDs resolves headers in one batch. Ids with no record
	// are absent from the result.
	FindMetadataByIDs(ctx context.Context, ids []catalog.BookID) (map[catalog.BookID]catalog.Header, error)
	Stats(ctx context.Context) (Stats, error)
}
