// Package catalog defines the book-level types shared by every pipeline
// stage: identifiers, header metadata, ranked search results and the
// index-complete event schema.
package catalog

import (
	"strconv"
	"time"
)

// BookID identifies one source text. Valid ids are positive; 0 means the id
// could not be parsed and must never reach storage.
type BookID int64

func (id BookID) Valid() bool { return id > 0 }

func (id BookID) String() string { return strconv.FormatInt(int64(id), 10) }

// ParseBookID parses a decimal id. It returns 0 for anything that is not a
// positive integer.
func ParseBookID(s string) BookID {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0
	}
	return BookID(n)
}

// Header is the metadata extracted from a book's header block. Missing
// fields are left empty.
type Header struct {
	ID       BookID `json:"id"`
	Title    string `json:"title"`
	Author   string `json:"author"`
	Language string `json:"language"`
	Year     int    `json:"year,omitempty"`
}

// RankedResult is one query match joined with its metadata.
type RankedResult struct {
	Header
	Score float64 `json:"score"`
}

// IndexEvent is published after a book has been written to the index.
type IndexEvent struct {
	BookID    BookID    `json:"book_id"`
	Title     string    `json:"title"`
	Terms     int       `json:"terms"`
	LatencyMs int64     `json:"latency_ms"`
	IndexedAt time.Time `json:"indexed_at"`
}
