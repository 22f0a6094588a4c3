package index

import "github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/catalog"

// Posting is one book's entry in a term's posting list.
type Posting struct {
	BookID catalog.BookID
	Weight float64
}

// PostingList is ordered by ascending BookID.
type PostingList []Posting

// TermWeights maps each term of one book to its posting weight.
type TermWeights map[string]float64

// Stats summarises index contents.
type Stats struct {
	Books int
	Terms int
}
