// Package ranker scores books by summing posting weights across query
// terms.
package ranker

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/indexer/index"
)

// Hit is one book's aggregated score.
type Hit struct {
	BookID catalog.BookID `json:"book_id"`
	Score  float64        `json:"score"`
}

// Aggregate sums each book's weights over all posting lists and orders the
// hits by descending score, then ascending BookID. Scores are not
// normalised.
func Aggregate(lists []index.PostingList) []Hit {
	scores := make(map[catalog.BookID]float64)
	for _, list := range lists {
		for _, p := range list {
			scores[p.BookID] += p.Weight
		}
	}
	hits := make([]Hit, 0, len(scores))
	for id, score := range scores {
		hits = append(hits, Hit{BookID: id, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].BookID < hits[j].BookID
	})
	return hits
}
