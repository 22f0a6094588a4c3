// Package parser turns a raw query string into the terms looked up in the
// index.
package parser

import (
	"strings"
	"unicode"

	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/indexer/processor"
	apperrors "github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/errors"
)

type QueryPlan struct {
	Terms    []string
	RawQuery string
}

// Parse splits query on whitespace and normalises each word the way body
// text is normalised at index time. Stop words are kept, and so are
// repeated terms: each occurrence contributes to the score. A blank query
// is invalid input.
func Parse(query string) (*QueryPlan, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.InvalidInput("query parameter 'q' is required")
	}
	plan := &QueryPlan{
		Terms:    make([]string, 0),
		RawQuery: query,
	}
	for _, word := range strings.Fields(query) {
		term := strings.TrimFunc(processor.Normalize(word), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if term == "" {
			continue
		}
		plan.Terms = append(plan.Terms, term)
	}
	return plan, nil
}
