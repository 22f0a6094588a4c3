package processor

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var quoteReplacer = strings.NewReplacer(
	"‘", "'", // left single quote
	"’", "'", // right single quote
	"‛", "'",
	"ʼ", "'", // modifier letter apostrophe
	"′", "'", // prime
	"`", "'",
	"´", "'",
	"“", `"`,
	"”", `"`,
	"„", `"`,
)

// Normalize unifies quote variants, strips diacritics and lower-cases s.
func Normalize(s string) string {
	s = quoteReplacer.Replace(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(t, s); err == nil {
		s = out
	}
	return strings.ToLower(s)
}

// Tokenize returns the sorted set of index terms in body.
func Tokenize(body string) []string {
	seen := make(map[string]struct{})
	forEachTerm(body, func(term string) {
		seen[term] = struct{}{}
	})
	terms := make([]string, 0, len(seen))
	for term := range seen {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

// TermFrequencies counts occurrences of each index term in body.
func TermFrequencies(body string) map[string]int {
	freqs := make(map[string]int)
	forEachTerm(body, func(term string) {
		freqs[term]++
	})
	return freqs
}

func forEachTerm(body string, fn func(string)) {
	for _, word := range words(Normalize(body)) {
		if IsStopWord(word) {
			continue
		}
		fn(word)
	}
}

// words extracts maximal letter runs, keeping an apostrophe only when it
// sits between two letters.
func words(s string) []string {
	rs := []rune(s)
	var out []string
	start := -1
	for i, r := range rs {
		switch {
		case unicode.IsLetter(r):
			if start < 0 {
				start = i
			}
		case r == '\'' && start >= 0 && i+1 < len(rs) && unicode.IsLetter(rs[i+1]):
		default:
			if start >= 0 {
				out = append(out, string(rs[start:i]))
				start = -1
			}
		}
	}
	if start >= 0 {
		out = append(out, string(rs[start:]))
	}
	return out
}
