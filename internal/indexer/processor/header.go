// Package processor turns raw book text into index input: header metadata
// and normalised body terms.
package processor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/catalog"
)

var (
	titleRe    = regexp.MustCompile(`(?mi)^[ \t]*title:[ \t]*(.+?)[ \t]*\r?$`)
	authorRe   = regexp.MustCompile(`(?mi)^[ \t]*author:[ \t]*(.+?)[ \t]*\r?$`)
	languageRe = regexp.MustCompile(`(?mi)^[ \t]*language:[ \t]*(.+?)[ \t]*\r?$`)
	strictIDRe = regexp.MustCompile(`(?i)\[[^\]\n]*?e-?book\s*#\s*(\d+)[^\]\n]*\]`)
	looseIDRe  = regexp.MustCompile(`(?i)e-?book\s*#?\s*(\d+)`)
	releaseRe  = regexp.MustCompile(`(?mi)^[ \t]*release date:[^\n]*?\b(1[4-9]\d\d|20\d\d)\b`)
)

// ExtractHeader pulls metadata out of a header block. Each field is
// extracted independently; anything missing stays empty and an
// unparseable id is 0.
func ExtractHeader(raw string) catalog.Header {
	return catalog.Header{
		ID:       extractID(raw),
		Title:    firstMatch(titleRe, raw),
		Author:   firstMatch(authorRe, raw),
		Language: firstMatch(languageRe, raw),
		Year:     extractYear(raw),
	}
}

func firstMatch(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func extractID(raw string) catalog.BookID {
	digits := firstMatch(strictIDRe, raw)
	if digits == "" {
		digits = firstMatch(looseIDRe, raw)
	}
	if digits == "" {
		return 0
	}
	return catalog.ParseBookID(digits)
}

func extractYear(raw string) int {
	y, err := strconv.Atoi(firstMatch(releaseRe, raw))
	if err != nil {
		return 0
	}
	return y
}
