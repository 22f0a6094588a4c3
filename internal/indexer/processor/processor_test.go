package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/catalog"
)

const mobyDickHeader = `The Project Gutenberg EBook of Moby Dick; or The Whale, by Herman Melville

This eBook is for the use of anyone anywhere at no cost and with
almost no restrictions whatsoever.

Title: Moby-Dick
       or, The Whale

Author: Herman Melville

Release Date: December 25, 2008 [EBook #2701]
Last Updated: December 3, 2017

Language: English

Character set encoding: UTF-8
`

func TestExtractHeader_MobyDick(t *testing.T) {
	h := ExtractHeader(mobyDickHeader)
	assert.Equal(t, catalog.Header{
		ID:       2701,
		Title:    "Moby-Dick",
		Author:   "Herman Melville",
		Language: "English",
		Year:     2008,
	}, h)
}

func TestExtractHeader_LooseID(t *testing.T) {
	h := ExtractHeader("Title: Persuasion\nThe Project Gutenberg eBook #105\nLanguage: English\n")
	assert.Equal(t, catalog.BookID(105), h.ID)
	assert.Equal(t, "Persuasion", h.Title)
	assert.Empty(t, h.Author)
}

func TestExtractHeader_StrictPatternWinsOverLoose(t *testing.T) {
	raw := "Produced from eBook #9 scans\nRelease date: May 1, 1998 [eBook #1342]\n"
	assert.Equal(t, catalog.BookID(1342), ExtractHeader(raw).ID)
}

func TestExtractHeader_MissingFieldsDefault(t *testing.T) {
	h := ExtractHeader("nothing useful here")
	assert.Equal(t, catalog.Header{}, h)
	assert.False(t, h.ID.Valid())
}

func TestExtractHeader_OverflowingIDIsZero(t *testing.T) {
	h := ExtractHeader("[EBook #99999999999999999999999]")
	assert.Equal(t, catalog.BookID(0), h.ID)
}

func TestExtractHeader_CRLF(t *testing.T) {
	h := ExtractHeader("Title: Emma\r\nAuthor: Jane Austen\r\nLanguage: English\r\n")
	assert.Equal(t, "Emma", h.Title)
	assert.Equal(t, "Jane Austen", h.Author)
	assert.Equal(t, "English", h.Language)
}

func TestTokenize_StopWordsAndPunctuation(t *testing.T) {
	got := Tokenize("Don't stop. The VOID—empty.")
	assert.Equal(t, []string{"don't", "empty", "stop", "void"}, got)
}

func TestTokenize_UnifiesQuotesAndDiacritics(t *testing.T) {
	got := Tokenize("DON’T visit the Café; naïve élan")
	assert.Equal(t, []string{"cafe", "don't", "elan", "naive", "visit"}, got)
}

func TestTokenize_ApostropheOnlyBetweenLetters(t *testing.T) {
	got := Tokenize("'tis the sailors' ship")
	assert.Equal(t, []string{"sailors", "ship", "tis"}, got)
}

func TestTokenize_DigitsAreSeparators(t *testing.T) {
	assert.Equal(t, []string{"chapter", "x"}, Tokenize("Chapter 42x"))
}

func TestTokenize_Empty(t *testing.T) {
	assert.Empty(t, Tokenize(""))
	assert.Empty(t, Tokenize("the and of"))
}

func TestTermFrequencies(t *testing.T) {
	got := TermFrequencies("Whale! whale, WHALE; the ship")
	assert.Equal(t, map[string]int{"whale": 3, "ship": 1}, got)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "it's a resume", Normalize("It‘s a Résumé"))
}
