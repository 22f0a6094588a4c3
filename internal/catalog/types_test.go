package catalog

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBookID(t *testing.T) {
	assert.Equal(t, BookID(2701), ParseBookID("2701"))
	assert.Equal(t, BookID(0), ParseBookID("0"))
	assert.Equal(t, BookID(0), ParseBookID("-3"))
	assert.Equal(t, BookID(0), ParseBookID("abc"))
	assert.Equal(t, BookID(0), ParseBookID(""))
	assert.False(t, BookID(0).Valid())
	assert.True(t, BookID(1).Valid())
}

func TestRankedResultFlattensHeader(t *testing.T) {
	data, err := json.Marshal(RankedResult{
		Header: Header{ID: 2701, Title: "Moby-Dick", Author: "Herman Melville", Language: "English"},
		Score:  3,
	})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.EqualValues(t, 2701, got["id"])
	assert.Equal(t, "Moby-Dick", got["title"])
	assert.EqualValues(t, 3, got["score"])
	assert.NotContains(t, got, "year")
}
