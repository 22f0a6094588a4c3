package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/errors"
)

type stubIndexer struct {
	calls []catalog.BookID
	err   error
}

func (s *stubIndexer) IndexBook(ctx context.Context, id catalog.BookID) (indexer.Result, error) {
	s.calls = append(s.calls, id)
	if s.err != nil {
		return indexer.Result{}, s.err
	}
	return indexer.Result{Header: catalog.Header{ID: id, Title: "Emma"}, Terms: 12}, nil
}

func serve(h *Handler, method, path string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	h.Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestUpdate_Success(t *testing.T) {
	ix := &stubIndexer{}
	rec := serve(New(ix, index.NewMemoryIndex()), http.MethodPost, "/index/update/158")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []catalog.BookID{158}, ix.calls)

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "indexed", body["status"])
	assert.Equal(t, float64(12), body["terms"])
}

func TestUpdate_StatusMapping(t *testing.T) {
	tests := []struct {
		name string
		path string
		err  error
		want int
	}{
		{"non numeric id", "/index/update/abc", nil, http.StatusBadRequest},
		{"zero id", "/index/update/0", nil, http.StatusBadRequest},
		{"missing source", "/index/update/5", apperrors.NotFound("5.body.txt not found"), http.StatusNotFound},
		{"store failure", "/index/update/5", apperrors.ErrInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(New(&stubIndexer{err: tt.err}, index.NewMemoryIndex()), http.MethodPost, tt.path)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestUpdate_WrongMethod(t *testing.T) {
	rec := serve(New(&stubIndexer{}, index.NewMemoryIndex()), http.MethodGet, "/index/update/5")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStats(t *testing.T) {
	store := index.NewMemoryIndex()
	require.NoError(t, store.IndexDocument(context.Background(), catalog.Header{ID: 1}, index.TermWeights{"a": 1, "b": 1}))

	rec := serve(New(&stubIndexer{}, store), http.MethodGet, "/index/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"books":1,"terms":2}`, rec.Body.String())
}
