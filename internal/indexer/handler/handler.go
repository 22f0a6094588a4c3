package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/logger"
)

type BookIndexer interface {
	IndexBook(ctx context.Context, id catalog.BookID) (indexer.Result, error)
}

type Handler struct {
	indexer BookIndexer
	store   index.Store
	logger  *slog.Logger
}

func New(ix BookIndexer, store index.Store) *Handler {
	return &Handler{
		indexer: ix,
		store:   store,
		logger:  slog.Default().With("component", "index-handler"),
	}
}

// Register mounts the index routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /index/update/{id}", h.Update)
	mux.HandleFunc("GET /index/stats", h.Stats)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	id := catalog.ParseBookID(r.PathValue("id"))
	if !id.Valid() {
		h.writeError(w, http.StatusBadRequest, "book id must be a positive integer")
		return
	}

	result, err := h.indexer.IndexBook(r.Context(), id)
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		if status >= http.StatusInternalServerError {
			log.Error("index update failed", "book_id", id, "error", err)
		} else {
			log.Warn("index update rejected", "book_id", id, "error", err)
		}
		h.writeError(w, status, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"book_id": id,
		"status":  "indexed",
		"title":   result.Header.Title,
		"terms":   result.Terms,
	})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.store.Stats(r.Context())
	if err != nil {
		h.logger.Error("reading index stats failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "stats unavailable")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{
		"books": st.Books,
		"terms": st.Terms,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
