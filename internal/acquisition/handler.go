package acquisition

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/catalog"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service: service,
		logger:  slog.Default().With("component", "acquisition-handler"),
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /acquire/{id}", h.Acquire)
	mux.HandleFunc("GET /acquire/status/{id}", h.Status)
}

func (h *Handler) Acquire(w http.ResponseWriter, r *http.Request) {
	id := catalog.ParseBookID(r.PathValue("id"))
	if !id.Valid() {
		h.writeError(w, http.StatusBadRequest, "book id must be a positive integer")
		return
	}
	h.writeJSON(w, http.StatusAccepted, h.service.Acquire(id))
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	id := catalog.ParseBookID(r.PathValue("id"))
	if !id.Valid() {
		h.writeError(w, http.StatusBadRequest, "book id must be a positive integer")
		return
	}
	st, ok := h.service.Status(id)
	if !ok {
		h.writeJSON(w, http.StatusNotFound, st)
		return
	}
	h.writeJSON(w, http.StatusOK, st)
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
