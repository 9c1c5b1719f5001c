package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dmehra2102/stock-inbox/internal/stock/domain"
)

// Reader is the read side the handler needs from the store.
type Reader interface {
	GetProduct(ctx context.Context, id uuid.UUID) (domain.StockItem, error)
	GetInboxRecord(ctx context.Context, messageID uuid.UUID) (domain.InboxRecord, error)
	Ping(ctx context.Context) error
}

type Handler struct {
	log    *zap.Logger
	reader Reader
}

func NewHandler(log *zap.Logger, reader Reader) *Handler {
	return &Handler{log: log, reader: reader}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", h.health)
	r.Get("/products/{id}", h.getProduct)
	r.Get("/inbox/{messageId}", h.getInboxRecord)
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.reader.Ping(r.Context()); err != nil {
		h.log.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}
	item, err := h.reader.GetProduct(r.Context(), id)
	if err != nil {
		h.fail(w, err, domain.ErrProductNotFound)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) getInboxRecord(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseMessageID(chi.URLParam(r, "messageId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid message id")
		return
	}
	rec, err := h.reader.GetInboxRecord(r.Context(), id)
	if err != nil {
		h.fail(w, err, domain.ErrInboxRecordNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) fail(w http.ResponseWriter, err, notFound error) {
	if errors.Is(err, notFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	h.log.Error("lookup failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
