package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dmehra2102/stock-inbox/internal/order/domain"
)

type OrderService interface {
	CreateOrder(ctx context.Context, customerID uuid.UUID, items []domain.OrderItem, headers map[string]string, traceparent string) (domain.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (domain.Order, error)
}

type Handler struct {
	log     *zap.Logger
	service OrderService
	tracer  trace.Tracer
}

func NewHandler(log *zap.Logger, service OrderService) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("order-http"),
	}
}

type createOrderReq struct {
	CustomerID uuid.UUID          `json:"customerId"`
	Items      []domain.OrderItem `json:"items"`
	Headers    map[string]string  `json:"headers"`
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.getOrder)
	return r
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := h.tracer.Start(ctx, "CreateOrder")
	defer span.End()

	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	o, err := h.service.CreateOrder(ctx, req.CustomerID, req.Items, req.Headers, carrier.Get("traceparent"))
	if err != nil {
		if errors.Is(err, domain.ErrEmptyOrder) || errors.Is(err, domain.ErrInvalidItem) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error("create order failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.log.Info("order accepted", zap.String("order_id", o.ID.String()), zap.String("total", o.Total.String()))
	writeJSON(w, http.StatusAccepted, map[string]string{"status": string(o.Status), "order_id": o.ID.String()})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	o, err := h.service.GetOrder(r.Context(), id)
	if errors.Is(err, domain.ErrOrderNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.log.Error("get order failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
