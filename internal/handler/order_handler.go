package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"escrow-service/internal/domain"
	"escrow-service/internal/pkg/response"
	"escrow-service/internal/usecase"
)

type OrderHandler struct {
	orders *usecase.OrderUsecase
}

func NewOrderHandler(orders *usecase.OrderUsecase) *OrderHandler {
	return &OrderHandler{orders: orders}
}

func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status  domain.OrderStatus `json:"status"`
		RiderID string             `json:"rider_id,omitempty"`
		Reason  string             `json:"reason,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), usecase.UpdateStatusRequest{
		OrderID: chi.URLParam(r, "orderID"),
		ActorID: ActorID(r),
		Target:  body.Status,
		RiderID: body.RiderID,
		Reason:  body.Reason,
	})
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, order)
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.Get(r.Context(), chi.URLParam(r, "orderID"), ActorID(r))
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, order)
}

func (h *OrderHandler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	trail, err := h.orders.AuditTrail(r.Context(), chi.URLParam(r, "orderID"), ActorID(r))
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, trail)
}

func (h *OrderHandler) RiderStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.orders.RiderStats(r.Context(), ActorID(r))
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, stats)
}

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	vertical := domain.Vertical(r.URL.Query().Get("order_type"))

	orders, err := h.orders.List(r.Context(), ActorID(r), vertical, limit, offset)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, orders)
}
