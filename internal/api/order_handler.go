package api

import (
	"log/slog"
	"net/http"

	"github.com/stackmesh/commerce-api/internal/api/shared"
	"github.com/stackmesh/commerce-api/internal/domain"
	"github.com/stackmesh/commerce-api/internal/service"
)

// OrderHandler serves the order endpoints.
type OrderHandler struct {
	orders *service.OrderService
	logger *slog.Logger
}

// NewOrderHandler creates an OrderHandler.
func NewOrderHandler(orders *service.OrderService, log *slog.Logger) *OrderHandler {
	return &OrderHandler{
		orders: orders,
		logger: log.With(slog.String("handler", "order")),
	}
}

// Create handles POST /orders. The order is placed for the
// authenticated user.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.UserIDFromContext(r.Context())
	if !ok {
		shared.RespondWithError(w, http.StatusUnauthorized,
			service.CodeUnauthorized, "authentication required", nil)
		return
	}

	var req CreateOrderRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.RespondWithError(w, http.StatusBadRequest, service.CodeValidation, err.Error(), nil)
		return
	}
	if err := validateRequest(req); err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}

	items := make([]service.OrderItemInput, len(req.Items))
	for i, item := range req.Items {
		items[i] = service.OrderItemInput{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		}
	}

	order, err := h.orders.Create(r.Context(), userID, items)
	if err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}
	shared.RespondWithJSON(w, http.StatusCreated, "order created", NewOrderResponse(order))
}

// Get handles GET /orders/{id}. Orders are only visible to their owner.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.UserIDFromContext(r.Context())
	if !ok {
		shared.RespondWithError(w, http.StatusUnauthorized,
			service.CodeUnauthorized, "authentication required", nil)
		return
	}

	id, err := parseUUIDParam(r, "id")
	if err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}

	order, err := h.orders.GetByID(r.Context(), id, userID)
	if err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}
	shared.RespondWithJSON(w, http.StatusOK, "", NewOrderResponse(order))
}

// List handles GET /orders: all orders, filterable by user_id and status.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOptions(r)
	if err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}

	result, err := h.orders.List(r.Context(), opts)
	if err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}
	shared.RespondWithPage(w, "", NewOrderResponses(result.Items), pageMeta(result))
}

// ListMine handles GET /orders/mine: the authenticated user's orders.
func (h *OrderHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.UserIDFromContext(r.Context())
	if !ok {
		shared.RespondWithError(w, http.StatusUnauthorized,
			service.CodeUnauthorized, "authentication required", nil)
		return
	}

	opts, err := parseListOptions(r)
	if err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}

	result, err := h.orders.ListForUser(r.Context(), userID, opts)
	if err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}
	shared.RespondWithPage(w, "", NewOrderResponses(result.Items), pageMeta(result))
}

// UpdateStatus handles PATCH /orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.UserIDFromContext(r.Context())
	if !ok {
		shared.RespondWithError(w, http.StatusUnauthorized,
			service.CodeUnauthorized, "authentication required", nil)
		return
	}

	id, err := parseUUIDParam(r, "id")
	if err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}

	var req UpdateOrderStatusRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.RespondWithError(w, http.StatusBadRequest, service.CodeValidation, err.Error(), nil)
		return
	}
	if err := validateRequest(req); err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), id, userID, domain.OrderStatus(req.Status))
	if err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}
	shared.RespondWithJSON(w, http.StatusOK, "order status updated", NewOrderResponse(order))
}

// Cancel handles POST /orders/{id}/cancel.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.UserIDFromContext(r.Context())
	if !ok {
		shared.RespondWithError(w, http.StatusUnauthorized,
			service.CodeUnauthorized, "authentication required", nil)
		return
	}

	id, err := parseUUIDParam(r, "id")
	if err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}

	order, err := h.orders.Cancel(r.Context(), id, userID)
	if err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}
	shared.RespondWithJSON(w, http.StatusOK, "order cancelled", NewOrderResponse(order))
}
