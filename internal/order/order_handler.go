package order

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	appctx "github.com/anishmaharjan/kinmel-backend/internal/context"
	"github.com/anishmaharjan/kinmel-backend/internal/logger"
)

// PlaceOrderRequest represents the order placement payload
type PlaceOrderRequest struct {
	OrderRef   string   `json:"orderId" validate:"required"`
	ProductIDs []string `json:"productIds" validate:"required,min=1"`
	TotalCost  float64  `json:"productCost" validate:"required,gt=0"`
	Paid       bool     `json:"paidStatus"`
}

type response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Order   *OrderData  `json:"order,omitempty"`
	Orders  []OrderData `json:"orders,omitempty"`
}

// OrderHandler handles HTTP requests for orders
type OrderHandler struct {
	service  *OrderService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewOrderHandler creates a new OrderHandler instance
func NewOrderHandler(service *OrderService, log *slog.Logger) *OrderHandler {
	if log == nil {
		log = slog.Default()
	}
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
		logger:   log,
	}
}

// Place records an order for the authenticated account
// POST /api/v1/orders
func (h *OrderHandler) Place(w http.ResponseWriter, r *http.Request) {
	accountID, ok := appctx.ExtractAccountID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Please enter all the fields")
		return
	}

	order, err := h.service.Place(r.Context(), accountID, req.OrderRef, req.ProductIDs, req.TotalCost, req.Paid)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, response{
		Success: true,
		Message: "Order placed successfully",
		Order:   order,
	})
}

// History lists the authenticated account's orders, newest first
// GET /api/v1/orders
func (h *OrderHandler) History(w http.ResponseWriter, r *http.Request) {
	accountID, ok := appctx.ExtractAccountID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	orders, err := h.service.History(r.Context(), accountID)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, response{Success: true, Message: "OK", Orders: orders})
}

// GetByRef returns a single order by its external reference
// GET /api/v1/orders/{ref}
func (h *OrderHandler) GetByRef(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")

	order, err := h.service.GetByRef(r.Context(), ref)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, response{Success: true, Message: "OK", Order: order})
}

func (h *OrderHandler) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrAccountNotFound):
		h.writeError(w, http.StatusBadRequest, "Account does not exist")
	case errors.Is(err, ErrOrderNotFound):
		h.writeError(w, http.StatusNotFound, "Order not found")
	case errors.Is(err, ErrEmptyOrder):
		h.writeError(w, http.StatusBadRequest, "Order has no products")
	default:
		logger.WithCorrelationID(r.Context(), h.logger).Error("order request failed",
			slog.String("path", r.URL.Path), slog.Any("error", err))
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *OrderHandler) writeJSON(w http.ResponseWriter, statusCode int, resp response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *OrderHandler) writeError(w http.ResponseWriter, statusCode int, message string) {
	h.writeJSON(w, statusCode, response{Success: false, Message: message})
}
