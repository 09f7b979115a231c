// Package order implements order placement. Placing an order appends it to
// the account's history and empties the cart in the same transaction.
package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/anishmaharjan/kinmel-backend/internal/events"
	"github.com/anishmaharjan/kinmel-backend/internal/metrics"
	"github.com/anishmaharjan/kinmel-backend/internal/repository"
)

// Service errors
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrOrderNotFound   = errors.New("order not found")
	ErrEmptyOrder      = errors.New("order has no products")
)

// OrderData is the order representation returned to clients
type OrderData struct {
	ID         string          `json:"id"`
	OrderRef   string          `json:"orderId"`
	ProductIDs json.RawMessage `json:"productIds"`
	TotalCost  float64         `json:"productCost"`
	Paid       bool            `json:"paidStatus"`
	CreatedAt  string          `json:"createdAt"`
}

// OrderService coordinates order placement and retrieval
type OrderService struct {
	orders repository.OrderRepository
	bus    events.Bus
	logger *slog.Logger
}

// NewOrderService creates a new OrderService instance
func NewOrderService(orders repository.OrderRepository, bus events.Bus, logger *slog.Logger) *OrderService {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderService{orders: orders, bus: bus, logger: logger}
}

// Place records the order for the account and clears its cart
func (s *OrderService) Place(ctx context.Context, accountID, orderRef string, productIDs []string, totalCost float64, paid bool) (*OrderData, error) {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return nil, ErrAccountNotFound
	}
	if len(productIDs) == 0 {
		return nil, ErrEmptyOrder
	}

	rawProducts, err := json.Marshal(productIDs)
	if err != nil {
		return nil, fmt.Errorf("marshal product ids: %w", err)
	}

	order := &repository.Order{
		AccountID:  id,
		OrderRef:   orderRef,
		ProductIDs: rawProducts,
		TotalCost:  totalCost,
		Paid:       paid,
	}

	if err := s.orders.Place(ctx, order); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	metrics.OrdersPlacedTotal.Inc()
	s.bus.Publish(events.Event{
		Type:      events.TypeOrderPlaced,
		AccountID: accountID,
		Detail:    map[string]string{"order_ref": orderRef},
	})

	return orderData(order), nil
}

// History returns all orders for the account, newest first
func (s *OrderService) History(ctx context.Context, accountID string) ([]OrderData, error) {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return nil, ErrAccountNotFound
	}

	orders, err := s.orders.GetByAccount(ctx, id)
	if err != nil {
		return nil, err
	}

	result := make([]OrderData, 0, len(orders))
	for i := range orders {
		result = append(result, *orderData(&orders[i]))
	}
	return result, nil
}

// GetByRef returns a single order by its external reference
func (s *OrderService) GetByRef(ctx context.Context, orderRef string) (*OrderData, error) {
	order, err := s.orders.GetByRef(ctx, orderRef)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return orderData(order), nil
}

func orderData(order *repository.Order) *OrderData {
	return &OrderData{
		ID:         order.ID.String(),
		OrderRef:   order.OrderRef,
		ProductIDs: order.ProductIDs,
		TotalCost:  order.TotalCost,
		Paid:       order.Paid,
		CreatedAt:  order.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
