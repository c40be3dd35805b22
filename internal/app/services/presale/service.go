// Package presale books pre-purchase orders and releases them after payment
// has been verified out-of-band.
package presale

import (
	"context"
	"fmt"

	"github.com/OneWorld-Network/ledger_layer/internal/app/domain/presale"
	"github.com/OneWorld-Network/ledger_layer/internal/app/storage"
	"github.com/OneWorld-Network/ledger_layer/pkg/logger"
)

// Service manages the presale order book.
type Service struct {
	orders storage.OrderStore
	log    *logger.Logger
}

// New constructs a presale service.
func New(orders storage.OrderStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("presale")
	}
	return &Service{orders: orders, log: log}
}

// Book records an order commitment. Booking has no ledger effect; tokens move
// only on release.
func (s *Service) Book(ctx context.Context, userID, amount, unitCost int64) (presale.Order, error) {
	if amount <= 0 {
		return presale.Order{}, fmt.Errorf("amount must be positive")
	}
	if unitCost < 0 {
		return presale.Order{}, fmt.Errorf("unit cost must not be negative")
	}

	order, err := s.orders.CreateOrder(ctx, presale.Order{
		UserID: userID,
		Amount: amount,
		Cost:   amount * unitCost,
	})
	if err != nil {
		return presale.Order{}, err
	}
	s.log.WithField("user_id", userID).Infof("order %s booked for %d tokens", order.ID, order.Amount)
	return order, nil
}

// Get returns one order.
func (s *Service) Get(ctx context.Context, id string) (presale.Order, error) {
	return s.orders.GetOrder(ctx, id)
}

// List returns orders for one user, or all orders when userID is negative.
func (s *Service) List(ctx context.Context, userID int64) ([]presale.Order, error) {
	return s.orders.ListOrders(ctx, userID)
}

// Release credits a booked order from the treasury and marks it released.
// The transition is one-way; releasing twice fails with ErrInvalidState and
// credits nothing.
func (s *Service) Release(ctx context.Context, id string) (presale.Order, error) {
	order, err := s.orders.ReleaseOrder(ctx, id)
	if err != nil {
		return presale.Order{}, err
	}
	s.log.WithField("user_id", order.UserID).Infof("order %s released, %d tokens credited", order.ID, order.Amount)
	return order, nil
}
