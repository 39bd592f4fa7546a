package service

import (
	"context"
	"fmt"

	"github.com/Skotchmaster/storefront/pkg/baas"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/services/order/internal/models"
)

const (
	StepItems    = "items"
	StepTracking = "tracking"

	noteOrderCreated = "Pesanan dibuat"
)

// PartialOrderError means the order header exists but a later write failed.
type PartialOrderError struct {
	Order models.Order
	Step  string
	Err   error
}

func (e *PartialOrderError) Error() string {
	return fmt.Sprintf("order %d created without %s: %v", e.Order.ID, e.Step, e.Err)
}

func (e *PartialOrderError) Unwrap() []error { return []error{ErrUpstream, e.Err} }

// Submitter persists an order as header, items, tracking. The writes are
// independent calls; there is no rollback.
type Submitter struct {
	orders   OrderStore
	statuses *StatusService
	clock    models.Clock
}

func NewSubmitter(orders OrderStore, statuses *StatusService, clock models.Clock) *Submitter {
	return &Submitter{orders: orders, statuses: statuses, clock: clock}
}

func (s *Submitter) Submit(ctx context.Context, o models.NewOrder) (models.Order, error) {
	l := logging.FromContext(ctx).With("order_number", o.OrderNumber)

	o.StatusID = s.statuses.CatalogOrFallback(ctx).PendingID()

	created, err := s.orders.InsertOrder(ctx, o)
	if err != nil {
		l.Error("order_insert_error", "error", err)
		return models.Order{}, fmt.Errorf("%w: %s", ErrOrderCreationFailed, baas.Message(err))
	}
	if created.ID == 0 {
		l.Error("order_insert_error", "reason", "no id returned")
		return models.Order{}, fmt.Errorf("%w: no order returned", ErrOrderCreationFailed)
	}
	l = l.With("order_id", created.ID)

	if err := s.insertItems(ctx, created.ID, o.Items); err != nil {
		l.Error("order_items_insert_error", "error", err)
		return created, &PartialOrderError{Order: created, Step: StepItems, Err: err}
	}
	if err := s.insertCreatedTracking(ctx, created.ID, o.StatusID, o.UserID); err != nil {
		l.Error("order_tracking_insert_error", "error", err)
		return created, &PartialOrderError{Order: created, Step: StepTracking, Err: err}
	}

	l.Info("order_submitted", "items", len(o.Items))
	return created, nil
}

func (s *Submitter) insertItems(ctx context.Context, orderID int64, items []models.NewOrderItem) error {
	rows := make([]models.OrderItem, len(items))
	for i, it := range items {
		rows[i] = models.OrderItem{
			OrderID:   orderID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Price,
			Subtotal:  it.Subtotal,
		}
	}
	return s.orders.InsertItems(ctx, rows)
}

func (s *Submitter) insertCreatedTracking(ctx context.Context, orderID, statusID, userID int64) error {
	return s.orders.InsertTracking(ctx, models.OrderTracking{
		OrderID:   orderID,
		StatusID:  statusID,
		Notes:     noteOrderCreated,
		CreatedBy: userID,
		CreatedAt: models.At(s.clock.Now()),
	})
}
