package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Skotchmaster/storefront/pkg/events"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/search"
	"github.com/Skotchmaster/storefront/pkg/session"
	"github.com/Skotchmaster/storefront/services/order/internal/models"
)

type OrderService struct {
	orders   OrderStore
	statuses *StatusService
	stock    *StockService
	notify   *Notifier
	index    OrderIndex
	clock    models.Clock
}

func NewOrderService(orders OrderStore, statuses *StatusService, stock *StockService, notify *Notifier, index OrderIndex, clock models.Clock) *OrderService {
	return &OrderService{
		orders:   orders,
		statuses: statuses,
		stock:    stock,
		notify:   notify,
		index:    index,
		clock:    clock,
	}
}

func (s *OrderService) ListUserOrders(ctx context.Context, sess session.Session, offset, limit int) ([]models.Order, error) {
	list, err := s.orders.ListOrders(ctx, models.OrderFilter{UserID: sess.UserID, Offset: offset, Limit: limit})
	if err != nil {
		return nil, upstream(err, "list orders")
	}
	return list, nil
}

// GetOrder returns the order to its owner or to an admin.
func (s *OrderService) GetOrder(ctx context.Context, sess session.Session, orderID int64) (models.Order, error) {
	o, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return models.Order{}, upstream(err, fmt.Sprintf("order %d", orderID))
	}
	if !sess.CanAccess(o.UserID) {
		return models.Order{}, fmt.Errorf("%w: order %d belongs to another user", ErrUnauthorized, orderID)
	}
	return o, nil
}

func (s *OrderService) ListTracking(ctx context.Context, sess session.Session, orderID int64) ([]models.OrderTracking, error) {
	if _, err := s.GetOrder(ctx, sess, orderID); err != nil {
		return nil, err
	}
	list, err := s.orders.ListTracking(ctx, orderID)
	if err != nil {
		return nil, upstream(err, "list tracking")
	}
	return list, nil
}

func (s *OrderService) ListAllOrders(ctx context.Context, f models.OrderFilter) ([]models.Order, error) {
	f.UserID = 0
	list, err := s.orders.ListOrders(ctx, f)
	if err != nil {
		return nil, upstream(err, "list orders")
	}
	return list, nil
}

// Search finds orders by order number or customer name. The search index is
// used when configured, the REST filters otherwise.
func (s *OrderService) Search(ctx context.Context, term string, hasProof *bool, offset, limit int) (search.Results, error) {
	term = strings.TrimSpace(term)
	if term == "" && hasProof == nil {
		return search.Results{Items: []search.OrderDoc{}}, nil
	}

	if s.index != nil {
		res, err := s.index.Search(ctx, search.Params{Query: term, HasProof: hasProof, Offset: offset, Limit: limit})
		if err == nil {
			return res, nil
		}
		logging.FromContext(ctx).Warn("search_index_error", "fallback", "rest", "error", err)
	}

	var list []models.Order
	var err error
	if term == "" {
		list, err = s.orders.ListOrders(ctx, models.OrderFilter{HasProof: hasProof, Offset: offset, Limit: limit})
	} else {
		list, err = s.orders.SearchOrders(ctx, term, offset+limit)
	}
	if err != nil {
		return search.Results{}, upstream(err, "search orders")
	}

	docs := make([]search.OrderDoc, 0, len(list))
	for _, o := range list {
		if hasProof != nil && o.HasPaymentProof() != *hasProof {
			continue
		}
		docs = append(docs, OrderDoc(o))
	}
	if term != "" {
		docs = window(docs, offset, limit)
	}
	return search.Results{Total: int64(len(docs)), Items: docs}, nil
}

func window[T any](xs []T, offset, limit int) []T {
	if offset >= len(xs) {
		return xs[:0]
	}
	xs = xs[offset:]
	if limit > 0 && limit < len(xs) {
		xs = xs[:limit]
	}
	return xs
}

// ItemCount answers "how many order_items does order X have".
func (s *OrderService) ItemCount(ctx context.Context, orderID int64) (int64, error) {
	n, err := s.orders.CountItems(ctx, orderID)
	if err != nil {
		return 0, upstream(err, "count order items")
	}
	return n, nil
}

// FindIncomplete lists orders created within the window that have no items.
func (s *OrderService) FindIncomplete(ctx context.Context, within time.Duration, limit int) ([]models.Order, error) {
	if within <= 0 {
		within = 7 * 24 * time.Hour
	}
	list, err := s.orders.ListOrdersWithoutItems(ctx, s.clock.Now().Add(-within), limit)
	if err != nil {
		return nil, upstream(err, "find incomplete orders")
	}
	return list, nil
}

// UpdateStatus moves an order to statusID and appends a tracking row.
func (s *OrderService) UpdateStatus(ctx context.Context, sess session.Session, orderID, statusID int64, note string) (models.Order, error) {
	cat, err := s.statuses.Catalog(ctx)
	if err != nil {
		return models.Order{}, err
	}
	st, ok := cat.ByID(statusID)
	if !ok {
		return models.Order{}, fmt.Errorf("%w: status %d does not exist", ErrValidation, statusID)
	}

	o, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return models.Order{}, upstream(err, fmt.Sprintf("order %d", orderID))
	}

	if strings.TrimSpace(note) == "" {
		note = "Status diubah ke " + st.Nama
	}
	if err := s.setStatus(ctx, sess, o.ID, st.ID, note); err != nil {
		return models.Order{}, err
	}

	s.notify.Publish(ctx, events.Event{
		Type:        events.TypeOrderStatusChanged,
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID,
		Status:      string(st.Code),
		Data:        map[string]any{"from_status_id": o.StatusID, "to_status_id": st.ID},
	})
	s.notify.Reindex(ctx, o.ID)

	o.StatusID = st.ID
	o.Status = &st
	return o, nil
}

func (s *OrderService) setStatus(ctx context.Context, sess session.Session, orderID, statusID int64, note string) error {
	now := s.clock.Now()
	fields := map[string]any{"status_id": statusID, "updated_at": models.At(now)}
	if err := s.orders.PatchOrder(ctx, orderID, fields); err != nil {
		return upstream(err, "update order status")
	}
	err := s.orders.InsertTracking(ctx, models.OrderTracking{
		OrderID:   orderID,
		StatusID:  statusID,
		Notes:     note,
		CreatedBy: sess.UserID,
		CreatedAt: models.At(now),
	})
	if err != nil {
		logging.FromContext(ctx).Warn("order_tracking_insert_error", "order_id", orderID, "error", err)
	}
	return nil
}

type CancelResult struct {
	Order        models.Order              `json:"order"`
	Restorations []models.StockRestoration `json:"stock_restorations"`
	Warnings     []string                  `json:"warnings,omitempty"`
}

// Cancel reverses an order of the session user that is still pending,
// confirmed or processing: the status moves to cancelled, then stock goes
// back. Stock failures are queued for retry.
func (s *OrderService) Cancel(ctx context.Context, sess session.Session, orderID int64, reason string) (CancelResult, error) {
	l := logging.FromContext(ctx).With("order_id", orderID, "user_id", sess.UserID)

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return CancelResult{}, fmt.Errorf("%w: cancellation reason required", ErrValidation)
	}

	o, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return CancelResult{}, upstream(err, fmt.Sprintf("order %d", orderID))
	}
	if o.UserID != sess.UserID {
		return CancelResult{}, fmt.Errorf("%w: you are not allowed to cancel order %d", ErrUnauthorized, orderID)
	}

	cat := s.statuses.CatalogOrFallback(ctx)
	if code := cat.CodeOf(o.StatusID); !code.Cancellable() {
		return CancelResult{}, fmt.Errorf("%w: order with status %q cannot be cancelled", ErrInvalidState, cat.DisplayName(o.StatusID))
	}

	items := o.Items
	if len(items) == 0 {
		if items, err = s.orders.ListItems(ctx, orderID); err != nil {
			return CancelResult{}, upstream(err, "list order items")
		}
	}

	// status before stock: a failed patch must leave stock untouched
	cancelledID := cat.CancelledID()
	note := fmt.Sprintf("Dibatalkan: %s. Stok telah dikembalikan.", reason)
	if err := s.setStatus(ctx, sess, orderID, cancelledID, note); err != nil {
		l.Error("cancel_order_error", "step", "status", "error", err)
		return CancelResult{}, err
	}

	ctx = context.WithoutCancel(ctx)
	restorations, warnings := s.stock.Restore(ctx, orderID, items)

	s.notify.Publish(ctx, events.Event{
		Type:        events.TypeOrderCancelled,
		OrderID:     orderID,
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID,
		Status:      string(models.StatusCancelled),
		Data:        map[string]any{"reason": reason},
	})
	s.notify.Reindex(ctx, orderID)

	o.StatusID = cancelledID
	if st, ok := cat.ByID(cancelledID); ok {
		o.Status = &st
	}
	l.Info("order_cancelled", "restored_items", len(restorations), "warnings", len(warnings))
	return CancelResult{Order: o, Restorations: restorations, Warnings: warnings}, nil
}

// RestoreStock puts the order's quantities back without touching its status.
func (s *OrderService) RestoreStock(ctx context.Context, orderID int64) ([]models.StockRestoration, []string, error) {
	if _, err := s.orders.GetOrder(ctx, orderID); err != nil {
		return nil, nil, upstream(err, fmt.Sprintf("order %d", orderID))
	}
	items, err := s.orders.ListItems(ctx, orderID)
	if err != nil {
		return nil, nil, upstream(err, "list order items")
	}
	r, w := s.stock.Restore(ctx, orderID, items)
	logging.FromContext(ctx).Info("order_stock_restored", "order_id", orderID, "items", len(r))
	return r, w, nil
}
