package service

import (
	"context"

	"github.com/Skotchmaster/storefront/pkg/events"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/search"
	"github.com/Skotchmaster/storefront/services/order/internal/models"
)

// Notifier fans order changes out to the event bus and the search index.
// Both are best-effort.
type Notifier struct {
	orders OrderStore
	pub    Publisher
	index  OrderIndex
	retry  *RetryQueue
	clock  models.Clock
}

// NewNotifier accepts a nil publisher or index.
func NewNotifier(orders OrderStore, pub Publisher, index OrderIndex, retry *RetryQueue, clock models.Clock) *Notifier {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Notifier{orders: orders, pub: pub, index: index, retry: retry, clock: clock}
}

// Publish stamps the event and sends it. A failed publish is queued.
func (n *Notifier) Publish(ctx context.Context, ev events.Event) {
	if ev.At.IsZero() {
		ev.At = n.clock.Now().UTC()
	}
	if err := n.pub.Publish(ctx, ev); err != nil {
		logging.FromContext(ctx).Warn("publish_event_error", "type", ev.Type, "order_id", ev.OrderID, "error", err)
		n.retry.Enqueue(ctx, models.TaskPublishEvent, ev.OrderID, ev)
	}
}

// Reindex reloads the order and writes its search document.
func (n *Notifier) Reindex(ctx context.Context, orderID int64) {
	if n.index == nil {
		return
	}
	l := logging.FromContext(ctx).With("order_id", orderID)

	o, err := n.orders.GetOrder(ctx, orderID)
	if err != nil {
		l.Warn("search_index_error", "reason", "load order", "error", err)
		return
	}
	if err := n.index.Index(ctx, OrderDoc(o)); err != nil {
		l.Warn("search_index_error", "error", err)
	}
}

func OrderDoc(o models.Order) search.OrderDoc {
	doc := search.OrderDoc{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		UserID:          o.UserID,
		TotalAmount:     o.TotalAmount.String(),
		HasPaymentProof: o.HasPaymentProof(),
		CreatedAt:       o.CreatedAt.Time,
	}
	if o.Customer != nil {
		doc.CustomerName = o.Customer.Nama
	}
	if o.Status != nil {
		doc.Status = o.Status.Nama
	}
	return doc
}
