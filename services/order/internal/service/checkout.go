package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Skotchmaster/storefront/pkg/events"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/session"
	"github.com/Skotchmaster/storefront/services/order/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CartLine struct {
	ProductID int64
	Quantity  int
}

type CheckoutRequest struct {
	// Items overrides the stored cart when not empty.
	Items             []CartLine
	ShippingAddressID int64
	VoucherCode       string
	PaymentMethod     string
	Notes             string
}

type CheckoutPreview struct {
	Checks   []models.StockCheck `json:"stock_checks"`
	Ready    bool                `json:"ready"`
	Address  *models.Address     `json:"shipping_address"`
	Voucher  *models.Voucher     `json:"voucher,omitempty"`
	Subtotal decimal.Decimal     `json:"subtotal"`
	Discount decimal.Decimal     `json:"discount_amount"`
	Total    decimal.Decimal     `json:"total_amount"`
}

type CheckoutResult struct {
	Order    models.Order `json:"order"`
	SagaID   string       `json:"saga_id"`
	Warnings []string     `json:"warnings,omitempty"`
}

type RepairResult struct {
	OrderID          int64  `json:"order_id"`
	ItemsInserted    int    `json:"items_inserted"`
	TrackingInserted bool   `json:"tracking_inserted"`
	State            string `json:"state"`
}

// sagaPayload is what a checkout saga needs to finish a half-created order.
type sagaPayload struct {
	Order models.NewOrder       `json:"order"`
	Items []models.NewOrderItem `json:"items"`
}

type CheckoutDeps struct {
	Products  ProductStore
	Cart      CartStore
	Orders    OrderStore
	Sagas     SagaStore
	Addresses *AddressService
	Vouchers  *VoucherService
	Stock     *StockService
	Submitter *Submitter
	Notifier  *Notifier
	Retry     *RetryQueue
	Clock     models.Clock
}

// CheckoutService runs the order placement pipeline: stock check, assembly,
// submission, voucher, stock decrement, cart clear. Every run is journaled
// as a saga; steps after the order header are best-effort and retried.
type CheckoutService struct {
	d         CheckoutDeps
	assembler Assembler
}

func NewCheckoutService(d CheckoutDeps) *CheckoutService {
	return &CheckoutService{d: d, assembler: Assembler{Clock: d.Clock}}
}

type prepared struct {
	items    []models.CartItem
	checks   []models.StockCheck
	address  *models.Address
	quote    *models.VoucherQuote
	subtotal decimal.Decimal
}

func (s *CheckoutService) cartItems(ctx context.Context, sess session.Session, lines []CartLine) ([]models.CartItem, error) {
	if len(lines) > 0 {
		items := make([]models.CartItem, len(lines))
		for i, ln := range lines {
			items[i] = models.CartItem{UserID: sess.UserID, ProductID: ln.ProductID, Jumlah: ln.Quantity}
		}
		return items, nil
	}
	items, err := s.d.Cart.ListCart(ctx, sess.UserID)
	if err != nil {
		return nil, upstream(err, "load cart")
	}
	return items, nil
}

func (s *CheckoutService) prepare(ctx context.Context, sess session.Session, req CheckoutRequest) (*prepared, error) {
	if !sess.Valid() {
		return nil, ErrInvalidUserID
	}
	items, err := s.cartItems(ctx, sess, req.Items)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmptyOrderItems
	}
	for i, it := range items {
		if it.Jumlah <= 0 {
			return nil, fmt.Errorf("%w (line %d)", ErrInvalidQuantity, i+1)
		}
	}
	items = mergeLines(items)

	products, err := s.d.Products.ListProducts(ctx)
	if err != nil {
		return nil, upstream(err, "check stock availability")
	}
	p := &prepared{items: items, checks: CheckStock(items, products)}

	// prices come from the current catalog, not from the cart snapshot
	for i := range p.items {
		p.items[i].Product = nil
		if c := p.checks[i]; c.Product != nil {
			p.items[i].Product = c.Product
		}
	}
	p.subtotal = Subtotal(p.items)

	var addr models.Address
	if req.ShippingAddressID > 0 {
		addr, err = s.d.Addresses.Owned(ctx, sess, req.ShippingAddressID)
	} else {
		addr, err = s.d.Addresses.Primary(ctx, sess)
	}
	switch {
	case err == nil:
		p.address = &addr
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	if code := strings.TrimSpace(req.VoucherCode); code != "" {
		q, err := s.d.Vouchers.Quote(ctx, code, p.subtotal)
		if err != nil {
			return nil, err
		}
		p.quote = &q
	}
	return p, nil
}

func (p *prepared) discount() decimal.Decimal {
	if p.quote == nil {
		return decimal.Zero
	}
	return p.quote.Discount
}

// PrepareCheckout checks stock and computes totals without writing anything.
func (s *CheckoutService) PrepareCheckout(ctx context.Context, sess session.Session, req CheckoutRequest) (CheckoutPreview, error) {
	p, err := s.prepare(ctx, sess, req)
	if err != nil {
		return CheckoutPreview{}, err
	}
	out := CheckoutPreview{
		Checks:   p.checks,
		Ready:    stockVerdict(p.checks) == nil && p.address != nil,
		Address:  p.address,
		Subtotal: p.subtotal,
		Discount: p.discount(),
		Total:    p.subtotal.Sub(p.discount()),
	}
	if p.quote != nil {
		v := p.quote.Voucher
		out.Voucher = &v
	}
	return out, nil
}

func (s *CheckoutService) Checkout(ctx context.Context, sess session.Session, req CheckoutRequest) (CheckoutResult, error) {
	l := logging.FromContext(ctx).With("user_id", sess.UserID)

	method, ok := models.FindPaymentMethod(req.PaymentMethod)
	if !ok {
		return CheckoutResult{}, fmt.Errorf("%w: unknown payment method %q", ErrValidation, req.PaymentMethod)
	}

	p, err := s.prepare(ctx, sess, req)
	if err != nil {
		return CheckoutResult{}, err
	}
	if err := stockVerdict(p.checks); err != nil {
		l.Warn("checkout_blocked", "reason", "stock", "error", err)
		return CheckoutResult{}, err
	}
	if p.address == nil {
		return CheckoutResult{}, fmt.Errorf("%w: select a shipping address", ErrInvalidShippingAddress)
	}

	in := AssembleInput{
		UserID:            sess.UserID,
		Items:             p.items,
		Discount:          p.discount(),
		ShippingAddressID: p.address.ID,
		Payment:           method,
		Notes:             req.Notes,
	}
	if p.quote != nil {
		in.Voucher = &p.quote.Voucher
	}
	newOrder, err := s.assembler.Assemble(in)
	if err != nil {
		return CheckoutResult{}, err
	}

	// From here on the run must finish even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	saga, err := s.startSaga(ctx, newOrder)
	if err != nil {
		l.Error("checkout_saga_error", "error", err)
		return CheckoutResult{}, fmt.Errorf("%w: checkout journal unavailable", ErrUpstream)
	}
	l = l.With("saga_id", saga.ID, "order_number", newOrder.OrderNumber)

	var warnings []string
	order, err := s.d.Submitter.Submit(ctx, newOrder)
	var partial *PartialOrderError
	switch {
	case errors.As(err, &partial):
		saga.OrderID = partial.Order.ID
		saga.HeaderDone = true
		saga.ItemsDone = partial.Step != StepItems
		saga.State = models.SagaPartial
		saga.LastError = truncate(partial.Err.Error(), maxErrLength)
		s.d.Retry.Enqueue(ctx, models.TaskRepairOrder, partial.Order.ID, map[string]int64{"order_id": partial.Order.ID})
		warnings = append(warnings, fmt.Sprintf("order saved without %s, repair scheduled", partial.Step))
	case err != nil:
		saga.State = models.SagaFailed
		saga.LastError = truncate(err.Error(), maxErrLength)
		s.saveSaga(ctx, saga)
		return CheckoutResult{}, err
	default:
		saga.OrderID = order.ID
		saga.HeaderDone, saga.ItemsDone, saga.TrackingDone = true, true, true
	}
	s.saveSaga(ctx, saga)

	if p.quote != nil && p.quote.Discount.IsPositive() {
		w := s.d.Vouchers.ApplyBestEffort(ctx, models.VoucherUsage{
			VoucherID:      p.quote.Voucher.ID,
			UserID:         sess.UserID,
			OrderID:        order.ID,
			DiscountAmount: p.quote.Discount,
			UsedAt:         models.At(s.d.Clock.Now()),
		})
		saga.VoucherDone = len(w) == 0
		warnings = append(warnings, w...)
	}

	w := s.d.Stock.Decrement(ctx, order.ID, p.checks)
	saga.StockDone = len(w) == 0
	warnings = append(warnings, w...)

	if err := s.d.Cart.ClearCart(ctx, sess.UserID); err != nil {
		l.Warn("cart_clear_error", "error", err)
		s.d.Retry.Enqueue(ctx, models.TaskCartClear, order.ID, models.CartClearTask{UserID: sess.UserID})
		warnings = append(warnings, "cart not cleared, retry scheduled")
	} else {
		saga.CartDone = true
	}

	if saga.State != models.SagaPartial {
		saga.State = models.SagaCompleted
	}
	s.saveSaga(ctx, saga)

	s.d.Notifier.Publish(ctx, events.Event{
		Type:        events.TypeOrderCreated,
		OrderID:     order.ID,
		OrderNumber: newOrder.OrderNumber,
		UserID:      sess.UserID,
		Status:      string(models.StatusPending),
		Data: map[string]any{
			"total_amount":    newOrder.TotalAmount.String(),
			"discount_amount": newOrder.DiscountAmount.String(),
			"items":           len(newOrder.Items),
		},
	})
	s.d.Notifier.Reindex(ctx, order.ID)

	order.Items = make([]models.OrderItem, len(newOrder.Items))
	for i, it := range newOrder.Items {
		order.Items[i] = models.OrderItem{OrderID: order.ID, ProductID: it.ProductID, Quantity: it.Quantity, Price: it.Price, Subtotal: it.Subtotal}
	}

	l.Info("checkout_done", "order_id", order.ID, "state", saga.State, "warnings", len(warnings))
	return CheckoutResult{Order: order, SagaID: saga.ID, Warnings: warnings}, nil
}

func (s *CheckoutService) startSaga(ctx context.Context, o models.NewOrder) (*models.CheckoutSaga, error) {
	raw, err := json.Marshal(sagaPayload{Order: o, Items: o.Items})
	if err != nil {
		return nil, err
	}
	saga := &models.CheckoutSaga{
		ID:          uuid.NewString(),
		UserID:      o.UserID,
		OrderNumber: o.OrderNumber,
		Payload:     string(raw),
		State:       models.SagaStarted,
	}
	if err := s.d.Sagas.CreateSaga(ctx, saga); err != nil {
		return nil, err
	}
	return saga, nil
}

func (s *CheckoutService) saveSaga(ctx context.Context, saga *models.CheckoutSaga) {
	if err := s.d.Sagas.SaveSaga(ctx, saga); err != nil {
		logging.FromContext(ctx).Error("checkout_saga_error", "saga_id", saga.ID, "error", err)
	}
}

// Repair completes a half-created order from its saga: missing items first,
// then the initial tracking row.
func (s *CheckoutService) Repair(ctx context.Context, orderID int64) (RepairResult, error) {
	l := logging.FromContext(ctx).With("order_id", orderID)

	o, err := s.d.Orders.GetOrder(ctx, orderID)
	if err != nil {
		return RepairResult{}, upstream(err, fmt.Sprintf("order %d", orderID))
	}
	saga, err := s.d.Sagas.SagaByOrder(ctx, orderID)
	if err != nil {
		return RepairResult{}, fmt.Errorf("%w: no checkout record for order %d", ErrNotFound, orderID)
	}
	var payload sagaPayload
	if err := json.Unmarshal([]byte(saga.Payload), &payload); err != nil {
		return RepairResult{}, fmt.Errorf("decode saga %s: %w", saga.ID, err)
	}

	res := RepairResult{OrderID: orderID}

	n, err := s.d.Orders.CountItems(ctx, orderID)
	if err != nil {
		return res, upstream(err, "count order items")
	}
	if n == 0 {
		if err := s.d.Submitter.insertItems(ctx, orderID, payload.Items); err != nil {
			l.Warn("repair_order_error", "step", StepItems, "error", err)
			return res, upstream(err, "insert order items")
		}
		res.ItemsInserted = len(payload.Items)
	}
	saga.ItemsDone = true

	tracking, err := s.d.Orders.ListTracking(ctx, orderID)
	if err != nil {
		return res, upstream(err, "list tracking")
	}
	if len(tracking) == 0 {
		if err := s.d.Submitter.insertCreatedTracking(ctx, orderID, o.StatusID, o.UserID); err != nil {
			l.Warn("repair_order_error", "step", StepTracking, "error", err)
			return res, upstream(err, "insert tracking")
		}
		res.TrackingInserted = true
	}
	saga.TrackingDone = true
	saga.HeaderDone = true
	saga.State = models.SagaCompleted
	saga.LastError = ""
	s.saveSaga(ctx, saga)

	res.State = saga.State
	l.Info("order_repaired", "items_inserted", res.ItemsInserted, "tracking_inserted", res.TrackingInserted)
	return res, nil
}

// Checkouts lists journaled checkouts, newest first. An empty state lists all.
func (s *CheckoutService) Checkouts(ctx context.Context, state string, limit int) ([]models.CheckoutSaga, error) {
	switch state {
	case "", models.SagaStarted, models.SagaCompleted, models.SagaPartial, models.SagaFailed:
	default:
		return nil, fmt.Errorf("%w: unknown checkout state %q", ErrValidation, state)
	}
	list, err := s.d.Sagas.ListSagas(ctx, state, limit)
	if err != nil {
		logging.FromContext(ctx).Error("checkout_saga_error", "error", err)
		return nil, fmt.Errorf("%w: checkout journal unavailable", ErrUpstream)
	}
	return list, nil
}

// RetryTasks lists queued follow-up work, newest first.
func (s *CheckoutService) RetryTasks(ctx context.Context, status string, limit int) ([]models.RetryTask, error) {
	switch status {
	case "", models.TaskPending, models.TaskDone, models.TaskDead:
	default:
		return nil, fmt.Errorf("%w: unknown task status %q", ErrValidation, status)
	}
	list, err := s.d.Sagas.ListTasks(ctx, status, limit)
	if err != nil {
		logging.FromContext(ctx).Error("retry_task_list_error", "error", err)
		return nil, fmt.Errorf("%w: retry queue unavailable", ErrUpstream)
	}
	return list, nil
}

// Execute runs one retry task; it is the RetryWorker's executor.
func (s *CheckoutService) Execute(ctx context.Context, task *models.RetryTask) error {
	switch task.Kind {
	case models.TaskVoucherUsage:
		var t models.VoucherUsageTask
		if err := json.Unmarshal([]byte(task.Payload), &t); err != nil {
			return err
		}
		t, err := s.d.Vouchers.Apply(ctx, t)
		if raw, merr := json.Marshal(t); merr == nil {
			task.Payload = string(raw)
		}
		return err
	case models.TaskStockAdjust:
		var t models.StockAdjustTask
		if err := json.Unmarshal([]byte(task.Payload), &t); err != nil {
			return err
		}
		return s.d.Stock.adjustStock(ctx, t.ProductID, t.Delta)
	case models.TaskRepairOrder:
		_, err := s.Repair(ctx, task.OrderID)
		return err
	case models.TaskCartClear:
		var t models.CartClearTask
		if err := json.Unmarshal([]byte(task.Payload), &t); err != nil {
			return err
		}
		return s.d.Cart.ClearCart(ctx, t.UserID)
	case models.TaskPublishEvent:
		var ev events.Event
		if err := json.Unmarshal([]byte(task.Payload), &ev); err != nil {
			return err
		}
		return s.d.Notifier.pub.Publish(ctx, ev)
	default:
		return fmt.Errorf("unknown retry task kind %q", task.Kind)
	}
}
