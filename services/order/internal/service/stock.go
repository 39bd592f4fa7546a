package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/services/order/internal/models"
)

const (
	reasonProductMissing = "Produk tidak ditemukan"
	reasonLowStock       = "Stok tidak mencukupi. Tersedia: %d"
)

// mergeLines sums the quantities of lines that share a product. The first
// line of a product keeps its position.
func mergeLines(items []models.CartItem) []models.CartItem {
	pos := make(map[int64]int, len(items))
	out := make([]models.CartItem, 0, len(items))
	for _, it := range items {
		if i, ok := pos[it.ProductID]; ok {
			out[i].Jumlah += it.Jumlah
			continue
		}
		pos[it.ProductID] = len(out)
		out = append(out, it)
	}
	return out
}

// CheckStock matches every cart line against the product snapshot. Lines
// must be unique per product; see mergeLines.
func CheckStock(items []models.CartItem, products []models.Product) []models.StockCheck {
	byID := make(map[int64]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	checks := make([]models.StockCheck, 0, len(items))
	for _, it := range items {
		c := models.StockCheck{ProductID: it.ProductID, Quantity: it.Jumlah}
		p, ok := byID[it.ProductID]
		switch {
		case !ok:
			c.Reason = reasonProductMissing
		case it.Jumlah > p.Stok:
			c.CurrentStock = p.Stok
			c.Reason = fmt.Sprintf(reasonLowStock, p.Stok)
		default:
			c.Available = true
			c.CurrentStock = p.Stok
			product := p
			c.Product = &product
		}
		checks = append(checks, c)
	}
	return checks
}

// StockError lists the cart lines that block checkout.
type StockError struct {
	Unavailable []models.StockCheck
}

func (e *StockError) Error() string {
	parts := make([]string, len(e.Unavailable))
	for i, c := range e.Unavailable {
		parts[i] = fmt.Sprintf("product %d: %s", c.ProductID, c.Reason)
	}
	return "unavailable items: " + strings.Join(parts, ", ")
}

func (e *StockError) Unwrap() []error {
	var out []error
	var missing, low bool
	for _, c := range e.Unavailable {
		if c.Reason == reasonProductMissing {
			missing = true
		} else {
			low = true
		}
	}
	if missing {
		out = append(out, ErrProductNotFound)
	}
	if low {
		out = append(out, ErrInsufficientStock)
	}
	return out
}

// stockVerdict returns a *StockError when any line is unavailable.
func stockVerdict(checks []models.StockCheck) error {
	var bad []models.StockCheck
	for _, c := range checks {
		if !c.Available {
			bad = append(bad, c)
		}
	}
	if len(bad) == 0 {
		return nil
	}
	return &StockError{Unavailable: bad}
}

type StockService struct {
	products ProductStore
	retry    *RetryQueue
}

func NewStockService(products ProductStore, retry *RetryQueue) *StockService {
	return &StockService{products: products, retry: retry}
}

// Decrement writes currentStock-quantity for every available line. Each
// product is written independently; failures are queued for retry and
// returned as warnings.
func (s *StockService) Decrement(ctx context.Context, orderID int64, checks []models.StockCheck) []string {
	l := logging.FromContext(ctx).With("order_id", orderID)

	var warnings []string
	for _, c := range checks {
		if !c.Available {
			continue
		}
		newStock := c.CurrentStock - c.Quantity
		if err := s.products.UpdateStock(ctx, c.ProductID, newStock); err != nil {
			l.Warn("stock_decrement_error", "product_id", c.ProductID, "new_stock", newStock, "error", err)
			s.retry.Enqueue(ctx, models.TaskStockAdjust, orderID, models.StockAdjustTask{ProductID: c.ProductID, Delta: -c.Quantity})
			warnings = append(warnings, fmt.Sprintf("stock of product %d not updated, retry scheduled", c.ProductID))
			continue
		}
		if newStock < 0 {
			l.Warn("stock_negative", "product_id", c.ProductID, "new_stock", newStock)
		}
		l.Debug("stock_decremented", "product_id", c.ProductID, "old_stock", c.CurrentStock, "new_stock", newStock)
	}
	return warnings
}

// Restore adds every item's quantity back to its product's current stock.
func (s *StockService) Restore(ctx context.Context, orderID int64, items []models.OrderItem) ([]models.StockRestoration, []string) {
	l := logging.FromContext(ctx).With("order_id", orderID)

	var warnings []string
	out := make([]models.StockRestoration, 0, len(items))
	for _, it := range items {
		r := models.StockRestoration{ProductID: it.ProductID, Quantity: it.Quantity}

		p, err := s.products.GetProduct(ctx, it.ProductID)
		if err == nil {
			r.ProductName = p.Nama
			r.OldStock = p.Stok
			r.NewStock = p.Stok + it.Quantity
			err = s.products.UpdateStock(ctx, it.ProductID, r.NewStock)
		}
		if err != nil {
			l.Warn("stock_restore_error", "product_id", it.ProductID, "quantity", it.Quantity, "error", err)
			s.retry.Enqueue(ctx, models.TaskStockAdjust, orderID, models.StockAdjustTask{ProductID: it.ProductID, Delta: it.Quantity})
			r.Error = "retry scheduled"
			warnings = append(warnings, fmt.Sprintf("stock of product %d not restored, retry scheduled", it.ProductID))
		}
		out = append(out, r)
	}
	return out, warnings
}

// adjustStock applies delta to the current stock. Used by retries.
func (s *StockService) adjustStock(ctx context.Context, productID int64, delta int) error {
	p, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	return s.products.UpdateStock(ctx, productID, p.Stok+delta)
}
