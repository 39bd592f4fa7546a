package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Skotchmaster/storefront/pkg/baas"
	"github.com/Skotchmaster/storefront/services/order/internal/models"
)

var ErrNotFound = errors.New("record not found")

const (
	tableProducts     = "products"
	tableStatuses     = "order_status"
	tableOrders       = "orders"
	tableOrderItems   = "order_items"
	tableTracking     = "order_tracking"
	tableVouchers     = "vouchers"
	tableVoucherUsage = "voucher_usage"
	tableAddresses    = "user_addresses"
	tableCart         = "keranjang"
)

const (
	orderSelect = "*,order_status(*),users(nama,email,no_hp)," +
		"user_addresses(*,provinsi(*),kota_kabupaten(*),kecamatan(*))," +
		"order_items(*,products(*))"
	addressSelect  = "*,provinsi(*),kota_kabupaten(*),kecamatan(*)"
	trackingSelect = "*,order_status(*)"
)

// RestRepo keeps every table of the storefront on the BaaS REST API.
type RestRepo struct {
	Client *baas.Client
}

func NewRestRepo(c *baas.Client) *RestRepo {
	return &RestRepo{Client: c}
}

func first[T any](rows []T, what string, id any) (T, error) {
	if len(rows) == 0 {
		var zero T
		return zero, fmt.Errorf("%w: %s %v", ErrNotFound, what, id)
	}
	return rows[0], nil
}

func (r *RestRepo) ListProducts(ctx context.Context) ([]models.Product, error) {
	var out []models.Product
	q := baas.NewQuery().Select("id,nama_produk,harga,stok").Order("id", true)
	if err := r.Client.Select(ctx, tableProducts, q, &out); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return out, nil
}

func (r *RestRepo) GetProduct(ctx context.Context, id int64) (models.Product, error) {
	var rows []models.Product
	q := baas.NewQuery().Select("id,nama_produk,harga,stok").Eq("id", id)
	if err := r.Client.Select(ctx, tableProducts, q, &rows); err != nil {
		return models.Product{}, fmt.Errorf("get product %d: %w", id, err)
	}
	return first(rows, "product", id)
}

func (r *RestRepo) UpdateStock(ctx context.Context, productID int64, stock int) error {
	q := baas.NewQuery().Eq("id", productID)
	if err := r.Client.Update(ctx, tableProducts, q, map[string]any{"stok": stock}, nil); err != nil {
		return fmt.Errorf("update stock of product %d: %w", productID, err)
	}
	return nil
}

func (r *RestRepo) ListStatuses(ctx context.Context) ([]models.OrderStatus, error) {
	var out []models.OrderStatus
	if err := r.Client.Select(ctx, tableStatuses, baas.NewQuery().Select("*").Order("id", true), &out); err != nil {
		return nil, fmt.Errorf("list order statuses: %w", err)
	}
	return out, nil
}

func (r *RestRepo) InsertOrder(ctx context.Context, o models.NewOrder) (models.Order, error) {
	var rows []models.Order
	if err := r.Client.Insert(ctx, tableOrders, o, &rows); err != nil {
		return models.Order{}, fmt.Errorf("insert order %s: %w", o.OrderNumber, err)
	}
	if len(rows) == 0 {
		return models.Order{}, nil
	}
	return rows[0], nil
}

func (r *RestRepo) GetOrder(ctx context.Context, id int64) (models.Order, error) {
	var rows []models.Order
	q := baas.NewQuery().Select(orderSelect).Eq("id", id)
	if err := r.Client.Select(ctx, tableOrders, q, &rows); err != nil {
		return models.Order{}, fmt.Errorf("get order %d: %w", id, err)
	}
	return first(rows, "order", id)
}

func (r *RestRepo) ListOrders(ctx context.Context, f models.OrderFilter) ([]models.Order, error) {
	q := baas.NewQuery().Select(orderSelect)
	if f.UserID > 0 {
		q.Eq("user_id", f.UserID)
	}
	if f.StatusID > 0 {
		q.Eq("status_id", f.StatusID)
	}
	if f.HasProof != nil {
		if *f.HasProof {
			q.NotIs("payment_proof_url", "null")
		} else {
			q.Is("payment_proof_url", "null")
		}
	}
	q.Order("created_at", false).Limit(f.Limit).Offset(f.Offset)

	var out []models.Order
	if err := r.Client.Select(ctx, tableOrders, q, &out); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return out, nil
}

// SearchOrders matches order_number or the customer name, case-insensitively.
func (r *RestRepo) SearchOrders(ctx context.Context, term string, limit int) ([]models.Order, error) {
	pattern := "%" + term + "%"

	var byNumber []models.Order
	q := baas.NewQuery().Select(orderSelect).ILike("order_number", pattern).Order("created_at", false).Limit(limit)
	if err := r.Client.Select(ctx, tableOrders, q, &byNumber); err != nil {
		return nil, fmt.Errorf("search orders by number: %w", err)
	}

	var byCustomer []models.Order
	q = baas.NewQuery().
		Select("*,order_status(*),users!inner(nama,email,no_hp),user_addresses(*)").
		ILike("users.nama", pattern).
		Order("created_at", false).
		Limit(limit)
	if err := r.Client.Select(ctx, tableOrders, q, &byCustomer); err != nil {
		return nil, fmt.Errorf("search orders by customer: %w", err)
	}

	seen := make(map[int64]bool, len(byNumber))
	out := make([]models.Order, 0, len(byNumber)+len(byCustomer))
	for _, list := range [][]models.Order{byNumber, byCustomer} {
		for _, o := range list {
			if !seen[o.ID] {
				seen[o.ID] = true
				out = append(out, o)
			}
		}
	}
	return out, nil
}

// ListOrdersWithoutItems returns recent orders that have no order_items row.
// The filter runs on the server so the limit counts only itemless orders.
func (r *RestRepo) ListOrdersWithoutItems(ctx context.Context, since time.Time, limit int) ([]models.Order, error) {
	q := baas.NewQuery().
		Select("*,order_items!left(id)").
		Is(tableOrderItems, "null").
		Gte("created_at", since.UTC().Format(time.RFC3339)).
		Order("created_at", false).
		Limit(limit)
	var out []models.Order
	if err := r.Client.Select(ctx, tableOrders, q, &out); err != nil {
		return nil, fmt.Errorf("list orders without items: %w", err)
	}
	return out, nil
}

func (r *RestRepo) PatchOrder(ctx context.Context, id int64, fields map[string]any) error {
	if err := r.Client.Update(ctx, tableOrders, baas.NewQuery().Eq("id", id), fields, nil); err != nil {
		return fmt.Errorf("patch order %d: %w", id, err)
	}
	return nil
}

func (r *RestRepo) InsertItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	if err := r.Client.Insert(ctx, tableOrderItems, items, nil); err != nil {
		return fmt.Errorf("insert order items: %w", err)
	}
	return nil
}

func (r *RestRepo) ListItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var out []models.OrderItem
	q := baas.NewQuery().Select("*,products(*)").Eq("order_id", orderID).Order("id", true)
	if err := r.Client.Select(ctx, tableOrderItems, q, &out); err != nil {
		return nil, fmt.Errorf("list items of order %d: %w", orderID, err)
	}
	return out, nil
}

func (r *RestRepo) CountItems(ctx context.Context, orderID int64) (int64, error) {
	n, err := r.Client.Count(ctx, tableOrderItems, baas.NewQuery().Eq("order_id", orderID))
	if err != nil {
		return 0, fmt.Errorf("count items of order %d: %w", orderID, err)
	}
	return n, nil
}

func (r *RestRepo) InsertTracking(ctx context.Context, t models.OrderTracking) error {
	t.ID, t.Status = 0, nil
	if err := r.Client.Insert(ctx, tableTracking, t, nil); err != nil {
		return fmt.Errorf("insert tracking for order %d: %w", t.OrderID, err)
	}
	return nil
}

func (r *RestRepo) ListTracking(ctx context.Context, orderID int64) ([]models.OrderTracking, error) {
	var out []models.OrderTracking
	q := baas.NewQuery().Select(trackingSelect).Eq("order_id", orderID).Order("created_at", false)
	if err := r.Client.Select(ctx, tableTracking, q, &out); err != nil {
		return nil, fmt.Errorf("list tracking of order %d: %w", orderID, err)
	}
	return out, nil
}

func (r *RestRepo) GetVoucherByCode(ctx context.Context, code string) (models.Voucher, error) {
	var rows []models.Voucher
	if err := r.Client.Select(ctx, tableVouchers, baas.NewQuery().Select("*").Eq("kode_voucher", code), &rows); err != nil {
		return models.Voucher{}, fmt.Errorf("get voucher %q: %w", code, err)
	}
	return first(rows, "voucher", code)
}

func (r *RestRepo) GetVoucher(ctx context.Context, id int64) (models.Voucher, error) {
	var rows []models.Voucher
	if err := r.Client.Select(ctx, tableVouchers, baas.NewQuery().Select("*").Eq("id", id), &rows); err != nil {
		return models.Voucher{}, fmt.Errorf("get voucher %d: %w", id, err)
	}
	return first(rows, "voucher", id)
}

func (r *RestRepo) InsertVoucherUsage(ctx context.Context, u models.VoucherUsage) error {
	if err := r.Client.Insert(ctx, tableVoucherUsage, u, nil); err != nil {
		return fmt.Errorf("insert voucher usage for order %d: %w", u.OrderID, err)
	}
	return nil
}

func (r *RestRepo) PatchVoucher(ctx context.Context, id int64, fields map[string]any) error {
	if err := r.Client.Update(ctx, tableVouchers, baas.NewQuery().Eq("id", id), fields, nil); err != nil {
		return fmt.Errorf("patch voucher %d: %w", id, err)
	}
	return nil
}

func (r *RestRepo) ListAddresses(ctx context.Context, userID int64) ([]models.Address, error) {
	var out []models.Address
	q := baas.NewQuery().Select(addressSelect).Eq("user_id", userID).Order("id", true)
	if err := r.Client.Select(ctx, tableAddresses, q, &out); err != nil {
		return nil, fmt.Errorf("list addresses of user %d: %w", userID, err)
	}
	return out, nil
}

func (r *RestRepo) ClearPrimary(ctx context.Context, userID int64) error {
	q := baas.NewQuery().Eq("user_id", userID).Eq("is_primary", true)
	if err := r.Client.Update(ctx, tableAddresses, q, map[string]any{"is_primary": false}, nil); err != nil {
		return fmt.Errorf("clear primary address of user %d: %w", userID, err)
	}
	return nil
}

func (r *RestRepo) MarkPrimary(ctx context.Context, userID, addressID int64) error {
	q := baas.NewQuery().Eq("id", addressID).Eq("user_id", userID)
	if err := r.Client.Update(ctx, tableAddresses, q, map[string]any{"is_primary": true}, nil); err != nil {
		return fmt.Errorf("mark address %d primary: %w", addressID, err)
	}
	return nil
}

func (r *RestRepo) ListCart(ctx context.Context, userID int64) ([]models.CartItem, error) {
	var out []models.CartItem
	q := baas.NewQuery().Select("*,products(id,nama_produk,harga,stok)").Eq("user_id", userID).Order("id", true)
	if err := r.Client.Select(ctx, tableCart, q, &out); err != nil {
		return nil, fmt.Errorf("list cart of user %d: %w", userID, err)
	}
	return out, nil
}

func (r *RestRepo) ClearCart(ctx context.Context, userID int64) error {
	if err := r.Client.Delete(ctx, tableCart, baas.NewQuery().Eq("user_id", userID)); err != nil {
		return fmt.Errorf("clear cart of user %d: %w", userID, err)
	}
	return nil
}
