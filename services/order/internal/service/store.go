package service

import (
	"context"
	"io"
	"time"

	"github.com/Skotchmaster/storefront/pkg/events"
	"github.com/Skotchmaster/storefront/pkg/search"
	"github.com/Skotchmaster/storefront/services/order/internal/models"
)

type ProductStore interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	GetProduct(ctx context.Context, id int64) (models.Product, error)
	UpdateStock(ctx context.Context, productID int64, stock int) error
}

type StatusStore interface {
	ListStatuses(ctx context.Context) ([]models.OrderStatus, error)
}

type OrderStore interface {
	InsertOrder(ctx context.Context, o models.NewOrder) (models.Order, error)
	GetOrder(ctx context.Context, id int64) (models.Order, error)
	ListOrders(ctx context.Context, f models.OrderFilter) ([]models.Order, error)
	SearchOrders(ctx context.Context, term string, limit int) ([]models.Order, error)
	ListOrdersWithoutItems(ctx context.Context, since time.Time, limit int) ([]models.Order, error)
	PatchOrder(ctx context.Context, id int64, fields map[string]any) error
	InsertItems(ctx context.Context, items []models.OrderItem) error
	ListItems(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	CountItems(ctx context.Context, orderID int64) (int64, error)
	InsertTracking(ctx context.Context, t models.OrderTracking) error
	ListTracking(ctx context.Context, orderID int64) ([]models.OrderTracking, error)
}

type VoucherStore interface {
	GetVoucherByCode(ctx context.Context, code string) (models.Voucher, error)
	GetVoucher(ctx context.Context, id int64) (models.Voucher, error)
	InsertVoucherUsage(ctx context.Context, u models.VoucherUsage) error
	PatchVoucher(ctx context.Context, id int64, fields map[string]any) error
}

type AddressStore interface {
	ListAddresses(ctx context.Context, userID int64) ([]models.Address, error)
	ClearPrimary(ctx context.Context, userID int64) error
	MarkPrimary(ctx context.Context, userID, addressID int64) error
}

type CartStore interface {
	ListCart(ctx context.Context, userID int64) ([]models.CartItem, error)
	ClearCart(ctx context.Context, userID int64) error
}

// Store is everything kept on the BaaS REST API.
type Store interface {
	ProductStore
	StatusStore
	OrderStore
	VoucherStore
	AddressStore
	CartStore
}

type SagaStore interface {
	CreateSaga(ctx context.Context, s *models.CheckoutSaga) error
	SaveSaga(ctx context.Context, s *models.CheckoutSaga) error
	SagaByOrder(ctx context.Context, orderID int64) (*models.CheckoutSaga, error)
	ListSagas(ctx context.Context, state string, limit int) ([]models.CheckoutSaga, error)
	EnqueueTask(ctx context.Context, t *models.RetryTask) error
	ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]models.RetryTask, error)
	SaveTask(ctx context.Context, t *models.RetryTask) error
	ListTasks(ctx context.Context, status string, limit int) ([]models.RetryTask, error)
}

type ObjectStorage interface {
	Upload(ctx context.Context, bucket, path string, body io.Reader, contentType string, upsert bool) error
	PublicURL(bucket, path string) string
	PathFromPublicURL(bucket, publicURL string) (string, bool)
	Remove(ctx context.Context, bucket string, paths []string) error
}

type OrderIndex interface {
	Index(ctx context.Context, doc search.OrderDoc) error
	Search(ctx context.Context, p search.Params) (search.Results, error)
}

type Publisher interface {
	Publish(ctx context.Context, ev events.Event) error
}

type Cache interface {
	Get(ctx context.Context, key string, out any) error
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
}
