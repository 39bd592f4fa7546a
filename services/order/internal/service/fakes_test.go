package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Skotchmaster/storefront/pkg/db"
	"github.com/Skotchmaster/storefront/pkg/events"
	"github.com/Skotchmaster/storefront/pkg/session"
	"github.com/Skotchmaster/storefront/services/order/internal/models"
	"github.com/Skotchmaster/storefront/services/order/internal/repo"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("connection reset by peer")

var (
	fixedNow   = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	fixedClock = models.Clock(func() time.Time { return fixedNow })

	buyer  = session.New(3, session.RoleUser, "token")
	other  = session.New(4, session.RoleUser, "token")
	admin  = session.New(1, session.RoleAdmin, "token")
	rupiah = decimal.NewFromInt
)

// fakeStore keeps the BaaS tables in memory. fail[method] makes that method
// return the error.
type fakeStore struct {
	mu          sync.Mutex
	products    map[int64]models.Product
	statuses    []models.OrderStatus
	orders      map[int64]models.Order
	items       []models.OrderItem
	tracking    []models.OrderTracking
	vouchers    map[int64]models.Voucher
	usages      []models.VoucherUsage
	addresses   []models.Address
	cart        map[int64][]models.CartItem
	nextOrderID int64
	fail        map[string]error
	noOrderID   bool
	calls       []string

	// afterInsertOrder runs once the order header is stored.
	afterInsertOrder func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products: map[int64]models.Product{},
		statuses: []models.OrderStatus{
			{ID: 1, Nama: "Menunggu Pembayaran"},
			{ID: 2, Nama: "Dikonfirmasi"},
			{ID: 3, Nama: "Diproses"},
			{ID: 4, Nama: "Dikirim"},
			{ID: 5, Nama: "Selesai"},
			{ID: 6, Nama: "Dibatalkan"},
		},
		orders:      map[int64]models.Order{},
		vouchers:    map[int64]models.Voucher{},
		cart:        map[int64][]models.CartItem{},
		nextOrderID: 100,
		fail:        map[string]error{},
	}
}

func (f *fakeStore) call(name string) error {
	f.calls = append(f.calls, name)
	return f.fail[name]
}

// callCtx is call for writes that fail once the request context is done.
func (f *fakeStore) callCtx(ctx context.Context, name string) error {
	if err := f.call(name); err != nil {
		return err
	}
	return ctx.Err()
}

func (f *fakeStore) addProduct(id int64, name string, price int64, stock int) {
	f.products[id] = models.Product{ID: id, Nama: name, Harga: rupiah(price), Stok: stock}
}

func (f *fakeStore) stock(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[id].Stok
}

func (f *fakeStore) itemsOf(orderID int64) []models.OrderItem {
	var out []models.OrderItem
	for _, it := range f.items {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	return out
}

func (f *fakeStore) trackingOf(orderID int64) []models.OrderTracking {
	var out []models.OrderTracking
	for _, t := range f.tracking {
		if t.OrderID == orderID {
			out = append(out, t)
		}
	}
	return out
}

func (f *fakeStore) ListProducts(context.Context) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("ListProducts"); err != nil {
		return nil, err
	}
	out := make([]models.Product, 0, len(f.products))
	for _, p := range f.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) GetProduct(_ context.Context, id int64) (models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("GetProduct"); err != nil {
		return models.Product{}, err
	}
	p, ok := f.products[id]
	if !ok {
		return models.Product{}, fmt.Errorf("%w: product %d", repo.ErrNotFound, id)
	}
	return p, nil
}

func (f *fakeStore) UpdateStock(ctx context.Context, id int64, stock int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.callCtx(ctx, "UpdateStock"); err != nil {
		return err
	}
	if err := f.fail[fmt.Sprintf("UpdateStock:%d", id)]; err != nil {
		return err
	}
	p := f.products[id]
	p.Stok = stock
	f.products[id] = p
	return nil
}

func (f *fakeStore) ListStatuses(context.Context) ([]models.OrderStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("ListStatuses"); err != nil {
		return nil, err
	}
	return append([]models.OrderStatus(nil), f.statuses...), nil
}

func (f *fakeStore) InsertOrder(_ context.Context, o models.NewOrder) (models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("InsertOrder"); err != nil {
		return models.Order{}, err
	}
	if f.noOrderID {
		return models.Order{}, nil
	}
	f.nextOrderID++
	row := models.Order{
		ID:                f.nextOrderID,
		UserID:            o.UserID,
		OrderNumber:       o.OrderNumber,
		OriginalAmount:    o.OriginalAmount,
		DiscountAmount:    o.DiscountAmount,
		TotalAmount:       o.TotalAmount,
		VoucherID:         o.VoucherID,
		VoucherCode:       o.VoucherCode,
		ShippingAddressID: o.ShippingAddressID,
		Notes:             o.Notes,
		StatusID:          o.StatusID,
		PaymentMethod:     o.PaymentMethod,
		PaymentAccount:    o.PaymentAccount,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
	f.orders[row.ID] = row
	if f.afterInsertOrder != nil {
		f.afterInsertOrder()
	}
	return row, nil
}

func (f *fakeStore) putOrder(o models.Order, items ...models.OrderItem) {
	f.orders[o.ID] = o
	for _, it := range items {
		it.OrderID = o.ID
		f.items = append(f.items, it)
	}
}

func (f *fakeStore) GetOrder(_ context.Context, id int64) (models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("GetOrder"); err != nil {
		return models.Order{}, err
	}
	o, ok := f.orders[id]
	if !ok {
		return models.Order{}, fmt.Errorf("%w: order %d", repo.ErrNotFound, id)
	}
	o.Items = f.itemsOf(id)
	return o, nil
}

func (f *fakeStore) ListOrders(_ context.Context, flt models.OrderFilter) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("ListOrders"); err != nil {
		return nil, err
	}
	var out []models.Order
	for _, o := range f.orders {
		if flt.UserID > 0 && o.UserID != flt.UserID {
			continue
		}
		if flt.StatusID > 0 && o.StatusID != flt.StatusID {
			continue
		}
		if flt.HasProof != nil && o.HasPaymentProof() != *flt.HasProof {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return window(out, flt.Offset, flt.Limit), nil
}

func (f *fakeStore) SearchOrders(_ context.Context, term string, limit int) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("SearchOrders"); err != nil {
		return nil, err
	}
	var out []models.Order
	for _, o := range f.orders {
		name := ""
		if o.Customer != nil {
			name = o.Customer.Nama
		}
		t := strings.ToLower(term)
		if strings.Contains(strings.ToLower(o.OrderNumber), t) || strings.Contains(strings.ToLower(name), t) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return window(out, 0, limit), nil
}

func (f *fakeStore) ListOrdersWithoutItems(_ context.Context, since time.Time, limit int) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Order
	for _, o := range f.orders {
		if len(f.itemsOf(o.ID)) == 0 && !o.CreatedAt.Before(since) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return window(out, 0, limit), nil
}

func (f *fakeStore) PatchOrder(ctx context.Context, id int64, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.callCtx(ctx, "PatchOrder"); err != nil {
		return err
	}
	o, ok := f.orders[id]
	if !ok {
		return fmt.Errorf("%w: order %d", repo.ErrNotFound, id)
	}
	for k, v := range fields {
		switch k {
		case "status_id":
			o.StatusID = v.(int64)
		case "payment_proof_url":
			s := v.(string)
			o.PaymentProofURL = &s
		case "payment_proof_filename":
			s := v.(string)
			o.PaymentProofFilename = &s
		case "updated_at":
			o.UpdatedAt = v.(models.Timestamp)
		}
	}
	f.orders[id] = o
	return nil
}

func (f *fakeStore) InsertItems(ctx context.Context, items []models.OrderItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.callCtx(ctx, "InsertItems"); err != nil {
		return err
	}
	f.items = append(f.items, items...)
	return nil
}

func (f *fakeStore) ListItems(_ context.Context, orderID int64) ([]models.OrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("ListItems"); err != nil {
		return nil, err
	}
	return f.itemsOf(orderID), nil
}

func (f *fakeStore) CountItems(_ context.Context, orderID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("CountItems"); err != nil {
		return 0, err
	}
	return int64(len(f.itemsOf(orderID))), nil
}

func (f *fakeStore) InsertTracking(ctx context.Context, t models.OrderTracking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.callCtx(ctx, "InsertTracking"); err != nil {
		return err
	}
	f.tracking = append(f.tracking, t)
	return nil
}

func (f *fakeStore) ListTracking(_ context.Context, orderID int64) ([]models.OrderTracking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("ListTracking"); err != nil {
		return nil, err
	}
	return f.trackingOf(orderID), nil
}

func (f *fakeStore) GetVoucherByCode(_ context.Context, code string) (models.Voucher, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.vouchers {
		if v.Kode == code {
			return v, nil
		}
	}
	return models.Voucher{}, fmt.Errorf("%w: voucher %s", repo.ErrNotFound, code)
}

func (f *fakeStore) GetVoucher(_ context.Context, id int64) (models.Voucher, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("GetVoucher"); err != nil {
		return models.Voucher{}, err
	}
	v, ok := f.vouchers[id]
	if !ok {
		return models.Voucher{}, fmt.Errorf("%w: voucher %d", repo.ErrNotFound, id)
	}
	return v, nil
}

func (f *fakeStore) InsertVoucherUsage(_ context.Context, u models.VoucherUsage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("InsertVoucherUsage"); err != nil {
		return err
	}
	f.usages = append(f.usages, u)
	return nil
}

func (f *fakeStore) PatchVoucher(_ context.Context, id int64, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("PatchVoucher"); err != nil {
		return err
	}
	v := f.vouchers[id]
	if n, ok := fields["terpakai"].(int); ok {
		v.Terpakai = n
	}
	if a, ok := fields["is_active"].(bool); ok {
		v.IsActive = a
	}
	f.vouchers[id] = v
	return nil
}

func (f *fakeStore) ListAddresses(_ context.Context, userID int64) ([]models.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("ListAddresses"); err != nil {
		return nil, err
	}
	var out []models.Address
	for _, a := range f.addresses {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) ClearPrimary(_ context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("ClearPrimary"); err != nil {
		return err
	}
	for i := range f.addresses {
		if f.addresses[i].UserID == userID {
			f.addresses[i].IsPrimary = false
		}
	}
	return nil
}

func (f *fakeStore) MarkPrimary(_ context.Context, userID, addressID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("MarkPrimary"); err != nil {
		return err
	}
	for i := range f.addresses {
		if f.addresses[i].UserID == userID && f.addresses[i].ID == addressID {
			f.addresses[i].IsPrimary = true
		}
	}
	return nil
}

func (f *fakeStore) ListCart(_ context.Context, userID int64) ([]models.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("ListCart"); err != nil {
		return nil, err
	}
	return append([]models.CartItem(nil), f.cart[userID]...), nil
}

func (f *fakeStore) ClearCart(ctx context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.callCtx(ctx, "ClearCart"); err != nil {
		return err
	}
	delete(f.cart, userID)
	return nil
}

func (f *fakeStore) called(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == name {
			return true
		}
	}
	return false
}

// mockPublisher records published events.
type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, ev events.Event) error {
	return m.Called(ctx, ev).Error(0)
}

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) Upload(ctx context.Context, bucket, path string, body io.Reader, contentType string, upsert bool) error {
	b, _ := io.ReadAll(body)
	return m.Called(ctx, bucket, path, b, contentType, upsert).Error(0)
}

func (m *mockStorage) PublicURL(bucket, path string) string {
	return "https://baas.test/storage/v1/object/public/" + bucket + "/" + path
}

func (m *mockStorage) PathFromPublicURL(bucket, publicURL string) (string, bool) {
	prefix := "https://baas.test/storage/v1/object/public/" + bucket + "/"
	if !strings.HasPrefix(publicURL, prefix) {
		return "", false
	}
	return strings.TrimPrefix(publicURL, prefix), true
}

func (m *mockStorage) Remove(ctx context.Context, bucket string, paths []string) error {
	return m.Called(ctx, bucket, paths).Error(0)
}

func newSagaStore(t *testing.T) *repo.GormSagaRepo {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gdb, err := db.OpenDialector(context.Background(), sqlite.Open("file:"+name+"?mode=memory&cache=shared"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })
	r := &repo.GormSagaRepo{DB: gdb}
	require.NoError(t, r.Migrate())
	return r
}

// harness wires every service over one fake store.
type harness struct {
	store    *fakeStore
	sagas    *repo.GormSagaRepo
	pub      *mockPublisher
	retry    *RetryQueue
	statuses *StatusService
	stock    *StockService
	vouchers *VoucherService
	orders   *OrderService
	checkout *CheckoutService
	notify   *Notifier
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{store: newFakeStore(), sagas: newSagaStore(t), pub: &mockPublisher{}}
	h.pub.On("Publish", mock.Anything, mock.Anything).Return(nil).Maybe()

	h.retry = NewRetryQueue(h.sagas)
	h.statuses = NewStatusService(h.store, nil, nil)
	h.stock = NewStockService(h.store, h.retry)
	h.vouchers = NewVoucherService(h.store, h.retry, fixedClock)
	h.notify = NewNotifier(h.store, h.pub, nil, h.retry, fixedClock)
	h.orders = NewOrderService(h.store, h.statuses, h.stock, h.notify, nil, fixedClock)
	h.checkout = NewCheckoutService(CheckoutDeps{
		Products:  h.store,
		Cart:      h.store,
		Orders:    h.store,
		Sagas:     h.sagas,
		Addresses: NewAddressService(h.store),
		Vouchers:  h.vouchers,
		Stock:     h.stock,
		Submitter: NewSubmitter(h.store, h.statuses, fixedClock),
		Notifier:  h.notify,
		Retry:     h.retry,
		Clock:     fixedClock,
	})
	return h
}

func (h *harness) pendingTasks(t *testing.T) []models.RetryTask {
	t.Helper()
	tasks, err := h.sagas.ListTasks(context.Background(), models.TaskPending, 100)
	require.NoError(t, err)
	return tasks
}

func (h *harness) publishedTypes() []string {
	var out []string
	for _, c := range h.pub.Calls {
		out = append(out, c.Arguments.Get(1).(events.Event).Type)
	}
	return out
}
