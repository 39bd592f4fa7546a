package repo

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/Skotchmaster/storefront/pkg/baas"
	"github.com/Skotchmaster/storefront/services/order/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method string
	path   string
	query  string
	body   string
}

func newRestRepo(t *testing.T, h func(w http.ResponseWriter, r *http.Request)) (*RestRepo, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		calls = append(calls, recorded{r.Method, r.URL.Path, r.URL.RawQuery, string(b)})
		w.Header().Set("Content-Type", "application/json")
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewRestRepo(baas.NewClient(srv.URL, "service-key")), &calls
}

func TestGetProduct_NotFound(t *testing.T) {
	r, calls := newRestRepo(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := r.GetProduct(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
	require.Len(t, *calls, 1)
	assert.Equal(t, "/rest/v1/products", (*calls)[0].path)
	assert.Contains(t, (*calls)[0].query, "id=eq.42")
}

func TestUpdateStock(t *testing.T) {
	r, calls := newRestRepo(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, r.UpdateStock(context.Background(), 5, 3))
	c := (*calls)[0]
	assert.Equal(t, http.MethodPatch, c.method)
	assert.Contains(t, c.query, "id=eq.5")
	assert.JSONEq(t, `{"stok":3}`, c.body)
}

func TestInsertOrder(t *testing.T) {
	r, calls := newRestRepo(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`[{"id":15,"order_number":"ORD-20250102-030405","total_amount":9000,"created_at":"2025-01-02T03:04:05"}]`))
	})

	o, err := r.InsertOrder(context.Background(), models.NewOrder{
		UserID:      3,
		OrderNumber: "ORD-20250102-030405",
		TotalAmount: decimal.NewFromInt(9000),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(15), o.ID)
	assert.True(t, decimal.NewFromInt(9000).Equal(o.TotalAmount))

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte((*calls)[0].body), &body))
	assert.EqualValues(t, 9000, body["total_amount"])
	assert.Contains(t, body, "shipping_address_id")
	assert.NotContains(t, body, "Items")
}

func TestListOrders_Filters(t *testing.T) {
	r, calls := newRestRepo(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	yes := true
	_, err := r.ListOrders(context.Background(), models.OrderFilter{UserID: 3, StatusID: 2, HasProof: &yes, Limit: 20, Offset: 40})
	require.NoError(t, err)

	q := (*calls)[0].query
	for _, want := range []string{"user_id=eq.3", "status_id=eq.2", "payment_proof_url=not.is.null", "limit=20", "offset=40", "order=created_at.desc"} {
		assert.Contains(t, q, want)
	}
}

func TestSearchOrders_Dedupes(t *testing.T) {
	r, calls := newRestRepo(t, func(w http.ResponseWriter, req *http.Request) {
		if strings.Contains(req.URL.RawQuery, "order_number=") {
			_, _ = w.Write([]byte(`[{"id":1},{"id":2}]`))
			return
		}
		_, _ = w.Write([]byte(`[{"id":2},{"id":3}]`))
	})

	got, err := r.SearchOrders(context.Background(), "budi", 10)
	require.NoError(t, err)
	ids := []int64{}
	for _, o := range got {
		ids = append(ids, o.ID)
	}
	assert.Equal(t, []int64{1, 2, 3}, ids)
	assert.Contains(t, (*calls)[0].query, "order_number=ilike.%2Abudi%2A")
	assert.Contains(t, (*calls)[1].query, "users.nama=ilike.%2Abudi%2A")
}

func TestListOrdersWithoutItems(t *testing.T) {
	// 150 newer orders with items in front of one older order without any
	type row struct {
		ID    int64            `json:"id"`
		Items []map[string]int `json:"order_items"`
	}
	var rows []row
	for id := int64(150); id >= 1; id-- {
		rows = append(rows, row{ID: id + 1, Items: []map[string]int{{"id": int(id)}}})
	}
	rows = append(rows, row{ID: 1, Items: []map[string]int{}})

	r, calls := newRestRepo(t, func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		out := rows[:0:0]
		for _, o := range rows {
			if q.Get("order_items") == "is.null" && len(o.Items) > 0 {
				continue
			}
			out = append(out, o)
		}
		if n, err := strconv.Atoi(q.Get("limit")); err == nil && n < len(out) {
			out = out[:n]
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	got, err := r.ListOrdersWithoutItems(context.Background(), time.Now().Add(-time.Hour), 100)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)

	q := (*calls)[0].query
	assert.Contains(t, q, "order_items=is.null")
	assert.Contains(t, q, "limit=100")
	assert.Contains(t, q, "select=%2A%2Corder_items%21left%28id%29")
}

func TestCountItems(t *testing.T) {
	r, calls := newRestRepo(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Range", "*/0")
	})

	n, err := r.CountItems(context.Background(), 9)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, http.MethodHead, (*calls)[0].method)
	assert.Contains(t, (*calls)[0].query, "order_id=eq.9")
}

func TestAddressesPrimary(t *testing.T) {
	r, calls := newRestRepo(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	ctx := context.Background()

	require.NoError(t, r.ClearPrimary(ctx, 3))
	require.NoError(t, r.MarkPrimary(ctx, 3, 8))

	assert.Contains(t, (*calls)[0].query, "user_id=eq.3")
	assert.JSONEq(t, `{"is_primary":false}`, (*calls)[0].body)
	assert.Contains(t, (*calls)[1].query, "id=eq.8")
	assert.JSONEq(t, `{"is_primary":true}`, (*calls)[1].body)
}

func TestClearCart(t *testing.T) {
	r, calls := newRestRepo(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	require.NoError(t, r.ClearCart(context.Background(), 3))
	assert.Equal(t, http.MethodDelete, (*calls)[0].method)
	assert.Equal(t, "/rest/v1/keranjang", (*calls)[0].path)
}
