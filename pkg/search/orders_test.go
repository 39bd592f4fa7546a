package search

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T, h http.HandlerFunc) *OrderIndex {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		h(w, r)
	}))
	t.Cleanup(srv.Close)

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return NewOrderIndex(es, "")
}

func TestIndex(t *testing.T) {
	var gotPath string
	var gotDoc OrderDoc
	x := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotDoc)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	})

	err := x.Index(t.Context(), OrderDoc{ID: 7, OrderNumber: "ORD-20250101-101010", TotalAmount: "150000"})
	require.NoError(t, err)
	assert.Equal(t, "/orders/_doc/7", gotPath)
	assert.Equal(t, "ORD-20250101-101010", gotDoc.OrderNumber)
}

func TestSearch(t *testing.T) {
	var gotBody string
	var gotQuery string
	x := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"hits":{"total":{"value":1},"hits":[{"_source":{"id":7,"order_number":"ORD-1","customer_name":"Budi"}}]}}`))
	})

	yes := true
	res, err := x.Search(t.Context(), Params{Query: "budi", HasProof: &yes, Offset: 10, Limit: 5})
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Total)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "Budi", res.Items[0].CustomerName)

	assert.Contains(t, gotBody, `"multi_match"`)
	assert.Contains(t, gotBody, `"has_payment_proof":true`)
	assert.Contains(t, gotQuery, "from=10")
	assert.Contains(t, gotQuery, "size=5")
}

func TestSearch_ErrorResponse(t *testing.T) {
	x := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad query"}`))
	})

	_, err := x.Search(t.Context(), Params{Query: "x"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "bad query"))
}

func TestBuildQuery_MatchAllWhenEmpty(t *testing.T) {
	q := buildQuery(Params{})
	b, err := json.Marshal(q)
	require.NoError(t, err)
	assert.Contains(t, string(b), "match_all")
	assert.NotContains(t, string(b), "has_payment_proof")
}
