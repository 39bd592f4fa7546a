// Package search keeps an Elasticsearch index of orders for the admin panel.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/elastic/go-elasticsearch/v9/esapi"
)

const DefaultIndex = "orders"

type OrderDoc struct {
	ID              int64     `json:"id"`
	OrderNumber     string    `json:"order_number"`
	UserID          int64     `json:"user_id"`
	CustomerName    string    `json:"customer_name,omitempty"`
	Status          string    `json:"status,omitempty"`
	TotalAmount     string    `json:"total_amount"`
	HasPaymentProof bool      `json:"has_payment_proof"`
	CreatedAt       time.Time `json:"created_at"`
}

type Params struct {
	Query string
	// HasProof narrows results to orders with (true) or without (false) a
	// payment proof. Nil means either.
	HasProof *bool
	Offset   int
	Limit    int
}

type Results struct {
	Total int64      `json:"total"`
	Items []OrderDoc `json:"items"`
}

type OrderIndex struct {
	es    *elasticsearch.Client
	index string
}

func NewClient(url, user, password string) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
		Username:  user,
		Password:  password,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}

	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("elasticsearch info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch info: %s", res.Status())
	}
	return client, nil
}

func NewOrderIndex(es *elasticsearch.Client, index string) *OrderIndex {
	if index == "" {
		index = DefaultIndex
	}
	return &OrderIndex{es: es, index: index}
}

func (x *OrderIndex) Index(ctx context.Context, doc OrderDoc) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	res, err := x.es.Index(
		x.index,
		bytes.NewReader(body),
		x.es.Index.WithContext(ctx),
		x.es.Index.WithDocumentID(strconv.FormatInt(doc.ID, 10)),
		x.es.Index.WithRefresh("wait_for"),
	)
	if err != nil {
		return fmt.Errorf("index order %d: %w", doc.ID, err)
	}
	defer res.Body.Close()
	return responseError(res, "index order")
}

func (x *OrderIndex) Search(ctx context.Context, p Params) (Results, error) {
	if p.Limit <= 0 {
		p.Limit = 20
	}
	if p.Offset < 0 {
		p.Offset = 0
	}

	body, err := json.Marshal(buildQuery(p))
	if err != nil {
		return Results{}, err
	}

	res, err := x.es.Search(
		x.es.Search.WithContext(ctx),
		x.es.Search.WithIndex(x.index),
		x.es.Search.WithBody(bytes.NewReader(body)),
		x.es.Search.WithFrom(p.Offset),
		x.es.Search.WithSize(p.Limit),
		x.es.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return Results{}, fmt.Errorf("search orders: %w", err)
	}
	defer res.Body.Close()
	if err := responseError(res, "search orders"); err != nil {
		return Results{}, err
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source OrderDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return Results{}, fmt.Errorf("decode search response: %w", err)
	}

	out := Results{Total: parsed.Hits.Total.Value, Items: make([]OrderDoc, 0, len(parsed.Hits.Hits))}
	for _, h := range parsed.Hits.Hits {
		out.Items = append(out.Items, h.Source)
	}
	return out, nil
}

func buildQuery(p Params) map[string]any {
	var must []any
	if q := strings.TrimSpace(p.Query); q != "" {
		must = append(must, map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"order_number^2", "customer_name"},
				"type":   "phrase_prefix",
			},
		})
	}
	var filter []any
	if p.HasProof != nil {
		filter = append(filter, map[string]any{
			"term": map[string]any{"has_payment_proof": *p.HasProof},
		})
	}
	if len(must) == 0 {
		must = append(must, map[string]any{"match_all": map[string]any{}})
	}
	return map[string]any{
		"query": map[string]any{
			"bool": map[string]any{"must": must, "filter": filter},
		},
		"sort": []any{map[string]any{"created_at": map[string]any{"order": "desc"}}},
	}
}

func responseError(res *esapi.Response, op string) error {
	if !res.IsError() {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return fmt.Errorf("%s: %s: %s", op, res.Status(), strings.TrimSpace(string(b)))
}
