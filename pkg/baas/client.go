// Package baas talks to the backend-as-a-service platform that owns all
// persistent state: a PostgREST style table API under /rest/v1 and an object
// storage API under /storage/v1.
package baas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return NewClientWithHTTP(baseURL, apiKey, &http.Client{
		Timeout: 15 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	})
}

func NewClientWithHTTP(baseURL, apiKey string, hc *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: hc,
	}
}

func (c *Client) restURL(table string, q url.Values) string {
	u := c.baseURL + "/rest/v1/" + table
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (c *Client) newRequest(ctx context.Context, method, u string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	return req, nil
}

func (c *Client) do(req *http.Request, out any) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrNetwork, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resp, decodeAPIError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent || req.Method == http.MethodHead {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp, nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return resp, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

func encodeBody(body any) (io.Reader, error) {
	if body == nil {
		return nil, nil
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	return bytes.NewReader(b), nil
}

// Select reads rows of table matching q into out (a pointer to a slice).
func (c *Client) Select(ctx context.Context, table string, q *Query, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, c.restURL(table, q.Values()), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	_, err = c.do(req, out)
	return err
}

// Insert creates one row (body is a struct or map) or many (body is a slice).
// When out is non-nil the created rows are returned into it.
func (c *Client) Insert(ctx context.Context, table string, body any, out any) error {
	rd, err := encodeBody(body)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, c.restURL(table, nil), rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", prefer(out))
	_, err = c.do(req, out)
	return err
}

// Update patches every row matching q. An empty filter is refused so that a
// missing id never rewrites a whole table.
func (c *Client) Update(ctx context.Context, table string, q *Query, body any, out any) error {
	if q.Empty() {
		return fmt.Errorf("update %s: refusing unfiltered update", table)
	}
	rd, err := encodeBody(body)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPatch, c.restURL(table, q.Values()), rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", prefer(out))
	_, err = c.do(req, out)
	return err
}

func (c *Client) Delete(ctx context.Context, table string, q *Query) error {
	if q.Empty() {
		return fmt.Errorf("delete %s: refusing unfiltered delete", table)
	}
	req, err := c.newRequest(ctx, http.MethodDelete, c.restURL(table, q.Values()), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "return=minimal")
	_, err = c.do(req, nil)
	return err
}

// Count returns the exact number of rows matching q using a HEAD request
// and the Content-Range header ("0-9/42" or "*/0").
func (c *Client) Count(ctx context.Context, table string, q *Query) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodHead, c.restURL(table, q.Values()), nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Prefer", "count=exact")
	resp, err := c.do(req, nil)
	if err != nil {
		return 0, err
	}
	return parseContentRange(resp.Header.Get("Content-Range"))
}

func parseContentRange(v string) (int64, error) {
	i := strings.LastIndex(v, "/")
	if i < 0 || i == len(v)-1 {
		return 0, fmt.Errorf("unexpected content-range %q", v)
	}
	total := v[i+1:]
	if total == "*" {
		return 0, fmt.Errorf("content-range %q has no total", v)
	}
	n, err := strconv.ParseInt(total, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse content-range %q: %w", v, err)
	}
	return n, nil
}

func prefer(out any) string {
	if out == nil {
		return "return=minimal"
	}
	return "return=representation"
}
