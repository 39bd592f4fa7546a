package baas

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

func escapePath(p string) string {
	parts := strings.Split(strings.TrimLeft(p, "/"), "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}
	return strings.Join(parts, "/")
}

// Upload stores body under bucket/path. With upsert=false an existing object
// makes the platform answer 409.
func (c *Client) Upload(ctx context.Context, bucket, path string, body io.Reader, contentType string, upsert bool) error {
	u := c.baseURL + "/storage/v1/object/" + url.PathEscape(bucket) + "/" + escapePath(path)
	req, err := c.newRequest(ctx, http.MethodPost, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Cache-Control", "max-age=3600")
	req.Header.Set("x-upsert", fmt.Sprint(upsert))
	_, err = c.do(req, nil)
	return err
}

// PublicURL is the address of an object in a public bucket. No request is made.
func (c *Client) PublicURL(bucket, path string) string {
	return c.baseURL + "/storage/v1/object/public/" + url.PathEscape(bucket) + "/" + escapePath(path)
}

// PathFromPublicURL extracts the object path of a public URL of bucket.
func (c *Client) PathFromPublicURL(bucket, publicURL string) (string, bool) {
	marker := "/storage/v1/object/public/" + url.PathEscape(bucket) + "/"
	i := strings.Index(publicURL, marker)
	if i < 0 {
		return "", false
	}
	p, err := url.PathUnescape(publicURL[i+len(marker):])
	if err != nil || p == "" {
		return "", false
	}
	return p, true
}

func (c *Client) Remove(ctx context.Context, bucket string, paths []string) error {
	b, err := json.Marshal(map[string][]string{"prefixes": paths})
	if err != nil {
		return fmt.Errorf("encode body: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodDelete, c.baseURL+"/storage/v1/object/"+url.PathEscape(bucket), strings.NewReader(string(b)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	_, err = c.do(req, nil)
	return err
}
