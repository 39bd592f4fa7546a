package models

import (
	"fmt"
	"strconv"
	"strings"
)

type StatusCode string

const (
	StatusUnknown    StatusCode = ""
	StatusPending    StatusCode = "pending"
	StatusConfirmed  StatusCode = "confirmed"
	StatusProcessing StatusCode = "processing"
	StatusShipped    StatusCode = "shipped"
	StatusDelivered  StatusCode = "delivered"
	StatusCancelled  StatusCode = "cancelled"
)

// Hardcoded ids used when the status table cannot be read.
const (
	FallbackPendingID   int64 = 1
	FallbackCancelledID int64 = 6
)

var statusAliases = map[string]StatusCode{
	"pending":      StatusPending,
	"menunggu":     StatusPending,
	"confirmed":    StatusConfirmed,
	"dikonfirmasi": StatusConfirmed,
	"processing":   StatusProcessing,
	"diproses":     StatusProcessing,
	"shipped":      StatusShipped,
	"dikirim":      StatusShipped,
	"delivered":    StatusDelivered,
	"selesai":      StatusDelivered,
	"completed":    StatusDelivered,
	"cancelled":    StatusCancelled,
	"dibatalkan":   StatusCancelled,
}

// ParseStatusCode matches whole aliases only, case-insensitively.
func ParseStatusCode(s string) StatusCode {
	return statusAliases[strings.ToLower(strings.TrimSpace(s))]
}

func (c StatusCode) Cancellable() bool {
	return c == StatusPending || c == StatusConfirmed || c == StatusProcessing
}

func (c StatusCode) Terminal() bool {
	return c == StatusDelivered || c == StatusCancelled
}

// DefaultStatusIDs mirrors the seed rows of order_status.
func DefaultStatusIDs() map[StatusCode]int64 {
	return map[StatusCode]int64{
		StatusPending:    1,
		StatusConfirmed:  2,
		StatusProcessing: 3,
		StatusShipped:    4,
		StatusDelivered:  5,
		StatusCancelled:  6,
	}
}

// ParseStatusIDs reads "pending=1,confirmed=2,...".
func ParseStatusIDs(s string) (map[StatusCode]int64, error) {
	out := map[StatusCode]int64{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("status ids: %q is not code=id", part)
		}
		code := ParseStatusCode(k)
		if code == StatusUnknown {
			return nil, fmt.Errorf("status ids: unknown status %q", k)
		}
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("status ids: bad id for %s: %q", k, v)
		}
		out[code] = id
	}
	return out, nil
}

// OrderStatus is a row of order_status. Nama is display text only.
type OrderStatus struct {
	ID   int64      `json:"id"`
	Nama string     `json:"nama"`
	Kode string     `json:"kode,omitempty"`
	Code StatusCode `json:"code,omitempty"`
}

type StatusCatalog struct {
	rows []OrderStatus
}

// NewStatusCatalog assigns a code to every row: from kode when present,
// otherwise by looking the id up in ids.
func NewStatusCatalog(rows []OrderStatus, ids map[StatusCode]int64) StatusCatalog {
	byID := make(map[int64]StatusCode, len(ids))
	for code, id := range ids {
		byID[id] = code
	}
	out := make([]OrderStatus, len(rows))
	for i, r := range rows {
		r.Code = ParseStatusCode(r.Kode)
		if r.Code == StatusUnknown {
			r.Code = byID[r.ID]
		}
		out[i] = r
	}
	return StatusCatalog{rows: out}
}

func (c StatusCatalog) Rows() []OrderStatus { return c.rows }

func (c StatusCatalog) ByID(id int64) (OrderStatus, bool) {
	for _, r := range c.rows {
		if r.ID == id {
			return r, true
		}
	}
	return OrderStatus{}, false
}

func (c StatusCatalog) IDOf(code StatusCode) (int64, bool) {
	for _, r := range c.rows {
		if r.Code == code {
			return r.ID, true
		}
	}
	return 0, false
}

func (c StatusCatalog) CodeOf(id int64) StatusCode {
	r, _ := c.ByID(id)
	return r.Code
}

// PendingID resolves the status for new orders: the pending row, else the
// first row, else the hardcoded default.
func (c StatusCatalog) PendingID() int64 {
	if id, ok := c.IDOf(StatusPending); ok {
		return id
	}
	if len(c.rows) > 0 {
		return c.rows[0].ID
	}
	return FallbackPendingID
}

func (c StatusCatalog) CancelledID() int64 {
	if id, ok := c.IDOf(StatusCancelled); ok {
		return id
	}
	return FallbackCancelledID
}

func (c StatusCatalog) DisplayName(id int64) string {
	if r, ok := c.ByID(id); ok && r.Nama != "" {
		return r.Nama
	}
	return fmt.Sprintf("status %d", id)
}
