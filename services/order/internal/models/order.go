package models

import (
	"github.com/shopspring/decimal"
)

// NewOrder is the normalized order-creation request built at checkout.
type NewOrder struct {
	UserID            int64           `json:"user_id"`
	OrderNumber       string          `json:"order_number"`
	OriginalAmount    decimal.Decimal `json:"original_amount"`
	DiscountAmount    decimal.Decimal `json:"discount_amount"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	VoucherID         *int64          `json:"voucher_id"`
	VoucherCode       *string         `json:"voucher_code"`
	ShippingAddressID int64           `json:"shipping_address_id"`
	Notes             *string         `json:"notes"`
	StatusID          int64           `json:"status_id"`
	PaymentMethod     string          `json:"payment_method"`
	PaymentAccount    string          `json:"payment_account"`
	CreatedAt         Timestamp       `json:"created_at"`
	UpdatedAt         Timestamp       `json:"updated_at"`
	Items             []NewOrderItem  `json:"-"`
}

type NewOrderItem struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type Order struct {
	ID                   int64           `json:"id"`
	UserID               int64           `json:"user_id"`
	OrderNumber          string          `json:"order_number"`
	OriginalAmount       decimal.Decimal `json:"original_amount"`
	DiscountAmount       decimal.Decimal `json:"discount_amount"`
	TotalAmount          decimal.Decimal `json:"total_amount"`
	VoucherID            *int64          `json:"voucher_id"`
	VoucherCode          *string         `json:"voucher_code"`
	ShippingAddressID    int64           `json:"shipping_address_id"`
	Notes                *string         `json:"notes"`
	StatusID             int64           `json:"status_id"`
	PaymentMethod        string          `json:"payment_method"`
	PaymentAccount       string          `json:"payment_account"`
	PaymentProofURL      *string         `json:"payment_proof_url"`
	PaymentProofFilename *string         `json:"payment_proof_filename"`
	CreatedAt            Timestamp       `json:"created_at"`
	UpdatedAt            Timestamp       `json:"updated_at"`

	Status   *OrderStatus `json:"order_status,omitempty"`
	Address  *Address     `json:"user_addresses,omitempty"`
	Customer *Customer    `json:"users,omitempty"`
	Items    []OrderItem  `json:"order_items,omitempty"`
}

func (o Order) HasPaymentProof() bool {
	return o.PaymentProofURL != nil && *o.PaymentProofURL != ""
}

type OrderItem struct {
	ID        int64           `json:"id,omitempty"`
	OrderID   int64           `json:"order_id"`
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Product   *Product        `json:"products,omitempty"`
}

// OrderTracking is an append-only audit row.
type OrderTracking struct {
	ID        int64        `json:"id,omitempty"`
	OrderID   int64        `json:"order_id"`
	StatusID  int64        `json:"status_id"`
	Notes     string       `json:"notes"`
	CreatedBy int64        `json:"created_by"`
	CreatedAt Timestamp    `json:"created_at"`
	Status    *OrderStatus `json:"order_status,omitempty"`
}

type OrderFilter struct {
	UserID   int64
	StatusID int64
	HasProof *bool
	Offset   int
	Limit    int
}

type StockRestoration struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	OldStock    int    `json:"old_stock"`
	NewStock    int    `json:"new_stock"`
	Error       string `json:"error,omitempty"`
}

type PaymentProof struct {
	OrderID  int64  `json:"order_id"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
}
