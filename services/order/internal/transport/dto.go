package transport

type CheckoutItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// CheckoutRequest leaves Items empty to check out the stored cart.
type CheckoutRequest struct {
	Items             []CheckoutItem `json:"items"`
	ShippingAddressID int64          `json:"shipping_address_id"`
	VoucherCode       string         `json:"voucher_code"`
	PaymentMethod     string         `json:"payment_method"`
	Notes             string         `json:"notes"`
}

type UpdateStatusRequest struct {
	StatusID int64  `json:"status_id"`
	Notes    string `json:"notes"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

type UnavailableItem struct {
	ProductID    int64  `json:"product_id"`
	Quantity     int    `json:"quantity"`
	CurrentStock int    `json:"current_stock"`
	Reason       string `json:"reason"`
}

type StockErrorResponse struct {
	Message     string            `json:"message"`
	Unavailable []UnavailableItem `json:"unavailable_items"`
}

type ListMeta struct {
	Page    int   `json:"page"`
	Size    int   `json:"size"`
	Total   int64 `json:"total,omitempty"`
	HasPrev bool  `json:"has_prev"`
	HasNext bool  `json:"has_next"`
}
