package service

import (
	"fmt"
	"strings"

	"github.com/Skotchmaster/storefront/services/order/internal/models"
	"github.com/shopspring/decimal"
)

type AssembleInput struct {
	UserID            int64
	Items             []models.CartItem
	Voucher           *models.Voucher
	Discount          decimal.Decimal
	ShippingAddressID int64
	Payment           models.PaymentMethod
	Notes             string
}

// Assembler turns checked cart lines into a NewOrder. It makes no calls.
type Assembler struct {
	Clock models.Clock
}

// OrderNumber is ORD-YYYYMMDD-HHMMSS in local time. Two orders in the same
// second get the same number.
func (a Assembler) OrderNumber() string {
	return "ORD-" + a.Clock.Now().Format("20060102-150405")
}

func Subtotal(items []models.CartItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		if it.Product != nil {
			sum = sum.Add(it.Product.Harga.Mul(decimal.NewFromInt(int64(it.Jumlah))))
		}
	}
	return sum
}

func (a Assembler) Assemble(in AssembleInput) (models.NewOrder, error) {
	now := a.Clock.Now()
	subtotal := Subtotal(in.Items)
	discount := in.Discount
	if discount.IsNegative() {
		discount = decimal.Zero
	}

	o := models.NewOrder{
		UserID:            in.UserID,
		OrderNumber:       a.OrderNumber(),
		OriginalAmount:    subtotal,
		DiscountAmount:    discount,
		TotalAmount:       subtotal.Sub(discount),
		ShippingAddressID: in.ShippingAddressID,
		StatusID:          models.FallbackPendingID,
		PaymentMethod:     in.Payment.Name,
		PaymentAccount:    in.Payment.AccountNumber,
		CreatedAt:         models.At(now),
		UpdatedAt:         models.At(now),
	}
	if in.Voucher != nil && in.Voucher.ID > 0 {
		id, code := in.Voucher.ID, in.Voucher.Kode
		o.VoucherID, o.VoucherCode = &id, &code
	}
	if notes := strings.TrimSpace(in.Notes); notes != "" {
		o.Notes = &notes
	}

	o.Items = make([]models.NewOrderItem, 0, len(in.Items))
	for _, it := range in.Items {
		price := decimal.Zero
		if it.Product != nil {
			price = it.Product.Harga
		}
		o.Items = append(o.Items, models.NewOrderItem{
			ProductID: it.ProductID,
			Quantity:  it.Jumlah,
			Price:     price,
			Subtotal:  price.Mul(decimal.NewFromInt(int64(it.Jumlah))),
		})
	}

	if err := ValidateNewOrder(o); err != nil {
		return models.NewOrder{}, err
	}
	return o, nil
}

// ValidateNewOrder checks the fields in the order the checkout screen did.
func ValidateNewOrder(o models.NewOrder) error {
	if o.UserID <= 0 {
		return ErrInvalidUserID
	}
	if !o.TotalAmount.IsPositive() {
		return ErrInvalidTotalAmount
	}
	if o.ShippingAddressID <= 0 {
		return ErrInvalidShippingAddress
	}
	if len(o.Items) == 0 {
		return ErrEmptyOrderItems
	}
	for i, it := range o.Items {
		if it.ProductID <= 0 {
			return fmt.Errorf("%w (line %d)", ErrInvalidProductID, i+1)
		}
		if it.Quantity <= 0 {
			return fmt.Errorf("%w (line %d)", ErrInvalidQuantity, i+1)
		}
		if !it.Price.IsPositive() {
			return fmt.Errorf("%w (line %d)", ErrInvalidPrice, i+1)
		}
	}
	return nil
}
