package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DiscountPercent = "persen"
	DiscountFixed   = "nominal"
)

type Voucher struct {
	ID           int64           `json:"id"`
	Kode         string          `json:"kode_voucher"`
	Nama         string          `json:"nama_voucher"`
	Deskripsi    string          `json:"deskripsi,omitempty"`
	TipeDiskon   string          `json:"tipe_diskon"`
	NilaiDiskon  decimal.Decimal `json:"nilai_diskon"`
	MinPembelian decimal.Decimal `json:"min_pembelian"`
	MaksDiskon   decimal.Decimal `json:"maks_diskon"`
	Kuota        int             `json:"kuota"`
	Terpakai     int             `json:"terpakai"`
	IsActive     bool            `json:"is_active"`
	Mulai        Timestamp       `json:"tanggal_mulai"`
	Berakhir     Timestamp       `json:"tanggal_berakhir"`
}

// Discount for a given subtotal. Never negative and never above subtotal.
func (v Voucher) Discount(subtotal decimal.Decimal) decimal.Decimal {
	if !subtotal.IsPositive() {
		return decimal.Zero
	}
	var d decimal.Decimal
	switch v.TipeDiskon {
	case DiscountPercent:
		d = subtotal.Mul(v.NilaiDiskon).Div(decimal.NewFromInt(100)).Round(2)
		if v.MaksDiskon.IsPositive() && d.GreaterThan(v.MaksDiskon) {
			d = v.MaksDiskon
		}
	default:
		d = v.NilaiDiskon
	}
	if d.IsNegative() {
		return decimal.Zero
	}
	return decimal.Min(d, subtotal)
}

func (v Voucher) QuotaExhausted() bool {
	return v.Kuota > 0 && v.Terpakai >= v.Kuota
}

func (v Voucher) InWindow(now time.Time) bool {
	if !v.Mulai.IsZero() && now.Before(v.Mulai.Time) {
		return false
	}
	if !v.Berakhir.IsZero() && now.After(v.Berakhir.Time) {
		return false
	}
	return true
}

type VoucherUsage struct {
	VoucherID      int64           `json:"voucher_id"`
	UserID         int64           `json:"user_id"`
	OrderID        int64           `json:"order_id"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	UsedAt         Timestamp       `json:"used_at"`
}

type VoucherQuote struct {
	Voucher  Voucher         `json:"voucher"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount_amount"`
	Total    decimal.Decimal `json:"total_amount"`
}
