package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// numeric columns are sent as JSON numbers, not strings
	decimal.MarshalJSONWithoutQuotes = true
}

type Product struct {
	ID    int64           `json:"id"`
	Nama  string          `json:"nama_produk"`
	Harga decimal.Decimal `json:"harga"`
	Stok  int             `json:"stok"`
}

type CartItem struct {
	ID        int64    `json:"id,omitempty"`
	UserID    int64    `json:"user_id,omitempty"`
	ProductID int64    `json:"product_id"`
	Jumlah    int      `json:"jumlah"`
	Product   *Product `json:"products,omitempty"`
}

// StockCheck is the availability verdict for one cart line.
type StockCheck struct {
	ProductID    int64    `json:"product_id"`
	Quantity     int      `json:"quantity"`
	Available    bool     `json:"available"`
	CurrentStock int      `json:"current_stock"`
	Product      *Product `json:"product,omitempty"`
	Reason       string   `json:"reason,omitempty"`
}

type Region struct {
	ID   int64  `json:"id"`
	Nama string `json:"nama"`
}

type Address struct {
	ID            int64   `json:"id"`
	UserID        int64   `json:"user_id"`
	ProvinsiID    int64   `json:"provinsi_id,omitempty"`
	KotaID        int64   `json:"kota_kabupaten_id,omitempty"`
	KecamatanID   int64   `json:"kecamatan_id,omitempty"`
	NamaDesa      string  `json:"nama_desa,omitempty"`
	RT            string  `json:"rt,omitempty"`
	RW            string  `json:"rw,omitempty"`
	AlamatLengkap string  `json:"alamat_lengkap"`
	IsPrimary     bool    `json:"is_primary"`
	Provinsi      *Region `json:"provinsi,omitempty"`
	Kota          *Region `json:"kota_kabupaten,omitempty"`
	Kecamatan     *Region `json:"kecamatan,omitempty"`
}

type Customer struct {
	Nama  string `json:"nama,omitempty"`
	Email string `json:"email,omitempty"`
	NoHP  string `json:"no_hp,omitempty"`
}

type PaymentMethod struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	BankCode      string `json:"bank_code"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
}

var PaymentMethods = []PaymentMethod{
	{ID: "bri", Name: "Bank BRI", BankCode: "BRI", AccountNumber: "1234567890123", AccountName: "Pakan Burung Bandung"},
	{ID: "bni", Name: "Bank BNI", BankCode: "BNI", AccountNumber: "0987654321098", AccountName: "Pakan Burung Bandung"},
	{ID: "bca", Name: "Bank BCA", BankCode: "BCA", AccountNumber: "5678901234567", AccountName: "Pakan Burung Bandung"},
}

func FindPaymentMethod(id string) (PaymentMethod, bool) {
	for _, m := range PaymentMethods {
		if m.ID == id {
			return m, true
		}
	}
	return PaymentMethod{}, false
}

// Clock is injected wherever wall time ends up in persisted data.
type Clock func() time.Time

func (c Clock) Now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}
