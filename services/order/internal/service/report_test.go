package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/Skotchmaster/storefront/services/order/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx"
)

func TestExportOrders(t *testing.T) {
	h := newHarness(t)
	code := "POTONG1000"
	url := "https://baas.test/proof.png"
	h.store.putOrder(models.Order{
		ID:              101,
		UserID:          buyer.UserID,
		OrderNumber:     "ORD-20250314-092653",
		OriginalAmount:  rupiah(10000),
		DiscountAmount:  rupiah(1000),
		TotalAmount:     rupiah(9000),
		VoucherCode:     &code,
		PaymentMethod:   "Bank BRI",
		CreatedAt:       models.At(fixedNow),
		Customer:        &models.Customer{Nama: "Budi"},
		Status:          &models.OrderStatus{ID: 1, Nama: "Menunggu Pembayaran"},
		PaymentProofURL: &url,
	})
	h.store.putOrder(models.Order{ID: 102, UserID: other.UserID, OrderNumber: "ORD-20250314-100000", TotalAmount: rupiah(5000)})

	var buf bytes.Buffer
	n, err := NewReportService(h.store).ExportOrders(context.Background(), &buf, models.OrderFilter{UserID: buyer.UserID})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	sheet := f.Sheet["Orders"]
	require.NotNil(t, sheet)
	require.Len(t, sheet.Rows, 3)

	assert.Equal(t, "No Pesanan", sheet.Rows[0].Cells[1].String())
	row := sheet.Rows[2]
	assert.Equal(t, "ORD-20250314-092653", row.Cells[1].String())
	assert.Equal(t, "2025-03-14 09:26:53", row.Cells[2].String())
	assert.Equal(t, "Budi", row.Cells[3].String())
	assert.Equal(t, "POTONG1000", row.Cells[8].String())
	total, err := row.Cells[9].Float()
	require.NoError(t, err)
	assert.Equal(t, 9000.0, total)
	assert.Equal(t, url, row.Cells[10].String())
}
