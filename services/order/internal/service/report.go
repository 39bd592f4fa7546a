package service

import (
	"context"
	"fmt"
	"io"

	"github.com/Skotchmaster/storefront/services/order/internal/models"
	"github.com/tealeg/xlsx"
)

const exportPageSize = 500

var exportHeaders = []string{
	"ID", "No Pesanan", "Tanggal", "Pelanggan", "Status", "Metode Pembayaran",
	"Subtotal", "Diskon", "Voucher", "Total", "Bukti Pembayaran",
}

type ReportService struct {
	orders OrderStore
}

func NewReportService(orders OrderStore) *ReportService {
	return &ReportService{orders: orders}
}

// ExportOrders writes every order matching f as an xlsx workbook.
func (s *ReportService) ExportOrders(ctx context.Context, w io.Writer, f models.OrderFilter) (int, error) {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Orders")
	if err != nil {
		return 0, fmt.Errorf("add sheet: %w", err)
	}

	header := sheet.AddRow()
	for _, h := range exportHeaders {
		header.AddCell().SetValue(h)
	}

	f.UserID = 0
	f.Limit = exportPageSize
	total := 0
	for offset := 0; ; offset += exportPageSize {
		f.Offset = offset
		page, err := s.orders.ListOrders(ctx, f)
		if err != nil {
			return 0, upstream(err, "list orders for export")
		}
		for _, o := range page {
			writeOrderRow(sheet.AddRow(), o)
		}
		total += len(page)
		if len(page) < exportPageSize {
			break
		}
	}

	if err := file.Write(w); err != nil {
		return 0, fmt.Errorf("write xlsx: %w", err)
	}
	return total, nil
}

func writeOrderRow(row *xlsx.Row, o models.Order) {
	customer, status, voucher, proof := "", "", "", ""
	if o.Customer != nil {
		customer = o.Customer.Nama
	}
	if o.Status != nil {
		status = o.Status.Nama
	}
	if o.VoucherCode != nil {
		voucher = *o.VoucherCode
	}
	if o.HasPaymentProof() {
		proof = *o.PaymentProofURL
	}

	row.AddCell().SetInt64(o.ID)
	row.AddCell().SetValue(o.OrderNumber)
	row.AddCell().SetValue(o.CreatedAt.Format("2006-01-02 15:04:05"))
	row.AddCell().SetValue(customer)
	row.AddCell().SetValue(status)
	row.AddCell().SetValue(o.PaymentMethod)
	row.AddCell().SetFloat(o.OriginalAmount.InexactFloat64())
	row.AddCell().SetFloat(o.DiscountAmount.InexactFloat64())
	row.AddCell().SetValue(voucher)
	row.AddCell().SetFloat(o.TotalAmount.InexactFloat64())
	row.AddCell().SetValue(proof)
}
