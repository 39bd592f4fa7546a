package service

import (
	"context"
	"testing"
	"time"

	"github.com/Skotchmaster/storefront/services/order/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedVoucher(h *harness, mutate func(*models.Voucher)) models.Voucher {
	v := models.Voucher{
		ID:           7,
		Kode:         "HEMAT10",
		Nama:         "Hemat 10%",
		TipeDiskon:   models.DiscountPercent,
		NilaiDiskon:  rupiah(10),
		MinPembelian: rupiah(5000),
		Kuota:        2,
		Terpakai:     1,
		IsActive:     true,
		Mulai:        models.At(fixedNow.Add(-24 * time.Hour)),
		Berakhir:     models.At(fixedNow.Add(24 * time.Hour)),
	}
	if mutate != nil {
		mutate(&v)
	}
	h.store.vouchers[v.ID] = v
	return v
}

func TestQuote(t *testing.T) {
	h := newHarness(t)
	seedVoucher(h, nil)

	q, err := h.vouchers.Quote(context.Background(), "HEMAT10", rupiah(10000))
	require.NoError(t, err)
	assert.True(t, rupiah(1000).Equal(q.Discount))
	assert.True(t, rupiah(9000).Equal(q.Total))
}

func TestQuote_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*models.Voucher)
		code     string
		subtotal int64
		want     error
	}{
		{"empty code", nil, "", 10000, ErrValidation},
		{"unknown", nil, "NOPE", 10000, ErrNotFound},
		{"inactive", func(v *models.Voucher) { v.IsActive = false }, "HEMAT10", 10000, ErrConflict},
		{"expired", func(v *models.Voucher) { v.Berakhir = models.At(fixedNow.Add(-time.Hour)) }, "HEMAT10", 10000, ErrConflict},
		{"quota", func(v *models.Voucher) { v.Terpakai = 2 }, "HEMAT10", 10000, ErrConflict},
		{"min purchase", nil, "HEMAT10", 4000, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			seedVoucher(h, tt.mutate)
			_, err := h.vouchers.Quote(context.Background(), tt.code, rupiah(tt.subtotal))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestApply_DeactivatesAtQuota(t *testing.T) {
	h := newHarness(t)
	seedVoucher(h, nil)

	warnings := h.vouchers.ApplyBestEffort(context.Background(), models.VoucherUsage{VoucherID: 7, UserID: 3, OrderID: 101, DiscountAmount: rupiah(1000)})
	assert.Empty(t, warnings)
	require.Len(t, h.store.usages, 1)
	assert.Equal(t, 2, h.store.vouchers[7].Terpakai)
	assert.False(t, h.store.vouchers[7].IsActive)
}

func TestApply_FailureIsQueuedNotReturned(t *testing.T) {
	h := newHarness(t)
	seedVoucher(h, func(v *models.Voucher) { v.Kuota = 0 })
	h.store.fail["PatchVoucher"] = errBoom
	ctx := context.Background()

	warnings := h.vouchers.ApplyBestEffort(ctx, models.VoucherUsage{VoucherID: 7, UserID: 3, OrderID: 101, DiscountAmount: rupiah(1000)})
	assert.Len(t, warnings, 1)
	require.Len(t, h.store.usages, 1)

	tasks := h.pendingTasks(t)
	require.Len(t, tasks, 1)
	assert.Equal(t, models.TaskVoucherUsage, tasks[0].Kind)
	assert.Contains(t, tasks[0].Payload, `"usage_recorded":true`)

	// the retry must not record a second usage row
	delete(h.store.fail, "PatchVoucher")
	require.NoError(t, h.checkout.Execute(ctx, &tasks[0]))
	assert.Len(t, h.store.usages, 1)
	assert.Equal(t, 2, h.store.vouchers[7].Terpakai)
	assert.True(t, h.store.vouchers[7].IsActive)
}
