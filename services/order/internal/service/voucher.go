package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/services/order/internal/models"
	"github.com/shopspring/decimal"
)

type VoucherService struct {
	store VoucherStore
	retry *RetryQueue
	clock models.Clock
}

func NewVoucherService(store VoucherStore, retry *RetryQueue, clock models.Clock) *VoucherService {
	return &VoucherService{store: store, retry: retry, clock: clock}
}

// Quote checks that the voucher can be used for subtotal and computes the discount.
func (s *VoucherService) Quote(ctx context.Context, code string, subtotal decimal.Decimal) (models.VoucherQuote, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return models.VoucherQuote{}, fmt.Errorf("%w: voucher code required", ErrValidation)
	}

	v, err := s.store.GetVoucherByCode(ctx, code)
	if err != nil {
		return models.VoucherQuote{}, upstream(err, "voucher "+code)
	}

	switch {
	case !v.IsActive:
		return models.VoucherQuote{}, fmt.Errorf("%w: voucher %s is not active", ErrConflict, code)
	case !v.InWindow(s.clock.Now()):
		return models.VoucherQuote{}, fmt.Errorf("%w: voucher %s is outside its validity period", ErrConflict, code)
	case v.QuotaExhausted():
		return models.VoucherQuote{}, fmt.Errorf("%w: voucher %s quota exhausted", ErrConflict, code)
	case subtotal.LessThan(v.MinPembelian):
		return models.VoucherQuote{}, fmt.Errorf("%w: voucher %s requires a minimum purchase of %s", ErrValidation, code, v.MinPembelian.String())
	}

	d := v.Discount(subtotal)
	return models.VoucherQuote{
		Voucher:  v,
		Subtotal: subtotal,
		Discount: d,
		Total:    subtotal.Sub(d),
	}, nil
}

// Apply records the usage row, then bumps terpakai and deactivates the
// voucher once its quota is reached.
func (s *VoucherService) Apply(ctx context.Context, task models.VoucherUsageTask) (models.VoucherUsageTask, error) {
	u := task.Usage
	if !task.UsageRecorded {
		if err := s.store.InsertVoucherUsage(ctx, u); err != nil {
			return task, fmt.Errorf("record voucher usage: %w", err)
		}
		task.UsageRecorded = true
	}

	v, err := s.store.GetVoucher(ctx, u.VoucherID)
	if err != nil {
		return task, fmt.Errorf("read voucher %d: %w", u.VoucherID, err)
	}
	used := v.Terpakai + 1
	fields := map[string]any{"terpakai": used}
	if v.Kuota > 0 && used >= v.Kuota {
		fields["is_active"] = false
	}
	if err := s.store.PatchVoucher(ctx, u.VoucherID, fields); err != nil {
		return task, fmt.Errorf("update voucher %d: %w", u.VoucherID, err)
	}
	return task, nil
}

// ApplyBestEffort never fails the caller: a failure is logged, queued for
// retry and returned as a warning. The discount stays on the order either way.
func (s *VoucherService) ApplyBestEffort(ctx context.Context, u models.VoucherUsage) []string {
	l := logging.FromContext(ctx).With("order_id", u.OrderID, "voucher_id", u.VoucherID)

	task, err := s.Apply(ctx, models.VoucherUsageTask{Usage: u})
	if err == nil {
		l.Info("voucher_applied", "discount", u.DiscountAmount.String())
		return nil
	}
	l.Warn("voucher_apply_error", "usage_recorded", task.UsageRecorded, "error", err)
	s.retry.Enqueue(ctx, models.TaskVoucherUsage, u.OrderID, task)
	return []string{"voucher usage not recorded, retry scheduled"}
}
