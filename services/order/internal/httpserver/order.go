package httpserver

import (
	"fmt"
	"net/http"

	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/pagination"
	"github.com/Skotchmaster/storefront/services/order/internal/models"
	"github.com/Skotchmaster/storefront/services/order/internal/service"
	"github.com/Skotchmaster/storefront/services/order/internal/transport"
	"github.com/labstack/echo/v4"
)

type OrderHTTP struct {
	Checkout  *service.CheckoutService
	Orders    *service.OrderService
	Payments  *service.PaymentService
	Addresses *service.AddressService
	Vouchers  *service.VoucherService
	Statuses  *service.StatusService
	Reports   *service.ReportService
	Clock     models.Clock
}

// uploadLimit leaves room for the multipart envelope around the file.
func (h *OrderHTTP) uploadLimit() string {
	limit := int64(service.DefaultMaxProofBytes)
	if h.Payments != nil {
		limit = h.Payments.MaxBytes()
	}
	return fmt.Sprintf("%dK", limit/1024+512)
}

func (h *OrderHTTP) ListStatuses(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list_statuses")

	cat, err := h.Statuses.Catalog(ctx)
	if err != nil {
		return fail(c, l, "list_statuses_error", err)
	}
	return c.JSON(http.StatusOK, cat.Rows())
}

func (h *OrderHTTP) ListPaymentMethods(c echo.Context) error {
	return c.JSON(http.StatusOK, models.PaymentMethods)
}

func checkoutRequest(req transport.CheckoutRequest) service.CheckoutRequest {
	out := service.CheckoutRequest{
		ShippingAddressID: req.ShippingAddressID,
		VoucherCode:       req.VoucherCode,
		PaymentMethod:     req.PaymentMethod,
		Notes:             req.Notes,
	}
	for _, it := range req.Items {
		out.Items = append(out.Items, service.CartLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return out
}

func (h *OrderHTTP) PrepareCheckout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.prepare_checkout")

	sess, err := sessionOf(c)
	if err != nil {
		return err
	}
	var req transport.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("prepare_checkout_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	preview, err := h.Checkout.PrepareCheckout(ctx, sess, checkoutRequest(req))
	if err != nil {
		return fail(c, l, "prepare_checkout_error", err)
	}
	return c.JSON(http.StatusOK, preview)
}

func (h *OrderHTTP) Checkout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.checkout")

	sess, err := sessionOf(c)
	if err != nil {
		return err
	}
	var req transport.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("checkout_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	res, err := h.Checkout.Checkout(ctx, sess, checkoutRequest(req))
	if err != nil {
		return fail(c, l, "checkout_error", err)
	}

	l.Info("checkout_success", "order_id", res.Order.ID, "warnings", len(res.Warnings))
	return c.JSON(http.StatusCreated, res)
}

func (h *OrderHTTP) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list_orders")

	sess, err := sessionOf(c)
	if err != nil {
		return err
	}
	page := pagination.ParseIntDefault(c.QueryParam("page"), 1)
	offset, limit := pagination.Calculate(page, pagination.ParseIntDefault(c.QueryParam("size"), pagination.DefaultPageSize))

	list, err := h.Orders.ListUserOrders(ctx, sess, offset, limit)
	if err != nil {
		return fail(c, l, "list_orders_error", err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"data": list,
		"meta": transport.ListMeta{Page: page, Size: limit, HasPrev: page > 1, HasNext: len(list) == limit},
	})
}

func (h *OrderHTTP) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get_order")

	sess, err := sessionOf(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	o, err := h.Orders.GetOrder(ctx, sess, id)
	if err != nil {
		return fail(c, l, "get_order_error", err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *OrderHTTP) ListTracking(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list_tracking")

	sess, err := sessionOf(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	list, err := h.Orders.ListTracking(ctx, sess, id)
	if err != nil {
		return fail(c, l, "list_tracking_error", err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *OrderHTTP) CancelOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.cancel_order")

	sess, err := sessionOf(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req transport.CancelOrderRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("cancel_order_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	res, err := h.Orders.Cancel(ctx, sess, id, req.Reason)
	if err != nil {
		return fail(c, l, "cancel_order_error", err)
	}

	l.Info("cancel_order_success", "order_id", id)
	return c.JSON(http.StatusOK, res)
}

func (h *OrderHTTP) GetPaymentProof(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get_payment_proof")

	sess, err := sessionOf(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	p, err := h.Payments.GetProof(ctx, sess, id)
	if err != nil {
		return fail(c, l, "get_payment_proof_error", err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *OrderHTTP) UploadPaymentProof(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.upload_payment_proof")

	sess, err := sessionOf(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	fh, err := c.FormFile("file")
	if err != nil {
		l.Warn("upload_payment_proof_error", "status", 400, "reason", "no file", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	if err := service.ValidateProof(fh.Size, fh.Header.Get(echo.HeaderContentType), h.Payments.MaxBytes()); err != nil {
		return fail(c, l, "upload_payment_proof_error", err)
	}
	src, err := fh.Open()
	if err != nil {
		l.Error("upload_payment_proof_error", "status", 500, "reason", "open file", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot read file")
	}
	defer src.Close()

	proof, err := h.Payments.UploadProof(ctx, sess, id, service.ProofFile{
		Filename:    fh.Filename,
		Size:        fh.Size,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Body:        src,
	})
	if err != nil {
		return fail(c, l, "upload_payment_proof_error", err)
	}

	l.Info("upload_payment_proof_success", "order_id", id)
	return c.JSON(http.StatusCreated, proof)
}

func (h *OrderHTTP) ListAddresses(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list_addresses")

	sess, err := sessionOf(c)
	if err != nil {
		return err
	}
	list, err := h.Addresses.List(ctx, sess)
	if err != nil {
		return fail(c, l, "list_addresses_error", err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *OrderHTTP) SetPrimaryAddress(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.set_primary_address")

	sess, err := sessionOf(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	a, err := h.Addresses.SetPrimary(ctx, sess, id)
	if err != nil {
		return fail(c, l, "set_primary_address_error", err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *OrderHTTP) QuoteVoucher(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.quote_voucher")

	subtotal, err := decimalParam(c.QueryParam("subtotal"))
	if err != nil {
		l.Warn("quote_voucher_error", "status", 400, "reason", "bad subtotal", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "subtotal must be a number")
	}

	q, err := h.Vouchers.Quote(ctx, c.Param("code"), subtotal)
	if err != nil {
		return fail(c, l, "quote_voucher_error", err)
	}
	return c.JSON(http.StatusOK, q)
}
