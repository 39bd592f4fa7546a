package httpserver

import (
	"bytes"
	"net/http"
	"time"

	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/pagination"
	"github.com/Skotchmaster/storefront/services/order/internal/models"
	"github.com/Skotchmaster/storefront/services/order/internal/transport"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func decimalParam(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}

func orderFilter(c echo.Context) (models.OrderFilter, int, error) {
	hasProof, err := queryBool(c, "has_proof")
	if err != nil {
		return models.OrderFilter{}, 0, err
	}
	page := pagination.ParseIntDefault(c.QueryParam("page"), 1)
	offset, limit := pagination.Calculate(page, pagination.ParseIntDefault(c.QueryParam("size"), pagination.DefaultPageSize))
	return models.OrderFilter{
		StatusID: int64(pagination.ParseIntDefault(c.QueryParam("status_id"), 0)),
		HasProof: hasProof,
		Offset:   offset,
		Limit:    limit,
	}, page, nil
}

func (h *OrderHTTP) ListAllOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list_all_orders")

	f, page, err := orderFilter(c)
	if err != nil {
		return err
	}
	list, err := h.Orders.ListAllOrders(ctx, f)
	if err != nil {
		return fail(c, l, "list_all_orders_error", err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"data": list,
		"meta": transport.ListMeta{Page: page, Size: f.Limit, HasPrev: page > 1, HasNext: len(list) == f.Limit},
	})
}

func (h *OrderHTTP) SearchOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.search_orders")

	f, page, err := orderFilter(c)
	if err != nil {
		return err
	}
	res, err := h.Orders.Search(ctx, c.QueryParam("q"), f.HasProof, f.Offset, f.Limit)
	if err != nil {
		return fail(c, l, "search_orders_error", err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"data": res.Items,
		"meta": transport.ListMeta{
			Page:    page,
			Size:    f.Limit,
			Total:   res.Total,
			HasPrev: page > 1,
			HasNext: int64(f.Offset+f.Limit) < res.Total,
		},
	})
}

func (h *OrderHTTP) ExportOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.export_orders")

	f, _, err := orderFilter(c)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	n, err := h.Reports.ExportOrders(ctx, &buf, f)
	if err != nil {
		return fail(c, l, "export_orders_error", err)
	}

	name := "orders-" + h.Clock.Now().Format("20060102-150405") + ".xlsx"
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+name+`"`)
	l.Info("export_orders_success", "orders", n, "bytes", buf.Len())
	return c.Blob(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *OrderHTTP) ListIncompleteOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list_incomplete_orders")

	var within time.Duration
	if raw := c.QueryParam("within"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "within must be a positive duration")
		}
		within = d
	}
	limit := pagination.ParseIntDefault(c.QueryParam("limit"), 100)

	list, err := h.Orders.FindIncomplete(ctx, within, limit)
	if err != nil {
		return fail(c, l, "list_incomplete_orders_error", err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *OrderHTTP) UpdateOrderStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.update_order_status")

	sess, err := sessionOf(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req transport.UpdateStatusRequest
	if err := c.Bind(&req); err != nil || req.StatusID <= 0 {
		l.Warn("update_order_status_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	o, err := h.Orders.UpdateStatus(ctx, sess, id, req.StatusID, req.Notes)
	if err != nil {
		return fail(c, l, "update_order_status_error", err)
	}

	l.Info("update_order_status_success", "order_id", id, "status_id", req.StatusID)
	return c.JSON(http.StatusOK, o)
}

func (h *OrderHTTP) RepairOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.repair_order")

	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	res, err := h.Checkout.Repair(ctx, id)
	if err != nil {
		return fail(c, l, "repair_order_error", err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *OrderHTTP) RestoreStock(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.restore_stock")

	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	restorations, warnings, err := h.Orders.RestoreStock(ctx, id)
	if err != nil {
		return fail(c, l, "restore_stock_error", err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"stock_restorations": restorations,
		"warnings":           warnings,
	})
}

func (h *OrderHTTP) CountOrderItems(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.count_order_items")

	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	n, err := h.Orders.ItemCount(ctx, id)
	if err != nil {
		return fail(c, l, "count_order_items_error", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"order_id": id, "items": n})
}

func (h *OrderHTTP) ListCheckouts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list_checkouts")

	limit := pagination.ParseIntDefault(c.QueryParam("limit"), 100)
	list, err := h.Checkout.Checkouts(ctx, c.QueryParam("state"), limit)
	if err != nil {
		return fail(c, l, "list_checkouts_error", err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *OrderHTTP) ListRetryTasks(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list_retry_tasks")

	limit := pagination.ParseIntDefault(c.QueryParam("limit"), 100)
	list, err := h.Checkout.RetryTasks(ctx, c.QueryParam("status"), limit)
	if err != nil {
		return fail(c, l, "list_retry_tasks_error", err)
	}
	return c.JSON(http.StatusOK, list)
}
