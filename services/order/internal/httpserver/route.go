package httpserver

import (
	"net/http"

	middleware "github.com/Skotchmaster/storefront/pkg/middleware/auth"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

type Deps struct {
	OrderHandler *OrderHTTP
	JWTSecret    []byte
	// Ready reports dependency health for /health/ready. Nil means always ready.
	Ready func(c echo.Context) error
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c); err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
			}
		}
		return c.NoContent(http.StatusOK)
	})

	h := d.OrderHandler
	authMW := middleware.NewSessionMiddleware(d.JWTSecret)

	api := e.Group("/api/v1", authMW.RequireAuth)
	api.GET("/statuses", h.ListStatuses)
	api.GET("/payment-methods", h.ListPaymentMethods)

	api.POST("/checkout/prepare", h.PrepareCheckout)
	api.POST("/checkout", h.Checkout)

	api.GET("/orders", h.ListOrders)
	api.GET("/orders/:id", h.GetOrder)
	api.GET("/orders/:id/tracking", h.ListTracking)
	api.POST("/orders/:id/cancel", h.CancelOrder)
	api.GET("/orders/:id/payment-proof", h.GetPaymentProof)
	api.POST("/orders/:id/payment-proof", h.UploadPaymentProof, echomw.BodyLimit(h.uploadLimit()))

	api.GET("/addresses", h.ListAddresses)
	api.POST("/addresses/:id/primary", h.SetPrimaryAddress)

	api.GET("/vouchers/:code/quote", h.QuoteVoucher)

	admin := e.Group("/api/v1/admin", authMW.RequireAdmin)
	admin.GET("/orders", h.ListAllOrders)
	admin.GET("/orders/search", h.SearchOrders)
	admin.GET("/orders/export", h.ExportOrders)
	admin.GET("/orders/incomplete", h.ListIncompleteOrders)
	admin.PATCH("/orders/:id/status", h.UpdateOrderStatus)
	admin.POST("/orders/:id/repair", h.RepairOrder)
	admin.POST("/orders/:id/restore-stock", h.RestoreStock)
	admin.GET("/orders/:id/items/count", h.CountOrderItems)
	admin.GET("/checkouts", h.ListCheckouts)
	admin.GET("/retry-tasks", h.ListRetryTasks)
}
