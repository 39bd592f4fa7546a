package httpserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	middleware "github.com/Skotchmaster/storefront/pkg/middleware/auth"
	"github.com/Skotchmaster/storefront/pkg/session"
	"github.com/Skotchmaster/storefront/services/order/internal/service"
	"github.com/Skotchmaster/storefront/services/order/internal/transport"
	"github.com/labstack/echo/v4"
)

// statusOf maps the service error categories to HTTP statuses.
func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail logs err under event and answers with the mapped status. Client
// errors carry the error text; server errors a generic message.
func fail(c echo.Context, l *slog.Logger, event string, err error) error {
	var se *service.StockError
	if errors.As(err, &se) {
		l.Warn(event, "status", http.StatusConflict, "reason", "stock", "error", err)
		resp := transport.StockErrorResponse{Message: "some items are unavailable"}
		for _, u := range se.Unavailable {
			resp.Unavailable = append(resp.Unavailable, transport.UnavailableItem{
				ProductID:    u.ProductID,
				Quantity:     u.Quantity,
				CurrentStock: u.CurrentStock,
				Reason:       u.Reason,
			})
		}
		return c.JSON(http.StatusConflict, resp)
	}

	status := statusOf(err)
	switch status {
	case http.StatusInternalServerError:
		l.Error(event, "status", status, "error", err)
		return echo.NewHTTPError(status, "internal error")
	case http.StatusBadGateway:
		l.Error(event, "status", status, "error", err)
		return echo.NewHTTPError(status, err.Error())
	default:
		l.Warn(event, "status", status, "error", err)
		return echo.NewHTTPError(status, err.Error())
	}
}

func sessionOf(c echo.Context) (session.Session, error) {
	s, ok := middleware.SessionFrom(c)
	if !ok {
		return session.Session{}, echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return s, nil
}

func paramID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" is not a valid id")
	}
	return id, nil
}

func queryBool(c echo.Context, name string) (*bool, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, name+" must be true or false")
	}
	return &v, nil
}
