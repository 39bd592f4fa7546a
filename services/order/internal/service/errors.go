package service

import (
	"errors"
	"fmt"

	"github.com/Skotchmaster/storefront/pkg/baas"
	"github.com/Skotchmaster/storefront/services/order/internal/repo"
)

var (
	ErrValidation   = errors.New("validation")   // 400
	ErrUnauthorized = errors.New("unauthorized") // 403
	ErrNotFound     = errors.New("not found")    // 404
	ErrConflict     = errors.New("conflict")     // 409
	ErrUpstream     = errors.New("upstream")     // 502
)

var (
	ErrProductNotFound        = fmt.Errorf("%w: product not found", ErrNotFound)
	ErrInsufficientStock      = fmt.Errorf("%w: insufficient stock", ErrConflict)
	ErrInvalidUserID          = fmt.Errorf("%w: invalid user id", ErrValidation)
	ErrInvalidTotalAmount     = fmt.Errorf("%w: invalid total amount", ErrValidation)
	ErrInvalidShippingAddress = fmt.Errorf("%w: invalid shipping address", ErrValidation)
	ErrEmptyOrderItems        = fmt.Errorf("%w: no items in order", ErrValidation)
	ErrInvalidProductID       = fmt.Errorf("%w: invalid product id in order items", ErrValidation)
	ErrInvalidQuantity        = fmt.Errorf("%w: invalid quantity in order items", ErrValidation)
	ErrInvalidPrice           = fmt.Errorf("%w: invalid price in order items", ErrValidation)
	ErrOrderCreationFailed    = fmt.Errorf("%w: order creation failed", ErrUpstream)
	ErrInvalidState           = fmt.Errorf("%w: invalid order state", ErrConflict)
	ErrFileTooLarge           = fmt.Errorf("%w: file too large", ErrValidation)
	ErrInvalidFileType        = fmt.Errorf("%w: only image files are allowed", ErrValidation)
)

// upstream classifies a store error: missing rows become ErrNotFound,
// everything else is an upstream failure.
func upstream(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repo.ErrNotFound) || baas.IsNotFound(err) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return fmt.Errorf("%w: %s: %s", ErrUpstream, what, baas.Message(err))
}
