package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyCart           = errors.New("cart is empty")
	ErrProductNotFound     = errors.New("product not found")
	ErrOrderNotFound       = errors.New("order not found")
	ErrCouponNotFound      = errors.New("coupon not found or inactive")
	ErrCouponExpired       = errors.New("coupon has expired")
	ErrCouponUsageExceeded = errors.New("coupon usage limit reached")
)

// ProductUnavailableError names the inactive product that blocked a
// cart operation or checkout.
type ProductUnavailableError struct {
	Name string
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product %s is not available", e.Name)
}

type InsufficientStockError struct {
	Name string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s", e.Name)
}

// CouponMinimumError carries the exact minimum so callers can show it.
type CouponMinimumError struct {
	Minimum decimal.Decimal
}

func (e *CouponMinimumError) Error() string {
	return fmt.Sprintf("minimum order amount is %s", e.Minimum.StringFixed(2))
}
