package http

import (
	"time"

	"checkout-service/internal/domain"

	"github.com/shopspring/decimal"
)

type CheckoutRequest struct {
	ShippingAddress string `json:"shipping_address" binding:"required"`
	BillingAddress  string `json:"billing_address"`
	PaymentMethod   string `json:"payment_method"`
	CouponCode      string `json:"coupon_code"`
	Notes           string `json:"notes"`
}

type OrderSummary struct {
	ID          uint64          `json:"id"`
	OrderNumber string          `json:"order_number"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      string          `json:"status"`
}

type CheckoutResponse struct {
	Order OrderSummary `json:"order"`
}

type ValidateCouponRequest struct {
	Code   string  `json:"code" binding:"required"`
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

type CouponInfo struct {
	ID             uint64          `json:"id"`
	Code           string          `json:"code"`
	DiscountType   string          `json:"discount_type"`
	DiscountValue  decimal.Decimal `json:"discount_value"`
	MinOrderAmount decimal.Decimal `json:"min_order_amount"`
	MaxUsage       *int64          `json:"max_usage"`
	CurrentUsage   int64           `json:"current_usage"`
	ValidUntil     *time.Time      `json:"valid_until"`
}

type CouponCalculation struct {
	OriginalAmount decimal.Decimal `json:"original_amount"`
	Discount       decimal.Decimal `json:"discount"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
}

type ValidateCouponResponse struct {
	Valid       bool              `json:"valid"`
	Coupon      CouponInfo        `json:"coupon"`
	Calculation CouponCalculation `json:"calculation"`
}

func couponInfo(c *domain.Coupon) CouponInfo {
	return CouponInfo{
		ID:             c.ID,
		Code:           c.Code,
		DiscountType:   string(c.DiscountType),
		DiscountValue:  c.DiscountValue,
		MinOrderAmount: c.MinOrderAmount,
		MaxUsage:       c.MaxUsage,
		CurrentUsage:   c.CurrentUsage,
		ValidUntil:     c.ValidUntil,
	}
}

type AddToCartRequest struct {
	ProductID uint64 `json:"product_id" binding:"required"`
	Quantity  int64  `json:"quantity"`
}

type CartResponse struct {
	Cart  []domain.CartItem `json:"cart"`
	Total decimal.Decimal   `json:"total"`
}

type CreateCouponRequest struct {
	Code           string     `json:"code" binding:"required"`
	Description    string     `json:"description"`
	DiscountType   string     `json:"discount_type"`
	DiscountValue  float64    `json:"discount_value" binding:"required"`
	MinOrderAmount float64    `json:"min_order_amount"`
	MaxUsage       *int64     `json:"max_usage"`
	ValidFrom      *time.Time `json:"valid_from"`
	ValidUntil     *time.Time `json:"valid_until"`
	IsActive       *bool      `json:"is_active"`
}

type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalItems  int64 `json:"totalItems"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
	Limit       int   `json:"limit"`
}

type ListCouponsResponse struct {
	Coupons    []domain.Coupon `json:"coupons"`
	Pagination Pagination      `json:"pagination"`
}
