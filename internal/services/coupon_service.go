package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"checkout-service/internal/domain"
	"checkout-service/internal/repository"

	"github.com/shopspring/decimal"
)

var (
	ErrDuplicateCoupon = errors.New("coupon code already exists")
	ErrInvalidDiscount = errors.New("discount value must be greater than 0")
	ErrPercentTooHigh  = errors.New("percentage discount cannot exceed 100")
)

var oneHundred = decimal.NewFromInt(100)

// EvaluateCoupon applies a coupon's rules to a subtotal and returns the
// discount. The discount is clamped at the subtotal so an order total
// can never go negative. Only the expiry end of the validity window is
// enforced; valid_from is informational.
func EvaluateCoupon(c *domain.Coupon, subtotal decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		return decimal.Zero, domain.ErrCouponExpired
	}
	if c.MaxUsage != nil && c.CurrentUsage >= *c.MaxUsage {
		return decimal.Zero, domain.ErrCouponUsageExceeded
	}
	if subtotal.LessThan(c.MinOrderAmount) {
		return decimal.Zero, &domain.CouponMinimumError{Minimum: c.MinOrderAmount}
	}

	var discount decimal.Decimal
	if c.DiscountType == domain.DiscountPercentage {
		discount = subtotal.Mul(c.DiscountValue).Div(oneHundred)
	} else {
		discount = c.DiscountValue
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	return discount.Round(2), nil
}

type CouponValidation struct {
	Coupon         *domain.Coupon
	OriginalAmount decimal.Decimal
	Discount       decimal.Decimal
	FinalAmount    decimal.Decimal
}

type CouponService struct {
	repo repository.CouponRepository
}

func NewCouponService(repo repository.CouponRepository) *CouponService {
	return &CouponService{repo: repo}
}

// Validate runs the standalone pre-checkout check: same calculation the
// checkout uses, without redeeming anything. Validating the same code
// and amount twice yields the same result.
func (s *CouponService) Validate(ctx context.Context, code string, amount decimal.Decimal) (*CouponValidation, error) {
	coupon, err := s.repo.FindActiveByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if coupon == nil {
		return nil, domain.ErrCouponNotFound
	}

	discount, err := EvaluateCoupon(coupon, amount, time.Now())
	if err != nil {
		return nil, err
	}

	return &CouponValidation{
		Coupon:         coupon,
		OriginalAmount: amount,
		Discount:       discount,
		FinalAmount:    amount.Sub(discount),
	}, nil
}

func (s *CouponService) List(ctx context.Context, filter repository.CouponFilter) ([]domain.Coupon, int64, error) {
	return s.repo.List(ctx, filter)
}

func (s *CouponService) Create(ctx context.Context, coupon *domain.Coupon) error {
	coupon.Code = strings.ToUpper(strings.TrimSpace(coupon.Code))
	if coupon.DiscountType == "" {
		coupon.DiscountType = domain.DiscountPercentage
	}
	if !coupon.DiscountValue.IsPositive() {
		return ErrInvalidDiscount
	}
	if coupon.DiscountType == domain.DiscountPercentage && coupon.DiscountValue.GreaterThan(oneHundred) {
		return ErrPercentTooHigh
	}

	exists, err := s.repo.ExistsByCode(ctx, coupon.Code)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateCoupon
	}

	return s.repo.Create(ctx, coupon)
}
