package repository

import (
	"context"

	"checkout-service/internal/domain"
)

type CartRepository interface {
	FindByUser(ctx context.Context, userID uint64) ([]domain.CartItem, error)
	FindItem(ctx context.Context, userID, productID uint64) (*domain.CartItem, error)
	Save(ctx context.Context, item *domain.CartItem) error
}

type ProductRepository interface {
	FindByID(ctx context.Context, id uint64) (*domain.Product, error)
}

type CouponFilter struct {
	Search   string
	Type     string
	Status   *bool
	SortBy   string
	SortDesc bool
	Page     int
	Limit    int
}

type CouponRepository interface {
	FindActiveByCode(ctx context.Context, code string) (*domain.Coupon, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	List(ctx context.Context, filter CouponFilter) ([]domain.Coupon, int64, error)
	Create(ctx context.Context, coupon *domain.Coupon) error
}

type StockAdjustment struct {
	ProductID uint64
	Quantity  int64
}

// CheckoutCommit is the unit of work a successful checkout persists:
// order header, snapshotted lines, stock decrements, an optional coupon
// redemption (CouponID zero means none) and the cart purge. The
// repository applies all of it in one transaction or none of it.
type CheckoutCommit struct {
	UserID   uint64
	Order    *domain.Order
	Items    []domain.OrderItem
	Stock    []StockAdjustment
	CouponID uint64
}

type OrderRepository interface {
	CreateCheckout(ctx context.Context, commit *CheckoutCommit) error
	FindByID(ctx context.Context, id uint64) (*domain.Order, error)
	FindByUser(ctx context.Context, userID uint64) ([]domain.Order, error)
}
