package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"checkout-service/internal/domain"
	"checkout-service/internal/infra/cache"
	rabbit "checkout-service/internal/infra/rabbitmq"
	"checkout-service/internal/logging"
	"checkout-service/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrCheckoutInProgress = errors.New("checkout already in progress")

// PricingConfig is the injected storefront pricing state. TaxRate is a
// plain percentage (7 means 7%). Both default to zero, in which case
// the order total is exactly subtotal minus discount.
type PricingConfig struct {
	Currency    string
	TaxRate     decimal.Decimal
	ShippingFee decimal.Decimal
}

type CheckoutInput struct {
	UserID          uint64
	ShippingAddress string
	BillingAddress  string
	PaymentMethod   string
	CouponCode      string
	Notes           string
	IdempotencyKey  string
}

type CheckoutService struct {
	carts     repository.CartRepository
	coupons   repository.CouponRepository
	orders    repository.OrderRepository
	publisher rabbit.PublisherInterface
	idem      cache.IdempotencyStore
	pricing   PricingConfig
}

func NewCheckoutService(
	carts repository.CartRepository,
	coupons repository.CouponRepository,
	orders repository.OrderRepository,
	publisher rabbit.PublisherInterface,
	pricing PricingConfig,
) *CheckoutService {
	return &CheckoutService{
		carts:     carts,
		coupons:   coupons,
		orders:    orders,
		publisher: publisher,
		pricing:   pricing,
	}
}

// SetIdempotencyStore enables dedup of retried checkouts. Without it a
// retry is a fresh checkout, as in the original storefront.
func (s *CheckoutService) SetIdempotencyStore(store cache.IdempotencyStore) {
	s.idem = store
}

// Checkout turns the user's cart into an order. Validation and pricing
// happen up front with no side effects; everything that writes (order,
// lines, stock, coupon usage, cart purge) is a single CreateCheckout
// transaction, so a failed checkout leaves no partial state behind.
//
// Coupon rejections abort the checkout rather than silently charging
// full price, including an unknown code.
//
// A failed attempt releases its idempotency key, so the client can
// retry immediately instead of waiting out the key TTL.
func (s *CheckoutService) Checkout(ctx context.Context, in CheckoutInput) (*domain.Order, error) {
	useIdem := in.IdempotencyKey != "" && s.idem != nil
	if useIdem {
		if order, err := s.recallOrder(ctx, in); order != nil || err != nil {
			return order, err
		}
		ok, err := s.idem.TryLock(ctx, idemScope(in.UserID), in.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrCheckoutInProgress
		}
	}

	order, err := s.placeOrder(ctx, in)
	if err != nil {
		if useIdem {
			s.releaseLock(ctx, in)
		}
		return nil, err
	}

	if useIdem {
		if err := s.idem.Remember(ctx, idemScope(in.UserID), in.IdempotencyKey, strconv.FormatUint(order.ID, 10)); err != nil {
			logging.FromCtx(ctx).Warn("remember idempotency key", "error", err, "order_id", order.ID)
		}
	}

	go s.publishOrderCreated(context.Background(), order)

	return order, nil
}

func (s *CheckoutService) placeOrder(ctx context.Context, in CheckoutInput) (*domain.Order, error) {
	items, err := s.carts.FindByUser(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, domain.ErrEmptyCart
	}

	for i := range items {
		p := &items[i].Product
		if !p.IsActive {
			return nil, &domain.ProductUnavailableError{Name: p.Name}
		}
		if p.StockQuantity < items[i].Quantity {
			return nil, &domain.InsufficientStockError{Name: p.Name}
		}
	}

	subtotal := decimal.Zero
	for i := range items {
		line := items[i].Product.EffectivePrice().Mul(decimal.NewFromInt(items[i].Quantity))
		subtotal = subtotal.Add(line)
	}

	var coupon *domain.Coupon
	discount := decimal.Zero
	if in.CouponCode != "" {
		coupon, err = s.coupons.FindActiveByCode(ctx, in.CouponCode)
		if err != nil {
			return nil, err
		}
		if coupon == nil {
			return nil, domain.ErrCouponNotFound
		}
		discount, err = EvaluateCoupon(coupon, subtotal, time.Now())
		if err != nil {
			return nil, err
		}
	}

	total := subtotal.Sub(discount)
	if s.pricing.TaxRate.IsPositive() {
		total = total.Add(total.Mul(s.pricing.TaxRate).Div(oneHundred).Round(2))
	}
	if s.pricing.ShippingFee.IsPositive() {
		total = total.Add(s.pricing.ShippingFee)
	}

	billing := in.BillingAddress
	if billing == "" {
		billing = in.ShippingAddress
	}

	order := &domain.Order{
		UserID:          in.UserID,
		OrderNumber:     newOrderNumber(),
		Status:          domain.StatusPending,
		PaymentStatus:   domain.PaymentPending,
		TotalAmount:     total,
		ShippingAddress: in.ShippingAddress,
		BillingAddress:  billing,
		PaymentMethod:   in.PaymentMethod,
		Notes:           in.Notes,
		CreatedAt:       time.Now(),
	}

	commit := &repository.CheckoutCommit{
		UserID: in.UserID,
		Order:  order,
		Items:  make([]domain.OrderItem, 0, len(items)),
		Stock:  make([]repository.StockAdjustment, 0, len(items)),
	}
	for i := range items {
		unit := items[i].Product.EffectivePrice()
		commit.Items = append(commit.Items, domain.OrderItem{
			ProductID:   items[i].ProductID,
			ProductName: items[i].Product.Name,
			Quantity:    items[i].Quantity,
			UnitPrice:   unit,
			TotalPrice:  unit.Mul(decimal.NewFromInt(items[i].Quantity)),
		})
		commit.Stock = append(commit.Stock, repository.StockAdjustment{
			ProductID: items[i].ProductID,
			Quantity:  items[i].Quantity,
		})
	}
	if coupon != nil {
		commit.CouponID = coupon.ID
	}

	if err := s.orders.CreateCheckout(ctx, commit); err != nil {
		return nil, err
	}

	return order, nil
}

func (s *CheckoutService) releaseLock(ctx context.Context, in CheckoutInput) {
	if err := s.idem.Unlock(ctx, idemScope(in.UserID), in.IdempotencyKey); err != nil {
		logging.FromCtx(ctx).Warn("release idempotency lock", "error", err)
	}
}

func (s *CheckoutService) recallOrder(ctx context.Context, in CheckoutInput) (*domain.Order, error) {
	val, ok, err := s.idem.Recall(ctx, idemScope(in.UserID), in.IdempotencyKey)
	if err != nil || !ok {
		return nil, err
	}
	orderID, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return nil, nil
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil || order.UserID != in.UserID {
		return nil, nil
	}
	return order, nil
}

func (s *CheckoutService) publishOrderCreated(ctx context.Context, order *domain.Order) {
	evt := domain.OrderCreatedEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
		CreatedAt:   order.CreatedAt,
	}

	if err := s.publisher.Publish(ctx, "order.created", evt); err != nil {
		logging.Base().Error("publish order.created", "error", err, "order_id", order.ID)
	}
}

func (s *CheckoutService) GetOrder(ctx context.Context, userID, orderID uint64) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil || order.UserID != userID {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

func (s *CheckoutService) ListOrders(ctx context.Context, userID uint64) ([]domain.Order, error) {
	return s.orders.FindByUser(ctx, userID)
}

func idemScope(userID uint64) string {
	return "checkout:" + strconv.FormatUint(userID, 10)
}

func newOrderNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("ORD-%s-%s", time.Now().Format("20060102"), suffix)
}
