package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"checkout-service/internal/domain"
	"checkout-service/internal/mocks"
	"checkout-service/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newCheckoutService(carts *mocks.MockCartRepository, coupons *mocks.MockCouponRepository, orders *mocks.MockOrderRepository, pub *mocks.MockPublisher) *CheckoutService {
	return NewCheckoutService(carts, coupons, orders, pub, PricingConfig{Currency: "THB"})
}

func validInput() CheckoutInput {
	return CheckoutInput{
		UserID:          TestUserID,
		ShippingAddress: "123 Main Street",
	}
}

func TestCheckoutService_Checkout(t *testing.T) {
	tests := []struct {
		name          string
		input         CheckoutInput
		setupMocks    func(*mocks.MockCartRepository, *mocks.MockCouponRepository, *mocks.MockOrderRepository, *mocks.MockPublisher)
		expectedTotal float64
		expectedError string
		checkCommit   func(*testing.T, *repository.CheckoutCommit)
	}{
		{
			name:  "cart with one product, no coupon",
			input: validInput(),
			setupMocks: func(carts *mocks.MockCartRepository, coupons *mocks.MockCouponRepository, orders *mocks.MockOrderRepository, pub *mocks.MockPublisher) {
				product := CreateMockProduct(TestProductID, "Widget", 100, 5)
				carts.On("FindByUser", mock.Anything, TestUserID).
					Return([]domain.CartItem{CreateMockCartItem(TestUserID, product, 2)}, nil)
				orders.On("CreateCheckout", mock.Anything, mock.AnythingOfType("*repository.CheckoutCommit")).
					Return(nil).Run(func(args mock.Arguments) {
					args.Get(1).(*repository.CheckoutCommit).Order.ID = 1
				})
				pub.On("Publish", mock.Anything, "order.created", mock.Anything).Return(nil).Maybe()
			},
			expectedTotal: 200,
			checkCommit: func(t *testing.T, commit *repository.CheckoutCommit) {
				assert.Len(t, commit.Items, 1)
				assert.Equal(t, "Widget", commit.Items[0].ProductName)
				assert.True(t, commit.Items[0].UnitPrice.Equal(decimal.NewFromInt(100)))
				assert.True(t, commit.Items[0].TotalPrice.Equal(decimal.NewFromInt(200)))
				assert.Len(t, commit.Stock, 1)
				assert.Equal(t, int64(2), commit.Stock[0].Quantity)
				assert.Zero(t, commit.CouponID)
			},
		},
		{
			name: "coupon applied",
			input: func() CheckoutInput {
				in := validInput()
				in.CouponCode = "SAVE10"
				return in
			}(),
			setupMocks: func(carts *mocks.MockCartRepository, coupons *mocks.MockCouponRepository, orders *mocks.MockOrderRepository, pub *mocks.MockPublisher) {
				product := CreateMockProduct(TestProductID, "Widget", 100, 5)
				carts.On("FindByUser", mock.Anything, TestUserID).
					Return([]domain.CartItem{CreateMockCartItem(TestUserID, product, 2)}, nil)
				coupons.On("FindActiveByCode", mock.Anything, "SAVE10").
					Return(CreateMockCoupon(7, "SAVE10", domain.DiscountPercentage, 10, 50, 100, 0), nil)
				orders.On("CreateCheckout", mock.Anything, mock.AnythingOfType("*repository.CheckoutCommit")).
					Return(nil).Run(func(args mock.Arguments) {
					args.Get(1).(*repository.CheckoutCommit).Order.ID = 1
				})
				pub.On("Publish", mock.Anything, "order.created", mock.Anything).Return(nil).Maybe()
			},
			expectedTotal: 180,
			checkCommit: func(t *testing.T, commit *repository.CheckoutCommit) {
				assert.Equal(t, uint64(7), commit.CouponID)
			},
		},
		{
			name:  "sale price wins over regular price",
			input: validInput(),
			setupMocks: func(carts *mocks.MockCartRepository, coupons *mocks.MockCouponRepository, orders *mocks.MockOrderRepository, pub *mocks.MockPublisher) {
				product := CreateMockProduct(TestProductID, "Widget", 100, 5)
				sale := decimal.NewFromInt(80)
				product.SalePrice = &sale
				carts.On("FindByUser", mock.Anything, TestUserID).
					Return([]domain.CartItem{CreateMockCartItem(TestUserID, product, 1)}, nil)
				orders.On("CreateCheckout", mock.Anything, mock.AnythingOfType("*repository.CheckoutCommit")).
					Return(nil).Run(func(args mock.Arguments) {
					args.Get(1).(*repository.CheckoutCommit).Order.ID = 1
				})
				pub.On("Publish", mock.Anything, "order.created", mock.Anything).Return(nil).Maybe()
			},
			expectedTotal: 80,
			checkCommit: func(t *testing.T, commit *repository.CheckoutCommit) {
				assert.True(t, commit.Items[0].UnitPrice.Equal(decimal.NewFromInt(80)))
			},
		},
		{
			name:  "empty cart",
			input: validInput(),
			setupMocks: func(carts *mocks.MockCartRepository, coupons *mocks.MockCouponRepository, orders *mocks.MockOrderRepository, pub *mocks.MockPublisher) {
				carts.On("FindByUser", mock.Anything, TestUserID).Return([]domain.CartItem{}, nil)
			},
			expectedError: domain.ErrEmptyCart.Error(),
		},
		{
			name:  "inactive product aborts with its name",
			input: validInput(),
			setupMocks: func(carts *mocks.MockCartRepository, coupons *mocks.MockCouponRepository, orders *mocks.MockOrderRepository, pub *mocks.MockPublisher) {
				product := CreateMockProduct(TestProductID, "Discontinued Widget", 100, 5)
				product.IsActive = false
				carts.On("FindByUser", mock.Anything, TestUserID).
					Return([]domain.CartItem{CreateMockCartItem(TestUserID, product, 1)}, nil)
			},
			expectedError: "Discontinued Widget is not available",
		},
		{
			name:  "insufficient stock aborts with the product name",
			input: validInput(),
			setupMocks: func(carts *mocks.MockCartRepository, coupons *mocks.MockCouponRepository, orders *mocks.MockOrderRepository, pub *mocks.MockPublisher) {
				product := CreateMockProduct(TestProductID, "Widget", 100, 1)
				carts.On("FindByUser", mock.Anything, TestUserID).
					Return([]domain.CartItem{CreateMockCartItem(TestUserID, product, 2)}, nil)
			},
			expectedError: "insufficient stock for product Widget",
		},
		{
			name: "unknown coupon code aborts the checkout",
			input: func() CheckoutInput {
				in := validInput()
				in.CouponCode = "NOPE"
				return in
			}(),
			setupMocks: func(carts *mocks.MockCartRepository, coupons *mocks.MockCouponRepository, orders *mocks.MockOrderRepository, pub *mocks.MockPublisher) {
				product := CreateMockProduct(TestProductID, "Widget", 100, 5)
				carts.On("FindByUser", mock.Anything, TestUserID).
					Return([]domain.CartItem{CreateMockCartItem(TestUserID, product, 2)}, nil)
				coupons.On("FindActiveByCode", mock.Anything, "NOPE").Return(nil, nil)
			},
			expectedError: domain.ErrCouponNotFound.Error(),
		},
		{
			name:  "persistence failure",
			input: validInput(),
			setupMocks: func(carts *mocks.MockCartRepository, coupons *mocks.MockCouponRepository, orders *mocks.MockOrderRepository, pub *mocks.MockPublisher) {
				product := CreateMockProduct(TestProductID, "Widget", 100, 5)
				carts.On("FindByUser", mock.Anything, TestUserID).
					Return([]domain.CartItem{CreateMockCartItem(TestUserID, product, 2)}, nil)
				orders.On("CreateCheckout", mock.Anything, mock.AnythingOfType("*repository.CheckoutCommit")).
					Return(errors.New("database error"))
			},
			expectedError: "database error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			carts := new(mocks.MockCartRepository)
			coupons := new(mocks.MockCouponRepository)
			orders := new(mocks.MockOrderRepository)
			pub := new(mocks.MockPublisher)

			tt.setupMocks(carts, coupons, orders, pub)

			var captured *repository.CheckoutCommit
			for _, call := range orders.ExpectedCalls {
				if call.Method == "CreateCheckout" {
					prev := call.RunFn
					call.RunFn = func(args mock.Arguments) {
						if prev != nil {
							prev(args)
						}
						captured = args.Get(1).(*repository.CheckoutCommit)
					}
				}
			}

			service := newCheckoutService(carts, coupons, orders, pub)
			order, err := service.Checkout(context.Background(), tt.input)

			if tt.expectedError != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
				assert.Nil(t, order)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, order)
				assert.True(t, order.TotalAmount.Equal(decimal.NewFromFloat(tt.expectedTotal)),
					"total = %s, want %v", order.TotalAmount, tt.expectedTotal)
				assert.Equal(t, domain.StatusPending, order.Status)
				assert.Equal(t, domain.PaymentPending, order.PaymentStatus)
				assert.NotEmpty(t, order.OrderNumber)
				assert.Equal(t, tt.input.ShippingAddress, order.ShippingAddress)
				// billing falls back to shipping when absent
				assert.Equal(t, tt.input.ShippingAddress, order.BillingAddress)

				if tt.checkCommit != nil {
					assert.NotNil(t, captured)
					tt.checkCommit(t, captured)
				}

				// order total reconciles with snapshotted line totals
				lineSum := decimal.Zero
				for _, item := range captured.Items {
					lineSum = lineSum.Add(item.TotalPrice)
				}
				assert.True(t, order.TotalAmount.LessThanOrEqual(lineSum))
			}

			time.Sleep(100 * time.Millisecond)

			carts.AssertExpectations(t)
			coupons.AssertExpectations(t)
			orders.AssertExpectations(t)
			pub.AssertExpectations(t)
		})
	}
}

func TestCheckoutService_TaxAndShipping(t *testing.T) {
	carts := new(mocks.MockCartRepository)
	orders := new(mocks.MockOrderRepository)
	pub := new(mocks.MockPublisher)

	product := CreateMockProduct(TestProductID, "Widget", 100, 5)
	carts.On("FindByUser", mock.Anything, TestUserID).
		Return([]domain.CartItem{CreateMockCartItem(TestUserID, product, 2)}, nil)
	orders.On("CreateCheckout", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		args.Get(1).(*repository.CheckoutCommit).Order.ID = 1
	})
	pub.On("Publish", mock.Anything, "order.created", mock.Anything).Return(nil).Maybe()

	service := NewCheckoutService(carts, new(mocks.MockCouponRepository), orders, pub, PricingConfig{
		Currency:    "THB",
		TaxRate:     decimal.NewFromInt(7),
		ShippingFee: decimal.NewFromInt(50),
	})

	order, err := service.Checkout(context.Background(), validInput())

	assert.NoError(t, err)
	// 200 subtotal + 7% tax + 50 shipping
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(264)), "total = %s", order.TotalAmount)

	time.Sleep(100 * time.Millisecond)
	orders.AssertExpectations(t)
}

func TestCheckoutService_IdempotentReplay(t *testing.T) {
	carts := new(mocks.MockCartRepository)
	orders := new(mocks.MockOrderRepository)
	idem := new(mocks.MockIdempotencyStore)

	existing := &domain.Order{
		ID:          7,
		UserID:      TestUserID,
		OrderNumber: "ORD-20250101-ABCDEF01",
		Status:      domain.StatusPending,
		TotalAmount: decimal.NewFromInt(200),
	}
	idem.On("Recall", mock.Anything, "checkout:1", "key-1").Return("7", true, nil)
	orders.On("FindByID", mock.Anything, uint64(7)).Return(existing, nil)

	service := newCheckoutService(carts, new(mocks.MockCouponRepository), orders, new(mocks.MockPublisher))
	service.SetIdempotencyStore(idem)

	in := validInput()
	in.IdempotencyKey = "key-1"
	order, err := service.Checkout(context.Background(), in)

	assert.NoError(t, err)
	assert.Equal(t, existing.ID, order.ID)
	assert.Equal(t, existing.OrderNumber, order.OrderNumber)
	carts.AssertNotCalled(t, "FindByUser", mock.Anything, mock.Anything)
	idem.AssertExpectations(t)
	orders.AssertExpectations(t)
}

func TestCheckoutService_ConcurrentDuplicate(t *testing.T) {
	idem := new(mocks.MockIdempotencyStore)
	idem.On("Recall", mock.Anything, "checkout:1", "key-1").Return("", false, nil)
	idem.On("TryLock", mock.Anything, "checkout:1", "key-1").Return(false, nil)

	service := newCheckoutService(new(mocks.MockCartRepository), new(mocks.MockCouponRepository),
		new(mocks.MockOrderRepository), new(mocks.MockPublisher))
	service.SetIdempotencyStore(idem)

	in := validInput()
	in.IdempotencyKey = "key-1"
	order, err := service.Checkout(context.Background(), in)

	assert.ErrorIs(t, err, ErrCheckoutInProgress)
	assert.Nil(t, order)
	idem.AssertExpectations(t)
}

func TestCheckoutService_FailedAttemptReleasesKey(t *testing.T) {
	carts := new(mocks.MockCartRepository)
	orders := new(mocks.MockOrderRepository)
	pub := new(mocks.MockPublisher)
	idem := new(mocks.MockIdempotencyStore)

	idem.On("Recall", mock.Anything, "checkout:1", "key-1").Return("", false, nil)
	idem.On("TryLock", mock.Anything, "checkout:1", "key-1").Return(true, nil)
	idem.On("Unlock", mock.Anything, "checkout:1", "key-1").Return(nil).Once()
	idem.On("Remember", mock.Anything, "checkout:1", "key-1", "1").Return(nil).Once()

	// first attempt hits an empty cart, the retry finds it filled
	product := CreateMockProduct(TestProductID, "Widget", 100, 5)
	carts.On("FindByUser", mock.Anything, TestUserID).Return([]domain.CartItem{}, nil).Once()
	carts.On("FindByUser", mock.Anything, TestUserID).
		Return([]domain.CartItem{CreateMockCartItem(TestUserID, product, 2)}, nil).Once()
	orders.On("CreateCheckout", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		args.Get(1).(*repository.CheckoutCommit).Order.ID = 1
	})
	pub.On("Publish", mock.Anything, "order.created", mock.Anything).Return(nil).Maybe()

	service := newCheckoutService(carts, new(mocks.MockCouponRepository), orders, pub)
	service.SetIdempotencyStore(idem)

	in := validInput()
	in.IdempotencyKey = "key-1"

	order, err := service.Checkout(context.Background(), in)
	assert.ErrorIs(t, err, domain.ErrEmptyCart)
	assert.Nil(t, order)

	// the key was released, so the retry is not rejected as in progress
	order, err = service.Checkout(context.Background(), in)
	assert.NoError(t, err)
	assert.NotNil(t, order)

	time.Sleep(100 * time.Millisecond)

	idem.AssertExpectations(t)
	carts.AssertExpectations(t)
	orders.AssertExpectations(t)
}

func TestCheckoutService_GetOrder(t *testing.T) {
	orders := new(mocks.MockOrderRepository)
	orders.On("FindByID", mock.Anything, uint64(5)).Return(&domain.Order{ID: 5, UserID: 2}, nil)
	orders.On("FindByID", mock.Anything, uint64(6)).Return(nil, nil)

	service := newCheckoutService(new(mocks.MockCartRepository), new(mocks.MockCouponRepository),
		orders, new(mocks.MockPublisher))

	// owned by another user
	_, err := service.GetOrder(context.Background(), TestUserID, 5)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	// missing
	_, err = service.GetOrder(context.Background(), TestUserID, 6)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	orders.AssertExpectations(t)
}
