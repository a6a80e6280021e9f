package services

import (
	"time"

	"checkout-service/internal/domain"

	"github.com/shopspring/decimal"
)

func CreateMockProduct(id uint64, name string, price float64, stock int64) domain.Product {
	return domain.Product{
		ID:            id,
		Name:          name,
		Price:         decimal.NewFromFloat(price),
		StockQuantity: stock,
		IsActive:      true,
	}
}

func CreateMockCartItem(userID uint64, product domain.Product, quantity int64) domain.CartItem {
	return domain.CartItem{
		ID:        product.ID,
		UserID:    userID,
		ProductID: product.ID,
		Quantity:  quantity,
		Product:   product,
		CreatedAt: time.Now(),
	}
}

func CreateMockCoupon(id uint64, code string, discountType domain.DiscountType, value, minOrder float64, maxUsage, currentUsage int64) *domain.Coupon {
	until := time.Now().Add(24 * time.Hour)
	return &domain.Coupon{
		ID:             id,
		Code:           code,
		DiscountType:   discountType,
		DiscountValue:  decimal.NewFromFloat(value),
		MinOrderAmount: decimal.NewFromFloat(minOrder),
		MaxUsage:       &maxUsage,
		CurrentUsage:   currentUsage,
		ValidFrom:      time.Now().Add(-24 * time.Hour),
		ValidUntil:     &until,
		IsActive:       true,
	}
}

const (
	TestUserID    = uint64(1)
	TestProductID = uint64(1)
)
