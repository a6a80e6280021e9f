package mysql

import (
	"context"
	"errors"
	"fmt"

	"checkout-service/internal/domain"
	"checkout-service/internal/repository"

	"gorm.io/gorm"
)

type orderRepo struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) repository.OrderRepository {
	return &orderRepo{db: db}
}

// CreateCheckout persists the whole checkout in one transaction. Stock
// decrements and the coupon redemption are conditional updates: zero
// affected rows means a concurrent checkout got there first, and the
// transaction rolls back instead of overselling or over-redeeming.
func (r *orderRepo) CreateCheckout(ctx context.Context, commit *repository.CheckoutCommit) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(commit.Order).Error; err != nil {
			return err
		}
		if commit.Order.ID == 0 {
			return errors.New("failed to assign order ID")
		}

		for i := range commit.Items {
			commit.Items[i].OrderID = commit.Order.ID
		}
		if err := tx.Create(&commit.Items).Error; err != nil {
			return err
		}

		for _, adj := range commit.Stock {
			res := tx.Model(&domain.Product{}).
				Where("id = ? AND is_active = ? AND stock_quantity >= ?", adj.ProductID, true, adj.Quantity).
				UpdateColumn("stock_quantity", gorm.Expr("stock_quantity - ?", adj.Quantity))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return &domain.InsufficientStockError{Name: r.productName(tx, adj.ProductID)}
			}
		}

		if commit.CouponID != 0 {
			res := tx.Model(&domain.Coupon{}).
				Where("id = ? AND (max_usage IS NULL OR current_usage < max_usage)", commit.CouponID).
				UpdateColumn("current_usage", gorm.Expr("current_usage + 1"))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return domain.ErrCouponUsageExceeded
			}
		}

		return tx.Where("user_id = ?", commit.UserID).Delete(&domain.CartItem{}).Error
	})
}

func (r *orderRepo) productName(tx *gorm.DB, productID uint64) string {
	var p domain.Product
	if err := tx.Select("name").First(&p, productID).Error; err != nil {
		return fmt.Sprintf("#%d", productID)
	}
	return p.Name
}

func (r *orderRepo) FindByID(ctx context.Context, id uint64) (*domain.Order, error) {
	var o domain.Order
	err := r.db.WithContext(ctx).Preload("Items").First(&o, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

func (r *orderRepo) FindByUser(ctx context.Context, userID uint64) ([]domain.Order, error) {
	var out []domain.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
