package mysql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"checkout-service/internal/domain"
	"checkout-service/internal/repository"

	"gorm.io/gorm"
)

type couponRepo struct {
	db *gorm.DB
}

func NewCouponRepository(db *gorm.DB) repository.CouponRepository {
	return &couponRepo{db: db}
}

func (r *couponRepo) FindActiveByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	var c domain.Coupon
	err := r.db.WithContext(ctx).
		Where("code = ? AND is_active = ?", strings.ToUpper(strings.TrimSpace(code)), true).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *couponRepo) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Coupon{}).
		Where("code = ?", strings.ToUpper(strings.TrimSpace(code))).
		Count(&count).Error
	return count > 0, err
}

var couponSortColumns = map[string]string{
	"code":           "code",
	"discount_value": "discount_value",
	"current_usage":  "current_usage",
	"valid_until":    "valid_until",
	"created_at":     "created_at",
}

func (r *couponRepo) List(ctx context.Context, filter repository.CouponFilter) ([]domain.Coupon, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.Coupon{})

	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		q = q.Where("code LIKE ? OR description LIKE ?", like, like)
	}
	if filter.Type != "" {
		q = q.Where("discount_type = ?", filter.Type)
	}
	if filter.Status != nil {
		q = q.Where("is_active = ?", *filter.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	column, ok := couponSortColumns[filter.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 10
	}

	var coupons []domain.Coupon
	err := q.Order(fmt.Sprintf("%s %s", column, direction)).
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&coupons).Error
	if err != nil {
		return nil, 0, err
	}
	return coupons, total, nil
}

func (r *couponRepo) Create(ctx context.Context, coupon *domain.Coupon) error {
	return r.db.WithContext(ctx).Create(coupon).Error
}
