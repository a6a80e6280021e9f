package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Coupon codes are stored upper-cased and matched case-insensitively.
// MaxUsage nil means unlimited redemptions. CurrentUsage never exceeds
// MaxUsage when it is set; the redemption update enforces that in SQL.
type Coupon struct {
	ID             uint64          `json:"id" gorm:"primaryKey;autoIncrement"`
	Code           string          `json:"code" gorm:"uniqueIndex;not null"`
	Description    string          `json:"description"`
	DiscountType   DiscountType    `json:"discount_type" gorm:"type:enum('percentage','fixed');default:'percentage'"`
	DiscountValue  decimal.Decimal `json:"discount_value" gorm:"type:decimal(12,2);not null"`
	MinOrderAmount decimal.Decimal `json:"min_order_amount" gorm:"type:decimal(12,2);not null;default:0"`
	MaxUsage       *int64          `json:"max_usage"`
	CurrentUsage   int64           `json:"current_usage" gorm:"not null;default:0"`
	ValidFrom      time.Time       `json:"valid_from"`
	ValidUntil     *time.Time      `json:"valid_until"`
	IsActive       bool            `json:"is_active" gorm:"not null;default:true"`
	CreatedAt      time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}
