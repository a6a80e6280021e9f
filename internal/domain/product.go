package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID            uint64           `json:"id" gorm:"primaryKey;autoIncrement"`
	Name          string           `json:"name" gorm:"not null"`
	Price         decimal.Decimal  `json:"price" gorm:"type:decimal(12,2);not null"`
	SalePrice     *decimal.Decimal `json:"sale_price" gorm:"type:decimal(12,2)"`
	StockQuantity int64            `json:"stock_quantity" gorm:"not null;default:0"`
	IsActive      bool             `json:"is_active" gorm:"not null;default:true"`
	CreatedAt     time.Time        `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time        `json:"updated_at" gorm:"autoUpdateTime"`
}

// EffectivePrice is the unit price a customer actually pays:
// the sale price when one is set, the regular price otherwise.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.SalePrice != nil && p.SalePrice.IsPositive() {
		return *p.SalePrice
	}
	return p.Price
}
