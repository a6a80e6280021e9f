package domain

import "time"

// CartItem is one (user, product) line in a cart. A product appears at
// most once per user; adding it again merges quantities.
type CartItem struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID    uint64    `json:"user_id" gorm:"not null;uniqueIndex:idx_cart_user_product"`
	ProductID uint64    `json:"product_id" gorm:"not null;uniqueIndex:idx_cart_user_product"`
	Quantity  int64     `json:"quantity" gorm:"not null"`
	Product   Product   `json:"product" gorm:"foreignKey:ProductID"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
