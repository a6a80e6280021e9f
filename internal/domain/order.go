package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// TotalAmount is fixed at checkout and never recomputed; status fields
// are the only parts that change afterwards.
type Order struct {
	ID              uint64          `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID          uint64          `json:"user_id" gorm:"not null;index"`
	OrderNumber     string          `json:"order_number" gorm:"uniqueIndex;not null"`
	Status          OrderStatus     `json:"status" gorm:"type:enum('pending','processing','shipped','delivered','cancelled');default:'pending'"`
	PaymentStatus   PaymentStatus   `json:"payment_status" gorm:"type:enum('pending','paid','failed','refunded');default:'pending'"`
	TotalAmount     decimal.Decimal `json:"total_amount" gorm:"type:decimal(12,2);not null"`
	ShippingAddress string          `json:"shipping_address" gorm:"type:text;not null"`
	BillingAddress  string          `json:"billing_address" gorm:"type:text"`
	PaymentMethod   string          `json:"payment_method"`
	Notes           string          `json:"notes" gorm:"type:text"`
	Items           []OrderItem     `json:"items,omitempty" gorm:"foreignKey:OrderID"`
	CreatedAt       time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

// OrderItem snapshots the product name and unit price at checkout time.
// A later catalog price change must not alter historical orders.
type OrderItem struct {
	ID          uint64          `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderID     uint64          `json:"order_id" gorm:"not null;index"`
	ProductID   uint64          `json:"product_id" gorm:"not null"`
	ProductName string          `json:"product_name" gorm:"not null"`
	Quantity    int64           `json:"quantity" gorm:"not null"`
	UnitPrice   decimal.Decimal `json:"unit_price" gorm:"type:decimal(12,2);not null"`
	TotalPrice  decimal.Decimal `json:"total_price" gorm:"type:decimal(12,2);not null"`
}
