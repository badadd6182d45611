package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderProcessing, OrderCancelled},
	OrderProcessing: {OrderCompleted, OrderCancelled},
}

// Valid reports whether s is a known status
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderProcessing, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether an order in s may move to next
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Order is the frozen snapshot of a cart at checkout
type Order struct {
	ID              uint            `json:"id" gorm:"primarykey"`
	Number          string          `json:"number" gorm:"type:varchar(32);uniqueIndex;not null"`
	UserID          uint            `json:"user_id" gorm:"index;not null"`
	User            *User           `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Status          OrderStatus     `json:"status" gorm:"type:varchar(20);index;not null"`
	Subtotal        decimal.Decimal `json:"subtotal" gorm:"type:decimal(12,2);not null"`
	Discount        decimal.Decimal `json:"discount" gorm:"type:decimal(12,2);not null"`
	Total           decimal.Decimal `json:"total" gorm:"type:decimal(12,2);not null"`
	ShippingAddress string          `json:"shipping_address" gorm:"type:text;not null"`
	BillingAddress  string          `json:"billing_address" gorm:"type:text;not null"`
	PaymentMethodID uint            `json:"payment_method_id" gorm:"index;not null"`
	PaymentMethod   *PaymentMethod  `json:"payment_method,omitempty" gorm:"foreignKey:PaymentMethodID"`
	CouponID        *uint           `json:"coupon_id"`
	CouponCode      string          `json:"coupon_code,omitempty" gorm:"type:varchar(50)"`
	Notes           string          `json:"notes,omitempty" gorm:"type:text"`
	Items           []OrderItem     `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// OrderItem keeps the price and name a product had when it was ordered
type OrderItem struct {
	ID          uint            `json:"id" gorm:"primarykey"`
	OrderID     uint            `json:"order_id" gorm:"index;not null"`
	ProductID   uint            `json:"product_id" gorm:"index;not null"`
	ProductName string          `json:"product_name" gorm:"type:varchar(255);not null"`
	UnitPrice   decimal.Decimal `json:"unit_price" gorm:"type:decimal(12,2);not null"`
	Quantity    int             `json:"quantity" gorm:"not null"`
	LineTotal   decimal.Decimal `json:"line_total" gorm:"type:decimal(12,2);not null"`
}
