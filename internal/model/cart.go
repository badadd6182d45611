package model

import (
	"time"
)

// Cart belongs to exactly one user and is created on first add
type Cart struct {
	ID        uint       `json:"id" gorm:"primarykey"`
	UserID    uint       `json:"user_id" gorm:"uniqueIndex;not null"`
	CouponID  *uint      `json:"coupon_id"`
	Coupon    *Coupon    `json:"coupon,omitempty" gorm:"foreignKey:CouponID"`
	Items     []CartItem `json:"items" gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CartItem is one product line; a product appears at most once per cart
type CartItem struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CartID    uint      `json:"cart_id" gorm:"uniqueIndex:idx_cart_product;not null"`
	ProductID uint      `json:"product_id" gorm:"uniqueIndex:idx_cart_product;not null"`
	Product   *Product  `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Quantity  int       `json:"quantity" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
