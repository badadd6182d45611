package model

import (
	"errors"
	"time"

	"shop-service/internal/pricing"

	"github.com/shopspring/decimal"
)

var (
	ErrCouponInactive   = errors.New("coupon is not active")
	ErrCouponNotStarted = errors.New("coupon is not valid yet")
	ErrCouponExpired    = errors.New("coupon has expired")
)

// Coupon is a discount code with an optional validity window
type Coupon struct {
	ID        uint                 `json:"id" gorm:"primarykey"`
	Code      string               `json:"code" gorm:"type:varchar(50);uniqueIndex;not null"`
	Type      pricing.DiscountType `json:"type" gorm:"type:varchar(20);not null"`
	Discount  decimal.Decimal      `json:"discount" gorm:"type:decimal(12,2);not null"`
	StartsAt  *time.Time           `json:"starts_at"`
	ExpiresAt *time.Time           `json:"expires_at"`
	IsActive  bool                 `json:"is_active" gorm:"not null"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// CheckUsable returns nil when the coupon can be applied at now
func (c *Coupon) CheckUsable(now time.Time) error {
	if !c.IsActive {
		return ErrCouponInactive
	}
	if c.StartsAt != nil && now.Before(*c.StartsAt) {
		return ErrCouponNotStarted
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return ErrCouponExpired
	}
	return nil
}

// AsDiscount converts the coupon for pricing
func (c *Coupon) AsDiscount() *pricing.Discount {
	if c == nil {
		return nil
	}
	return &pricing.Discount{Type: c.Type, Value: c.Discount}
}
