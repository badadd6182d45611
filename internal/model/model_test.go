package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatusTransitions(t *testing.T) {
	statuses := []OrderStatus{OrderPending, OrderProcessing, OrderCompleted, OrderCancelled}
	allowed := map[[2]OrderStatus]bool{
		{OrderPending, OrderProcessing}:   true,
		{OrderPending, OrderCancelled}:    true,
		{OrderProcessing, OrderCompleted}: true,
		{OrderProcessing, OrderCancelled}: true,
	}

	for _, from := range statuses {
		for _, to := range statuses {
			assert.Equalf(t, allowed[[2]OrderStatus{from, to}], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
	assert.False(t, OrderStatus("shipped").CanTransitionTo(OrderCompleted))
	assert.False(t, OrderPending.CanTransitionTo("shipped"))
}

func TestOrderStatusValid(t *testing.T) {
	assert.True(t, OrderCancelled.Valid())
	assert.False(t, OrderStatus("").Valid())
	assert.False(t, OrderStatus("refunded").Valid())
}

func TestCouponCheckUsable(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name   string
		coupon Coupon
		want   error
	}{
		{"open window", Coupon{IsActive: true}, nil},
		{"inside window", Coupon{IsActive: true, StartsAt: &past, ExpiresAt: &future}, nil},
		{"inactive", Coupon{IsActive: false, StartsAt: &past, ExpiresAt: &future}, ErrCouponInactive},
		{"not started", Coupon{IsActive: true, StartsAt: &future}, ErrCouponNotStarted},
		{"expired", Coupon{IsActive: true, ExpiresAt: &past}, ErrCouponExpired},
		{"starts now", Coupon{IsActive: true, StartsAt: &now}, nil},
		{"expires now", Coupon{IsActive: true, ExpiresAt: &now}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.coupon.CheckUsable(now))
		})
	}
}

func TestCouponAsDiscountNil(t *testing.T) {
	var c *Coupon
	assert.Nil(t, c.AsDiscount())
}
