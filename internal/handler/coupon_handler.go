package handler

import (
	"time"

	"shop-service/internal/pricing"
	"shop-service/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type couponRequest struct {
	Code      string               `json:"code" validate:"required,max=50"`
	Type      pricing.DiscountType `json:"type" validate:"required,oneof=percentage fixed"`
	Discount  *decimal.Decimal     `json:"discount" validate:"required"`
	StartsAt  *time.Time           `json:"starts_at"`
	ExpiresAt *time.Time           `json:"expires_at"`
	IsActive  *bool                `json:"is_active"`
}

func (r couponRequest) input() service.CouponInput {
	return service.CouponInput{
		Code:      r.Code,
		Type:      r.Type,
		Discount:  *r.Discount,
		StartsAt:  r.StartsAt,
		ExpiresAt: r.ExpiresAt,
		IsActive:  r.IsActive,
	}
}

// CouponHandler is the admin coupon API
type CouponHandler struct {
	coupons *service.CouponService
}

func NewCouponHandler(coupons *service.CouponService) *CouponHandler {
	return &CouponHandler{coupons: coupons}
}

func (h *CouponHandler) List(c echo.Context) error {
	page, err := pageParams(c)
	if err != nil {
		return err
	}
	coupons, pagination, err := h.coupons.List(c.Request().Context(), page)
	if err != nil {
		return err
	}
	return paged(c, "Coupons retrieved", coupons, pagination)
}

func (h *CouponHandler) Get(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	coupon, err := h.coupons.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return ok(c, "Coupon retrieved", coupon)
}

func (h *CouponHandler) Create(c echo.Context) error {
	var req couponRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	coupon, err := h.coupons.Create(c.Request().Context(), req.input())
	if err != nil {
		return err
	}
	return created(c, "Coupon created", coupon)
}

func (h *CouponHandler) Update(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req couponRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	coupon, err := h.coupons.Update(c.Request().Context(), id, req.input())
	if err != nil {
		return err
	}
	return ok(c, "Coupon updated", coupon)
}

func (h *CouponHandler) Delete(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.coupons.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return ok(c, "Coupon deleted", nil)
}
