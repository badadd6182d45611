package handler

import (
	"shop-service/internal/service"

	"github.com/labstack/echo/v4"
)

type addItemRequest struct {
	ProductID uint `json:"product_id" validate:"required"`
	Quantity  int  `json:"quantity" validate:"required,min=1"`
}

type quantityRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

type couponCodeRequest struct {
	Code string `json:"code" validate:"required,max=50"`
}

type CartHandler struct {
	cart *service.CartService
}

func NewCartHandler(cart *service.CartService) *CartHandler {
	return &CartHandler{cart: cart}
}

func (h *CartHandler) GetCart(c echo.Context) error {
	view, err := h.cart.GetCart(c.Request().Context(), actor(c).UserID)
	if err != nil {
		return err
	}
	return ok(c, "Cart retrieved", view)
}

func (h *CartHandler) AddItem(c echo.Context) error {
	var req addItemRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	view, err := h.cart.AddItem(c.Request().Context(), actor(c).UserID, req.ProductID, req.Quantity)
	if err != nil {
		return err
	}
	return ok(c, "Product added to cart", view)
}

func (h *CartHandler) UpdateItem(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req quantityRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	view, err := h.cart.UpdateItem(c.Request().Context(), actor(c).UserID, id, req.Quantity)
	if err != nil {
		return err
	}
	return ok(c, "Cart item updated", view)
}

func (h *CartHandler) RemoveItem(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	view, err := h.cart.RemoveItem(c.Request().Context(), actor(c).UserID, id)
	if err != nil {
		return err
	}
	return ok(c, "Cart item removed", view)
}

func (h *CartHandler) Clear(c echo.Context) error {
	if err := h.cart.Clear(c.Request().Context(), actor(c).UserID); err != nil {
		return err
	}
	return ok(c, "Cart cleared", nil)
}

func (h *CartHandler) ApplyCoupon(c echo.Context) error {
	var req couponCodeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	view, err := h.cart.ApplyCoupon(c.Request().Context(), actor(c).UserID, req.Code)
	if err != nil {
		return err
	}
	return ok(c, "Coupon applied", view)
}

func (h *CartHandler) RemoveCoupon(c echo.Context) error {
	view, err := h.cart.RemoveCoupon(c.Request().Context(), actor(c).UserID)
	if err != nil {
		return err
	}
	return ok(c, "Coupon removed", view)
}
