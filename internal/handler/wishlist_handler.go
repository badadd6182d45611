package handler

import (
	"net/http"

	"shop-service/internal/service"

	"github.com/labstack/echo/v4"
)

type wishlistRequest struct {
	ProductID uint `json:"product_id" validate:"required"`
}

type WishlistHandler struct {
	wishlist *service.WishlistService
}

func NewWishlistHandler(wishlist *service.WishlistService) *WishlistHandler {
	return &WishlistHandler{wishlist: wishlist}
}

func (h *WishlistHandler) List(c echo.Context) error {
	items, err := h.wishlist.List(c.Request().Context(), actor(c).UserID)
	if err != nil {
		return err
	}
	return ok(c, "Wishlist retrieved", items)
}

// Add is idempotent: adding a product twice answers 200 with the existing entry
func (h *WishlistHandler) Add(c echo.Context) error {
	var req wishlistRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	item, isNew, err := h.wishlist.Add(c.Request().Context(), actor(c).UserID, req.ProductID)
	if err != nil {
		return err
	}
	if isNew {
		return respond(c, http.StatusCreated, "Product added to wishlist", item)
	}
	return ok(c, "Product already in wishlist", item)
}

func (h *WishlistHandler) Remove(c echo.Context) error {
	productID, err := paramID(c, "product_id")
	if err != nil {
		return err
	}
	if err := h.wishlist.Remove(c.Request().Context(), actor(c).UserID, productID); err != nil {
		return err
	}
	return ok(c, "Product removed from wishlist", nil)
}
