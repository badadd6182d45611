package handler

import (
	"shop-service/internal/model"
	"shop-service/internal/service"

	"github.com/labstack/echo/v4"
)

type reviewRequest struct {
	ProductID uint   `json:"product_id" validate:"required"`
	Rating    int    `json:"rating" validate:"required,min=1,max=5"`
	Content   string `json:"content" validate:"max=5000"`
}

type reviewUpdateRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Content string `json:"content" validate:"max=5000"`
}

// ProductReviews is the review listing of a product
type ProductReviews struct {
	Reviews    []model.Review        `json:"reviews"`
	Rating     service.RatingSummary `json:"rating"`
	Pagination service.Pagination    `json:"pagination"`
}

type ReviewHandler struct {
	reviews *service.ReviewService
}

func NewReviewHandler(reviews *service.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviews: reviews}
}

func (h *ReviewHandler) ListForProduct(c echo.Context) error {
	productID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	page, err := pageParams(c)
	if err != nil {
		return err
	}

	reviews, rating, pagination, err := h.reviews.ListForProduct(c.Request().Context(), productID, page)
	if err != nil {
		return err
	}
	return ok(c, "Reviews retrieved", ProductReviews{Reviews: reviews, Rating: rating, Pagination: pagination})
}

func (h *ReviewHandler) Create(c echo.Context) error {
	var req reviewRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	review, err := h.reviews.Create(c.Request().Context(), actor(c).UserID, service.ReviewInput(req))
	if err != nil {
		return err
	}
	return created(c, "Review submitted", review)
}

func (h *ReviewHandler) Update(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req reviewUpdateRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	review, err := h.reviews.Update(c.Request().Context(), actor(c), id, service.ReviewInput{
		Rating:  req.Rating,
		Content: req.Content,
	})
	if err != nil {
		return err
	}
	return ok(c, "Review updated", review)
}

func (h *ReviewHandler) Delete(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.reviews.Delete(c.Request().Context(), actor(c), id); err != nil {
		return err
	}
	return ok(c, "Review deleted", nil)
}
