package handler

import (
	"shop-service/internal/model"
	"shop-service/internal/service"
	"shop-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// HeaderIdempotencyKey lets clients retry checkout without placing a second order
const HeaderIdempotencyKey = "Idempotency-Key"

type placeOrderRequest struct {
	ShippingAddress string `json:"shipping_address" validate:"required,max=1000"`
	BillingAddress  string `json:"billing_address" validate:"max=1000"`
	PaymentMethodID uint   `json:"payment_method_id" validate:"required"`
	Notes           string `json:"notes" validate:"max=1000"`
}

type orderStatusRequest struct {
	Status model.OrderStatus `json:"status" validate:"required,oneof=pending processing completed cancelled"`
}

type OrderHandler struct {
	orders *service.OrderService
}

func NewOrderHandler(orders *service.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// Place checks out the caller's cart
func (h *OrderHandler) Place(c echo.Context) error {
	var req placeOrderRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	order, err := h.orders.Place(c.Request().Context(), actor(c).UserID, service.PlaceOrderInput{
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		PaymentMethodID: req.PaymentMethodID,
		Notes:           req.Notes,
		IdempotencyKey:  c.Request().Header.Get(HeaderIdempotencyKey),
	})
	if err != nil {
		return err
	}

	logger.FromContext(c).Info("Order placed",
		zap.Uint("order_id", order.ID),
		zap.String("number", order.Number),
		zap.String("total", order.Total.StringFixed(2)))
	return created(c, "Order placed", order)
}

func (h *OrderHandler) ListMine(c echo.Context) error {
	page, err := pageParams(c)
	if err != nil {
		return err
	}
	orders, pagination, err := h.orders.ListForUser(c.Request().Context(), actor(c).UserID, page)
	if err != nil {
		return err
	}
	return paged(c, "Orders retrieved", orders, pagination)
}

// Get serves both the customer and admin order detail
func (h *OrderHandler) Get(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	order, err := h.orders.Get(c.Request().Context(), actor(c), id)
	if err != nil {
		return err
	}
	return ok(c, "Order retrieved", order)
}

func (h *OrderHandler) Cancel(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	order, err := h.orders.Cancel(c.Request().Context(), actor(c).UserID, id)
	if err != nil {
		return err
	}
	return ok(c, "Order cancelled", order)
}

func (h *OrderHandler) AdminList(c echo.Context) error {
	page, err := pageParams(c)
	if err != nil {
		return err
	}
	status := model.OrderStatus(c.QueryParam("status"))
	if status != "" && !status.Valid() {
		return service.FieldError("status", "status must be one of pending, processing, completed, cancelled")
	}

	orders, pagination, err := h.orders.ListAll(c.Request().Context(), status, page)
	if err != nil {
		return err
	}
	return paged(c, "Orders retrieved", orders, pagination)
}

func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req orderStatusRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	order, err := h.orders.UpdateStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return err
	}
	logger.FromContext(c).Info("Order status updated",
		zap.Uint("order_id", order.ID),
		zap.String("status", string(order.Status)))
	return ok(c, "Order status updated", order)
}
