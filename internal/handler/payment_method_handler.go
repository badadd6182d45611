package handler

import (
	"shop-service/internal/service"

	"github.com/labstack/echo/v4"
)

type paymentMethodRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Code        string `json:"code" validate:"required,max=50"`
	Description string `json:"description" validate:"max=1000"`
	IsActive    *bool  `json:"is_active"`
}

type PaymentMethodHandler struct {
	methods *service.PaymentMethodService
}

func NewPaymentMethodHandler(methods *service.PaymentMethodService) *PaymentMethodHandler {
	return &PaymentMethodHandler{methods: methods}
}

// ListActive is the checkout list
func (h *PaymentMethodHandler) ListActive(c echo.Context) error {
	methods, err := h.methods.List(c.Request().Context(), true)
	if err != nil {
		return err
	}
	return ok(c, "Payment methods retrieved", methods)
}

func (h *PaymentMethodHandler) ListAll(c echo.Context) error {
	methods, err := h.methods.List(c.Request().Context(), false)
	if err != nil {
		return err
	}
	return ok(c, "Payment methods retrieved", methods)
}

func (h *PaymentMethodHandler) Get(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	method, err := h.methods.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return ok(c, "Payment method retrieved", method)
}

func (h *PaymentMethodHandler) Create(c echo.Context) error {
	var req paymentMethodRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	method, err := h.methods.Create(c.Request().Context(), service.PaymentMethodInput(req))
	if err != nil {
		return err
	}
	return created(c, "Payment method created", method)
}

func (h *PaymentMethodHandler) Update(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req paymentMethodRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	method, err := h.methods.Update(c.Request().Context(), id, service.PaymentMethodInput(req))
	if err != nil {
		return err
	}
	return ok(c, "Payment method updated", method)
}

func (h *PaymentMethodHandler) Delete(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.methods.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return ok(c, "Payment method deleted", nil)
}
