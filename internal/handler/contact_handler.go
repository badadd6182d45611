package handler

import (
	"strconv"

	"shop-service/internal/service"

	"github.com/labstack/echo/v4"
)

type contactRequest struct {
	Name    string `json:"name" validate:"required,max=255"`
	Email   string `json:"email" validate:"required,email,max=255"`
	Subject string `json:"subject" validate:"max=255"`
	Message string `json:"message" validate:"required,max=5000"`
}

type ContactHandler struct {
	contact *service.ContactService
}

func NewContactHandler(contact *service.ContactService) *ContactHandler {
	return &ContactHandler{contact: contact}
}

func (h *ContactHandler) Submit(c echo.Context) error {
	var req contactRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	msg, err := h.contact.Submit(c.Request().Context(), service.ContactInput(req))
	if err != nil {
		return err
	}
	return created(c, "Thank you for your message, we will get back to you soon", msg)
}

// List is the admin inbox; ?unread=true hides messages already read
func (h *ContactHandler) List(c echo.Context) error {
	page, err := pageParams(c)
	if err != nil {
		return err
	}
	unreadOnly := false
	if raw := c.QueryParam("unread"); raw != "" {
		if unreadOnly, err = strconv.ParseBool(raw); err != nil {
			return service.FieldError("unread", "unread must be true or false")
		}
	}

	messages, pagination, err := h.contact.List(c.Request().Context(), unreadOnly, page)
	if err != nil {
		return err
	}
	return paged(c, "Contact messages retrieved", messages, pagination)
}

func (h *ContactHandler) MarkRead(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	msg, err := h.contact.MarkRead(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return ok(c, "Contact message marked as read", msg)
}
