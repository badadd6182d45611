package handler

import (
	"shop-service/internal/service"
	"shop-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type profileRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

type AuthHandler struct {
	auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	result, err := h.auth.Register(c.Request().Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}
	return created(c, "Registration successful", result)
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	result, err := h.auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		logger.FromContext(c).Warn("Login failed", zap.String("email", req.Email))
		return err
	}
	return ok(c, "Login successful", result)
}

func (h *AuthHandler) Profile(c echo.Context) error {
	user, err := h.auth.Profile(c.Request().Context(), actor(c).UserID)
	if err != nil {
		return err
	}
	return ok(c, "Profile retrieved", user)
}

func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	var req profileRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := h.auth.UpdateProfile(c.Request().Context(), actor(c).UserID, req.Name)
	if err != nil {
		return err
	}
	return ok(c, "Profile updated", user)
}
