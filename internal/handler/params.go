package handler

import (
	"net/http"
	"strconv"

	"shop-service/internal/middleware"
	"shop-service/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// paramID parses a positive numeric path parameter
func paramID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid "+name)
	}
	return uint(id), nil
}

func pageParams(c echo.Context) (service.Page, error) {
	var p service.Page
	err := echo.QueryParamsBinder(c).
		Int("page", &p.Page).
		Int("limit", &p.Limit).
		BindError()
	return p, err
}

func optionalUint(c echo.Context, name string) (*uint, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, service.FieldError(name, name+" must be a positive integer")
	}
	id := uint(v)
	return &id, nil
}

func optionalDecimal(c echo.Context, name string) (*decimal.Decimal, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, service.FieldError(name, name+" must be a number")
	}
	return &d, nil
}

// actor identifies the authenticated caller; routes using it sit behind JWT auth
func actor(c echo.Context) service.Actor {
	claims := middleware.CurrentUser(c)
	if claims == nil {
		return service.Actor{}
	}
	return service.Actor{UserID: claims.UserID, Role: claims.Role}
}
