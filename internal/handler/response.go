package handler

import (
	"errors"
	"fmt"
	"net/http"

	"shop-service/internal/service"
	"shop-service/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Response is the envelope of every JSON response
type Response struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Data    interface{}       `json:"data"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// Page wraps one page of a listing
type Page struct {
	Items      interface{}        `json:"items"`
	Pagination service.Pagination `json:"pagination"`
}

func respond(c echo.Context, code int, message string, data interface{}) error {
	return c.JSON(code, Response{Status: statusSuccess, Message: message, Data: data})
}

func ok(c echo.Context, message string, data interface{}) error {
	return respond(c, http.StatusOK, message, data)
}

func created(c echo.Context, message string, data interface{}) error {
	return respond(c, http.StatusCreated, message, data)
}

func paged(c echo.Context, message string, items interface{}, pagination service.Pagination) error {
	return ok(c, message, Page{Items: items, Pagination: pagination})
}

var kindStatus = map[service.Kind]int{
	service.KindValidation:   http.StatusUnprocessableEntity,
	service.KindNotFound:     http.StatusNotFound,
	service.KindForbidden:    http.StatusForbidden,
	service.KindConflict:     http.StatusConflict,
	service.KindUnauthorized: http.StatusUnauthorized,
}

// errorResponse maps err to a status and envelope. Anything that is not a
// domain, validation or framework error is reported as a bare 500.
func errorResponse(err error) (int, Response) {
	var domainErr *service.Error
	if errors.As(err, &domainErr) {
		if code, ok := kindStatus[domainErr.Kind]; ok {
			return code, Response{Status: statusError, Message: domainErr.Message, Errors: domainErr.Fields}
		}
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return http.StatusUnprocessableEntity, Response{
			Status:  statusError,
			Message: "The given data was invalid",
			Errors:  validationFields(validationErrs),
		}
	}

	var be *echo.BindingError
	if errors.As(err, &be) {
		return http.StatusBadRequest, Response{Status: statusError, Message: "Invalid value for " + be.Field}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		message := http.StatusText(he.Code)
		if he.Code < http.StatusInternalServerError {
			if m, ok := he.Message.(string); ok {
				message = m
			} else if he.Message != nil {
				message = fmt.Sprint(he.Message)
			}
		}
		return he.Code, Response{Status: statusError, Message: message}
	}

	return http.StatusInternalServerError, Response{Status: statusError, Message: "internal server error"}
}

// HTTPErrorHandler writes every error, including routing and binding
// errors raised by echo, as an envelope
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code, body := errorResponse(err)
	log := logger.FromContext(c)
	if code >= http.StatusInternalServerError {
		log.Error("Request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Error(err))
	} else {
		log.Debug("Request rejected", zap.Int("status", code), zap.Error(err))
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, body)
	}
	if err != nil {
		log.Error("Failed to write error response", zap.Error(err))
	}
}
