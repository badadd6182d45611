package middleware

import (
	"net/http"
	"strings"

	"shop-service/internal/model"
	"shop-service/pkg/jwtutil"
	"shop-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const userContextKey = "user"

// JWTAuthMiddleware rejects requests without a valid bearer token
func JWTAuthMiddleware(jwtUtil *jwtutil.JWTUtil) echo.MiddlewareFunc {
	return jwtAuth(jwtUtil, false)
}

// OptionalJWTAuthMiddleware identifies the caller when a bearer token is
// sent and lets anonymous requests through. A token that is sent but
// invalid is still rejected.
func OptionalJWTAuthMiddleware(jwtUtil *jwtutil.JWTUtil) echo.MiddlewareFunc {
	return jwtAuth(jwtUtil, true)
}

func jwtAuth(jwtUtil *jwtutil.JWTUtil, optional bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromContext(c)

			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				if optional {
					return next(c)
				}
				log.Warn("Missing authorization header")
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				log.Warn("Invalid authorization header format")
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization header format")
			}

			claims, err := jwtUtil.ValidateToken(strings.TrimSpace(parts[1]))
			if err != nil {
				log.Warn("Invalid or expired token", zap.Error(err))
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
			}

			c.Set(userContextKey, claims)
			logger.WithContext(c, log.With(zap.Uint("user_id", claims.UserID)))
			log.Debug("JWT token validated successfully",
				zap.Uint("user_id", claims.UserID),
				zap.String("email", claims.Email))

			return next(c)
		}
	}
}

// RequireAdmin allows only callers whose token carries the admin role.
// It must run after JWTAuthMiddleware.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims := CurrentUser(c)
			if claims == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
			}
			if claims.Role != model.RoleAdmin {
				logger.FromContext(c).Warn("Admin route denied", zap.String("role", claims.Role), zap.String("path", c.Path()))
				return echo.NewHTTPError(http.StatusForbidden, "Admin access required")
			}
			return next(c)
		}
	}
}

// CurrentUser returns the claims of the authenticated caller, or nil
func CurrentUser(c echo.Context) *jwtutil.UserClaims {
	claims, _ := c.Get(userContextKey).(*jwtutil.UserClaims)
	return claims
}
