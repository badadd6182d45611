package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"shop-service/internal/model"
	"shop-service/pkg/config"
	"shop-service/pkg/jwtutil"
	"shop-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newJWT() *jwtutil.JWTUtil {
	return jwtutil.NewJWTUtil(&config.JWTConfig{SigningKey: "middleware-test", ExpirationHours: 1})
}

func newContext(header string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	return he.Code
}

func ok(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}

func TestJWTAuthMiddleware(t *testing.T) {
	j := newJWT()
	token, _, err := j.GenerateToken("ann@example.com", 7, model.RoleCustomer)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-token", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newContext(tt.header)
			err := JWTAuthMiddleware(j)(ok)(c)
			assert.Equal(t, tt.want, statusOf(t, err))
			assert.Nil(t, CurrentUser(c))
		})
	}

	c, rec := newContext("Bearer " + token)
	require.NoError(t, JWTAuthMiddleware(j)(ok)(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, CurrentUser(c))
	assert.Equal(t, uint(7), CurrentUser(c).UserID)
}

func TestOptionalJWTAuthMiddleware(t *testing.T) {
	j := newJWT()

	c, rec := newContext("")
	require.NoError(t, OptionalJWTAuthMiddleware(j)(ok)(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Nil(t, CurrentUser(c))

	c, _ = newContext("Bearer broken")
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, OptionalJWTAuthMiddleware(j)(ok)(c)))
}

func TestRequireAdmin(t *testing.T) {
	j := newJWT()
	chain := func(next echo.HandlerFunc) echo.HandlerFunc {
		return JWTAuthMiddleware(j)(RequireAdmin()(next))
	}

	customer, _, err := j.GenerateToken("c@example.com", 1, model.RoleCustomer)
	require.NoError(t, err)
	admin, _, err := j.GenerateToken("a@example.com", 2, model.RoleAdmin)
	require.NoError(t, err)

	c, _ := newContext("Bearer " + customer)
	assert.Equal(t, http.StatusForbidden, statusOf(t, chain(ok)(c)))

	c, rec := newContext("Bearer " + admin)
	require.NoError(t, chain(ok)(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	c, _ = newContext("")
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, RequireAdmin()(ok)(c)))
}

func TestRequestIDMiddleware(t *testing.T) {
	c, rec := newContext("")
	var seen *zap.Logger
	err := RequestIDMiddleware()(func(c echo.Context) error {
		seen = logger.FromContext(c)
		return ok(c)
	})(c)
	require.NoError(t, err)

	id := rec.Header().Get(echo.HeaderXRequestID)
	assert.Len(t, id, 36)
	assert.NotNil(t, seen)

	c, rec = newContext("")
	c.Request().Header.Set(echo.HeaderXRequestID, "given-id")
	require.NoError(t, RequestIDMiddleware()(ok)(c))
	assert.Equal(t, "given-id", rec.Header().Get(echo.HeaderXRequestID))
}
