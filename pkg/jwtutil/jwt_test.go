package jwtutil

import (
	"testing"
	"time"

	"shop-service/pkg/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	util := NewJWTUtil(&config.JWTConfig{SigningKey: "secret", ExpirationHours: 2})

	token, expiresAt, err := util.GenerateToken("admin@shop.test", 7, "admin")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), expiresAt, time.Minute)

	claims, err := util.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "admin@shop.test", claims.Email)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "7", claims.Subject)
}

func TestValidateRejectsWrongKey(t *testing.T) {
	issuer := NewJWTUtil(&config.JWTConfig{SigningKey: "one", ExpirationHours: 1})
	verifier := NewJWTUtil(&config.JWTConfig{SigningKey: "two", ExpirationHours: 1})

	token, _, err := issuer.GenerateToken("a@shop.test", 1, "customer")
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateRejectsExpired(t *testing.T) {
	util := NewJWTUtil(&config.JWTConfig{SigningKey: "secret", ExpirationHours: 1})
	util.now = func() time.Time { return time.Now().Add(-3 * time.Hour) }

	token, _, err := util.GenerateToken("a@shop.test", 1, "customer")
	require.NoError(t, err)

	util.now = time.Now
	_, err = util.ValidateToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestValidateRejectsNoneAlgorithm(t *testing.T) {
	util := NewJWTUtil(&config.JWTConfig{SigningKey: "secret", ExpirationHours: 1})

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, UserClaims{UserID: 1, Role: "admin"})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = util.ValidateToken(token)
	assert.Error(t, err)
}

func TestGenerateWithoutKey(t *testing.T) {
	util := NewJWTUtil(&config.JWTConfig{})
	_, _, err := util.GenerateToken("a@shop.test", 1, "customer")
	assert.Error(t, err)
}
