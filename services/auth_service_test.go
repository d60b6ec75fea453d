package services

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testJWTSecret = "test-secret"

func newTestAuthService(t *testing.T, login, password string) AuthService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return NewAuthService(login, string(hash), testJWTSecret)
}

func TestLoginIssuesOfficialToken(t *testing.T) {
	svc := newTestAuthService(t, "official", "pitlane")

	tokenString, err := svc.Login(context.Background(), LoginInput{Login: "official", Password: "pitlane"})
	require.NoError(t, err)
	require.NotEmpty(t, tokenString)

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(testJWTSecret), nil
	})
	require.NoError(t, err)
	require.True(t, token.Valid)
	assert.Equal(t, "official", claims["sub"])
	assert.Equal(t, "official", claims["role"])
	assert.NotNil(t, claims["exp"])
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	svc := newTestAuthService(t, "official", "pitlane")

	_, err := svc.Login(context.Background(), LoginInput{Login: "official", Password: "paddock"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginRejectsUnknownLogin(t *testing.T) {
	svc := newTestAuthService(t, "official", "pitlane")

	_, err := svc.Login(context.Background(), LoginInput{Login: "steward", Password: "pitlane"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
