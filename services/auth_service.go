package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

// AuthService authenticates the race official. There is exactly one official
// account, configured at startup; everyone else reads the public endpoints.
type AuthService interface {
	Login(ctx context.Context, input LoginInput) (string, error)
}

type LoginInput struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type authService struct {
	officialLogin string
	passwordHash  []byte
	jwtSecret     []byte
	tokenTTL      time.Duration
}

func NewAuthService(officialLogin, passwordHash, jwtSecret string) AuthService {
	return &authService{
		officialLogin: officialLogin,
		passwordHash:  []byte(passwordHash),
		jwtSecret:     []byte(jwtSecret),
		tokenTTL:      24 * time.Hour,
	}
}

func (s *authService) Login(_ context.Context, input LoginInput) (string, error) {
	if input.Login != s.officialLogin {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(input.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("failed to compare password hash: %w", err)
	}

	claims := jwt.MapClaims{
		"sub":  s.officialLogin,
		"role": "official",
		"exp":  time.Now().Add(s.tokenTTL).Unix(),
		"iat":  time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}
