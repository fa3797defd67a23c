package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// AuthService guards the admin endpoints. There is no user store: one
// admin credential comes from configuration (username + bcrypt hash)
// and logins mint short-lived JWTs against it.
type AuthService struct {
	jwtSecret    []byte
	jwtExpiry    time.Duration
	adminUser    string
	passwordHash string
}

func NewAuthService(secret, adminUser, passwordHash string, expiryHours int) *AuthService {
	if expiryHours <= 0 {
		expiryHours = 24
	}
	return &AuthService{
		jwtSecret:    []byte(secret),
		jwtExpiry:    time.Duration(expiryHours) * time.Hour,
		adminUser:    adminUser,
		passwordHash: passwordHash,
	}
}

// Enabled reports whether admin auth is configured at all.
func (s *AuthService) Enabled() bool {
	return len(s.jwtSecret) > 0 && s.adminUser != "" && s.passwordHash != ""
}

// Authenticates the admin credential and returns a JWT token
func (s *AuthService) Login(user, password string) (string, error) {
	if !s.Enabled() {
		return "", errors.New("admin auth is not configured")
	}
	if user != s.adminUser {
		return "", errors.New("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(password)); err != nil {
		return "", errors.New("invalid credentials")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  s.adminUser,
		"role": "admin",
		"exp":  time.Now().Add(s.jwtExpiry).Unix(),
		"iat":  time.Now().Unix(),
	})

	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validates a JWT token and returns its claims
func (s *AuthService) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
