package service

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidPassword = errors.New("invalid password")

// AuthService guards the single-admin dashboard. The password comes from
// configuration; it is hashed once at startup so every comparison goes
// through bcrypt.
type AuthService struct {
	passwordHash []byte
}

func NewAuthService(adminPassword string) (*AuthService, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	return &AuthService{passwordHash: hash}, nil
}

func (s *AuthService) Authenticate(password string) error {
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)); err != nil {
		return ErrInvalidPassword
	}
	return nil
}
