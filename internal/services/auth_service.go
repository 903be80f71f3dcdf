package services

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"qrshop/internal/domain"
	"qrshop/internal/repos"
)

var ErrBadCreds = errors.New("invalid email or password")

type AuthService struct {
	Users *repos.UserRepo
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, error) {
	u, err := s.Users.ByEmail(ctx, email)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, ErrBadCreds
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Hash), []byte(password)) != nil {
		return nil, ErrBadCreds
	}
	return u, nil
}

// User resolves the session user; a missing row means the session is stale.
func (s *AuthService) User(ctx context.Context, id int64) (*domain.User, error) {
	if id <= 0 {
		return nil, domain.ErrUnauthenticated
	}
	u, err := s.Users.ByID(ctx, id)
	if domain.IsNotFound(err) {
		return nil, domain.ErrUnauthenticated
	}
	return u, err
}
