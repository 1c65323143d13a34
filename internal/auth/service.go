package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/Younus004/wisdom/internal/apperr"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = fmt.Errorf("invalid login or password: %w", apperr.ErrUnauthorized)

// Credentials is the single front office account.
type Credentials struct {
	Login string
	// PasswordHash is a bcrypt hash. When empty, Password is hashed at startup.
	PasswordHash string
	Password     string
}

type Service struct {
	login  string
	hash   []byte
	tokens *TokenIssuer
}

func NewService(creds Credentials, tokens *TokenIssuer) (*Service, error) {
	if creds.Login == "" {
		return nil, errors.New("front office login is not configured")
	}
	hash := []byte(creds.PasswordHash)
	if len(hash) == 0 {
		if creds.Password == "" {
			return nil, errors.New("front office password is not configured")
		}
		var err error
		hash, err = bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash front office password: %w", err)
		}
	}
	return &Service{login: creds.Login, hash: hash, tokens: tokens}, nil
}

func (s *Service) Login(_ context.Context, req LoginRequest) (*LoginResponse, error) {
	if subtle.ConstantTimeCompare([]byte(req.Login), []byte(s.login)) != 1 {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(s.hash, []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	p := Principal{Login: s.login, Role: RoleFrontOffice}
	token, err := s.tokens.Generate(p)
	if err != nil {
		return nil, err
	}
	return &LoginResponse{AccessToken: token, Login: p.Login, Role: p.Role}, nil
}

func (s *Service) Authenticate(token string) (Principal, error) {
	return s.tokens.Validate(token)
}

type LoginRequest struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"accessToken"`
	Login       string `json:"login"`
	Role        string `json:"role"`
}
