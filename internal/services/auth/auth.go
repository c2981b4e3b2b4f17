// Package auth содержит логику аутентификации операторов бэк-офиса.
package auth

import (
	"context"
	"fmt"

	"github.com/maksimkurganov/vpn-backoffice/internal/errs"
	"github.com/maksimkurganov/vpn-backoffice/internal/lib/jwt"
	"github.com/maksimkurganov/vpn-backoffice/internal/lib/password"
	"github.com/maksimkurganov/vpn-backoffice/internal/models"
)

// OperatorRepository описывает контракт для работы с операторами в базе данных.
type OperatorRepository interface {
	GetOperatorByUsername(ctx context.Context, username string) (*models.Operator, error)
}

// Service отвечает за вход операторов и валидацию JWT.
type Service struct {
	operators OperatorRepository
	jwtMaker  jwt.Maker
}

// New создает новый экземпляр Service.
func New(operators OperatorRepository, jwtMaker jwt.Maker) *Service {
	return &Service{
		operators: operators,
		jwtMaker:  jwtMaker,
	}
}

// Login проверяет пароль оператора и генерирует JWT.
// Неизвестное имя и неверный пароль неразличимы для вызывающего.
func (s *Service) Login(ctx context.Context, username, rawPassword string) (token, role string, err error) {
	const op = "auth.Login"

	operator, err := s.operators.GetOperatorByUsername(ctx, username)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", op, errs.ErrValidation)
	}
	if err := password.CompareHash(operator.PasswordHash, rawPassword); err != nil {
		return "", "", fmt.Errorf("%s: %w", op, errs.ErrValidation)
	}
	token, err = s.jwtMaker.GenerateToken(operator.Username, operator.Role)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}
	return token, operator.Role, nil
}

// ValidateToken проверяет JWT и возвращает утверждения токена.
func (s *Service) ValidateToken(_ context.Context, token string) (*jwt.CustomClaims, error) {
	claims, err := s.jwtMaker.ParseToken(token)
	if err != nil {
		return nil, fmt.Errorf("auth.ValidateToken: %w", err)
	}
	return claims, nil
}
