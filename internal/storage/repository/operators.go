package repository

import (
	"context"
	"fmt"

	"github.com/maksimkurganov/vpn-backoffice/internal/models"
)

// GetOperatorByUsername возвращает оператора по имени.
func (s *Storage) GetOperatorByUsername(ctx context.Context, username string) (*models.Operator, error) {
	const op = "repository.GetOperatorByUsername"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, username, password_hash, role, created_at
			  FROM operators WHERE username = $1`
	var o models.Operator
	err := s.DB.QueryRowContext(ctx, query, username).Scan(
		&o.ID, &o.Username, &o.PasswordHash, &o.Role, &o.CreatedAt)
	if err != nil {
		return nil, mapError(op, err)
	}
	return &o, nil
}

// CreateOperator вставляет нового оператора.
func (s *Storage) CreateOperator(ctx context.Context, username, passwordHash, role string) (int64, error) {
	const op = "repository.CreateOperator"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO operators (username, password_hash, role)
			  VALUES ($1, $2, $3) RETURNING id`
	var id int64
	if err := s.DB.QueryRowContext(ctx, query, username, passwordHash, role).Scan(&id); err != nil {
		return 0, mapError(op, err)
	}
	return id, nil
}
