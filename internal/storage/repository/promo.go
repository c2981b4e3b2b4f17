package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/maksimkurganov/vpn-backoffice/internal/errs"
	"github.com/maksimkurganov/vpn-backoffice/internal/models"
)

// GetPromoGroupByCode возвращает промо-группу по коду.
func (s *Storage) GetPromoGroupByCode(ctx context.Context, code string) (*models.PromoGroup, error) {
	const op = "repository.GetPromoGroupByCode"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, code, max_activations, free_days, squad_uuid, active, created_at
			  FROM promo_groups WHERE code = $1`
	var g models.PromoGroup
	err := s.DB.QueryRowContext(ctx, query, code).Scan(
		&g.ID, &g.Code, &g.MaxActivations, &g.FreeDays, &g.SquadUUID, &g.Active, &g.CreatedAt)
	if err != nil {
		return nil, mapError(op, err)
	}
	return &g, nil
}

// GetPromoCodeByCode возвращает промокод по коду.
func (s *Storage) GetPromoCodeByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	const op = "repository.GetPromoCodeByCode"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, code, type, discount_percent, free_days, max_uses,
			      max_uses_per_client, expires_at, active, created_at
			  FROM promo_codes WHERE code = $1`
	var c models.PromoCode
	err := s.DB.QueryRowContext(ctx, query, code).Scan(
		&c.ID, &c.Code, &c.Type, &c.DiscountPercent, &c.FreeDays, &c.MaxUses,
		&c.MaxUsesPerClient, &c.ExpiresAt, &c.Active, &c.CreatedAt)
	if err != nil {
		return nil, mapError(op, err)
	}
	return &c, nil
}

// CountGroupActivations возвращает число активаций группы.
func (s *Storage) CountGroupActivations(ctx context.Context, groupID int64) (int, error) {
	const op = "repository.CountGroupActivations"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var n int
	err := s.DB.QueryRowContext(ctx,
		`SELECT count(*) FROM promo_activations WHERE group_id = $1`, groupID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// HasGroupActivation сообщает, активировал ли клиент группу ранее.
func (s *Storage) HasGroupActivation(ctx context.Context, groupID, clientID int64) (bool, error) {
	const op = "repository.HasGroupActivation"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var exists bool
	err := s.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM promo_activations WHERE group_id = $1 AND client_id = $2)`,
		groupID, clientID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// CountCodeUsages возвращает общее число использований промокода
// и число использований данным клиентом.
func (s *Storage) CountCodeUsages(ctx context.Context, codeID, clientID int64) (total int, byClient int, err error) {
	const op = "repository.CountCodeUsages"
	select {
	case <-ctx.Done():
		return 0, 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT count(*), count(*) FILTER (WHERE client_id = $2)
			  FROM promo_code_usages WHERE code_id = $1`
	if err := s.DB.QueryRowContext(ctx, query, codeID, clientID).Scan(&total, &byClient); err != nil {
		return 0, 0, fmt.Errorf("%s: %w", op, err)
	}
	return total, byClient, nil
}

// InsertGroupActivation записывает активацию группы.
// Уникальное ограничение (group_id, client_id) — арбитр одноразовости,
// общий лимит проверяется под блокировкой строки группы: конкурентные
// активации сериализуются на FOR UPDATE.
func (s *Storage) InsertGroupActivation(ctx context.Context, groupID, clientID int64) error {
	const op = "repository.InsertGroupActivation"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var maxActivations int
		err := tx.QueryRowContext(ctx,
			`SELECT max_activations FROM promo_groups WHERE id = $1 FOR UPDATE`,
			groupID).Scan(&maxActivations)
		if err != nil {
			return err
		}
		if maxActivations > 0 {
			var used int
			if err := tx.QueryRowContext(ctx,
				`SELECT count(*) FROM promo_activations WHERE group_id = $1`,
				groupID).Scan(&used); err != nil {
				return err
			}
			if used >= maxActivations {
				return errs.ErrConflict
			}
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO promo_activations (group_id, client_id) VALUES ($1, $2)`,
			groupID, clientID)
		return err
	})
	if err != nil {
		if errors.Is(err, errs.ErrConflict) {
			return fmt.Errorf("%s: %w", op, errs.ErrConflict)
		}
		return mapError(op, err)
	}
	return nil
}

// InsertCodeUsage записывает использование промокода.
// Лимиты проверяются под блокировкой строки промокода: именно счёт строк
// в транзакции, а не предшествовавшее чтение, решает исход гонки.
func (s *Storage) InsertCodeUsage(ctx context.Context, codeID, clientID int64) error {
	const op = "repository.InsertCodeUsage"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var maxUses, maxUsesPerClient int
		err := tx.QueryRowContext(ctx,
			`SELECT max_uses, max_uses_per_client FROM promo_codes WHERE id = $1 FOR UPDATE`,
			codeID).Scan(&maxUses, &maxUsesPerClient)
		if err != nil {
			return err
		}
		var total, byClient int
		if err := tx.QueryRowContext(ctx,
			`SELECT count(*), count(*) FILTER (WHERE client_id = $2)
			 FROM promo_code_usages WHERE code_id = $1`,
			codeID, clientID).Scan(&total, &byClient); err != nil {
			return err
		}
		if maxUses > 0 && total >= maxUses {
			return errs.ErrConflict
		}
		if maxUsesPerClient > 0 && byClient >= maxUsesPerClient {
			return errs.ErrConflict
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO promo_code_usages (code_id, client_id) VALUES ($1, $2)`,
			codeID, clientID)
		return err
	})
	if err != nil {
		if errors.Is(err, errs.ErrConflict) {
			return fmt.Errorf("%s: %w", op, errs.ErrConflict)
		}
		return mapError(op, err)
	}
	return nil
}
