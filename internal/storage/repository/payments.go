package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/maksimkurganov/vpn-backoffice/internal/errs"
	"github.com/maksimkurganov/vpn-backoffice/internal/models"
)

const paymentColumns = `id, client_id, amount, currency, status, purpose,
	tariff_id, gateway, external_id, from_balance, created_at, paid_at`

func scanPayment(row interface{ Scan(...any) error }) (*models.Payment, error) {
	var p models.Payment
	if err := row.Scan(&p.ID, &p.ClientID, &p.Amount, &p.Currency, &p.Status, &p.Purpose,
		&p.TariffID, &p.Gateway, &p.ExternalID, &p.FromBalance, &p.CreatedAt, &p.PaidAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePayment вставляет новый платёж в статусе PENDING.
func (s *Storage) CreatePayment(ctx context.Context, p *models.Payment) error {
	const op = "repository.CreatePayment"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO payments (id, client_id, amount, currency, status, purpose,
			      tariff_id, gateway, external_id, from_balance)
			  VALUES ($1, $2, $3, $4, 'pending', $5, $6, $7, $8, $9)`
	_, err := s.DB.ExecContext(ctx, query,
		p.ID, p.ClientID, p.Amount, p.Currency, p.Purpose,
		p.TariffID, p.Gateway, p.ExternalID, p.FromBalance)
	if err != nil {
		return mapError(op, err)
	}
	return nil
}

// GetPaymentByID возвращает платёж по идентификатору.
func (s *Storage) GetPaymentByID(ctx context.Context, id string) (*models.Payment, error) {
	const op = "repository.GetPaymentByID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	p, err := scanPayment(s.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(op, err)
	}
	return p, nil
}

// MarkPaid переводит платёж PENDING -> PAID условным UPDATE.
// Возвращает true, если переход выполнен этим вызовом; false означает,
// что платёж уже не в PENDING (конкурентный расчёт или повтор вебхука).
func (s *Storage) MarkPaid(ctx context.Context, id string) (bool, error) {
	const op = "repository.MarkPaid"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE payments
			  SET status = 'paid', paid_at = now()
			  WHERE id = $1 AND status = 'pending'`
	res, err := s.DB.ExecContext(ctx, query, id)
	if err != nil {
		return false, mapError(op, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected == 1, nil
}

// MarkPaidWithBalanceDebit списывает сумму с баланса и переводит платёж
// в PAID одной транзакцией. Условное списание по balance >= amount —
// арбитр достаточности средств: ноль строк означает ErrInsufficientFunds,
// и статус платежа не меняется.
func (s *Storage) MarkPaidWithBalanceDebit(ctx context.Context, id string, clientID int64, amount decimal.Decimal) (bool, error) {
	const op = "repository.MarkPaidWithBalanceDebit"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var flipped bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE payments
				  SET status = 'paid', paid_at = now()
				  WHERE id = $1 AND status = 'pending'`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			// Уже PAID или FAILED: повторное списание недопустимо.
			return nil
		}
		res, err = tx.ExecContext(ctx, `UPDATE clients
				  SET balance = balance - $1
				  WHERE id = $2 AND balance >= $1`, amount, clientID)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return errs.ErrInsufficientFunds
		}
		flipped = true
		return nil
	})
	if err != nil {
		if errors.Is(err, errs.ErrInsufficientFunds) {
			return false, fmt.Errorf("%s: %w", op, errs.ErrInsufficientFunds)
		}
		return false, mapError(op, err)
	}
	return flipped, nil
}

// MarkPaidWithTopUp переводит платёж-пополнение в PAID и зачисляет сумму
// на баланс одной транзакцией.
func (s *Storage) MarkPaidWithTopUp(ctx context.Context, id string, clientID int64, amount decimal.Decimal) (bool, error) {
	const op = "repository.MarkPaidWithTopUp"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var flipped bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE payments
				  SET status = 'paid', paid_at = now()
				  WHERE id = $1 AND status = 'pending'`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `UPDATE clients
				  SET balance = balance + $1 WHERE id = $2`, amount, clientID); err != nil {
			return err
		}
		flipped = true
		return nil
	})
	if err != nil {
		return false, mapError(op, err)
	}
	return flipped, nil
}

// MarkFailed переводит платёж PENDING -> FAILED.
func (s *Storage) MarkFailed(ctx context.Context, id string) (bool, error) {
	const op = "repository.MarkFailed"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE payments SET status = 'failed' WHERE id = $1 AND status = 'pending'`
	res, err := s.DB.ExecContext(ctx, query, id)
	if err != nil {
		return false, mapError(op, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected == 1, nil
}

// ListPaymentsByClient возвращает платежи клиента с пагинацией.
func (s *Storage) ListPaymentsByClient(ctx context.Context, clientID int64, limit, offset int) ([]*models.Payment, error) {
	const op = "repository.ListPaymentsByClient"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + paymentColumns + `
			  FROM payments
			  WHERE client_id = $1
			  ORDER BY created_at DESC
			  LIMIT $2 OFFSET $3`
	rows, err := s.DB.QueryContext(ctx, query, clientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
