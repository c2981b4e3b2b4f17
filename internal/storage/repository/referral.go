package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/maksimkurganov/vpn-backoffice/internal/models"
)

// ListCreditsByPayment возвращает строки реферального журнала по платежу.
// Непустой результат означает, что награды уже розданы.
func (s *Storage) ListCreditsByPayment(ctx context.Context, paymentID string) ([]*models.ReferralCredit, error) {
	const op = "repository.ListCreditsByPayment"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, referrer_id, client_id, level, percent, amount, source_payment_id, created_at
			  FROM referral_credits
			  WHERE source_payment_id = $1
			  ORDER BY level`
	rows, err := s.DB.QueryContext(ctx, query, paymentID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.ReferralCredit
	for rows.Next() {
		var c models.ReferralCredit
		if err := rows.Scan(&c.ID, &c.ReferrerID, &c.ClientID, &c.Level, &c.Percent,
			&c.Amount, &c.SourcePaymentID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CreditReferral добавляет строку журнала и зачисляет сумму на баланс
// реферера одной транзакцией. Уникальное ограничение
// (source_payment_id, level) отсекает конкурентную повторную раздачу.
func (s *Storage) CreditReferral(ctx context.Context, credit *models.ReferralCredit) error {
	const op = "repository.CreditReferral"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO referral_credits (referrer_id, client_id, level, percent, amount, source_payment_id)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id, created_at`,
			credit.ReferrerID, credit.ClientID, credit.Level, credit.Percent,
			credit.Amount, credit.SourcePaymentID).Scan(&credit.ID, &credit.CreatedAt)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE clients SET balance = balance + $1 WHERE id = $2`,
			credit.Amount, credit.ReferrerID)
		return err
	})
	if err != nil {
		return mapError(op, err)
	}
	return nil
}
