package repository

import (
	"context"
	"fmt"

	"github.com/maksimkurganov/vpn-backoffice/internal/errs"
	"github.com/maksimkurganov/vpn-backoffice/internal/models"
)

const clientColumns = `id, telegram_id, username, email, balance,
	remote_subscriber_id, trial_used, referrer_id, referral_percent, created_at`

func scanClient(row interface{ Scan(...any) error }) (*models.Client, error) {
	var c models.Client
	if err := row.Scan(&c.ID, &c.TelegramID, &c.Username, &c.Email, &c.Balance,
		&c.RemoteSubscriberID, &c.TrialUsed, &c.ReferrerID, &c.ReferralPercent, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetClientByID возвращает клиента по внутреннему идентификатору.
func (s *Storage) GetClientByID(ctx context.Context, id int64) (*models.Client, error) {
	const op = "repository.GetClientByID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + clientColumns + ` FROM clients WHERE id = $1`
	c, err := scanClient(s.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(op, err)
	}
	return c, nil
}

// SetRemoteSubscriberID сохраняет uuid подписчика панели.
// Значение устанавливается не более одного раза: повторная запись
// другого uuid не затирает существующий.
func (s *Storage) SetRemoteSubscriberID(ctx context.Context, clientID int64, subscriberUUID string) error {
	const op = "repository.SetRemoteSubscriberID"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE clients
			  SET remote_subscriber_id = $1
			  WHERE id = $2 AND remote_subscriber_id IS NULL`
	if _, err := s.DB.ExecContext(ctx, query, subscriberUUID, clientID); err != nil {
		return mapError(op, err)
	}
	return nil
}

// MarkTrialUsed помечает пробный период использованным.
// Условный UPDATE по trial_used = false — арбитр одноразовости:
// ноль затронутых строк означает, что пробный период уже выдан.
func (s *Storage) MarkTrialUsed(ctx context.Context, clientID int64) error {
	const op = "repository.MarkTrialUsed"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE clients SET trial_used = true WHERE id = $1 AND trial_used = false`
	res, err := s.DB.ExecContext(ctx, query, clientID)
	if err != nil {
		return mapError(op, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, errs.ErrConflict)
	}
	return nil
}
