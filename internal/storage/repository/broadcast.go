package repository

import (
	"context"
	"fmt"

	"github.com/maksimkurganov/vpn-backoffice/internal/models"
)

// ListEnabledRules возвращает включённые правила авторассылок.
func (s *Storage) ListEnabledRules(ctx context.Context) ([]*models.BroadcastRule, error) {
	const op = "repository.ListEnabledRules"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, name, trigger_type, delay_days, channel, message, enabled, created_at
			  FROM broadcast_rules
			  WHERE enabled = true
			  ORDER BY id`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.BroadcastRule
	for rows.Next() {
		var r models.BroadcastRule
		if err := rows.Scan(&r.ID, &r.Name, &r.Trigger, &r.DelayDays, &r.Channel,
			&r.Message, &r.Enabled, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// GetRuleByID возвращает правило по идентификатору.
func (s *Storage) GetRuleByID(ctx context.Context, id int64) (*models.BroadcastRule, error) {
	const op = "repository.GetRuleByID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, name, trigger_type, delay_days, channel, message, enabled, created_at
			  FROM broadcast_rules WHERE id = $1`
	var r models.BroadcastRule
	err := s.DB.QueryRowContext(ctx, query, id).Scan(&r.ID, &r.Name, &r.Trigger,
		&r.DelayDays, &r.Channel, &r.Message, &r.Enabled, &r.CreatedAt)
	if err != nil {
		return nil, mapError(op, err)
	}
	return &r, nil
}

// ListBroadcastCandidates возвращает клиентов, подходящих под SQL-часть
// предиката правила на момент "сейчас минус delay_days" и ещё не имеющих
// отметки об отправке. Для триггеров, зависящих от состояния на панели,
// выборка предварительная — движок дофильтровывает её через адаптер.
func (s *Storage) ListBroadcastCandidates(ctx context.Context, rule *models.BroadcastRule) ([]*models.Client, error) {
	const op = "repository.ListBroadcastCandidates"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	base := `SELECT ` + clientColumns + `
			 FROM clients c
			 WHERE NOT EXISTS (
			     SELECT 1 FROM broadcast_log l
			     WHERE l.rule_id = $1 AND l.client_id = c.id)
			 AND `

	var predicate string
	switch rule.Trigger {
	case models.TriggerAfterRegistration:
		predicate = `c.created_at <= now() - make_interval(days => $2)`
	case models.TriggerNoPayment:
		predicate = `c.created_at <= now() - make_interval(days => $2)
			 AND NOT EXISTS (SELECT 1 FROM payments p WHERE p.client_id = c.id)`
	case models.TriggerTrialUsedNeverPaid:
		predicate = `c.trial_used = true
			 AND c.created_at <= now() - make_interval(days => $2)
			 AND NOT EXISTS (
			     SELECT 1 FROM payments p
			     WHERE p.client_id = c.id AND p.status = 'paid' AND p.purpose <> 'top_up')`
	case models.TriggerTrialNotConnected:
		predicate = `c.trial_used = true
			 AND c.remote_subscriber_id IS NOT NULL
			 AND c.created_at <= now() - make_interval(days => $2)`
	case models.TriggerInactivity, models.TriggerNoTraffic, models.TriggerSubscriptionExpired:
		predicate = `c.remote_subscriber_id IS NOT NULL
			 AND c.created_at <= now() - make_interval(days => $2)`
	default:
		return nil, fmt.Errorf("%s: unknown trigger %q", op, rule.Trigger)
	}

	rows, err := s.DB.QueryContext(ctx, base+predicate, rule.ID, rule.DelayDays)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// InsertBroadcastLog записывает отметку об отправке.
// ON CONFLICT DO NOTHING поверх уникального (rule_id, client_id):
// false означает, что отметка уже была и отправлять нельзя.
func (s *Storage) InsertBroadcastLog(ctx context.Context, ruleID, clientID int64) (bool, error) {
	const op = "repository.InsertBroadcastLog"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO broadcast_log (rule_id, client_id)
			  VALUES ($1, $2)
			  ON CONFLICT (rule_id, client_id) DO NOTHING`
	res, err := s.DB.ExecContext(ctx, query, ruleID, clientID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected == 1, nil
}
