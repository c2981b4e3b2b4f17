package repository

import (
	"context"
	"fmt"

	"github.com/maksimkurganov/vpn-backoffice/internal/models"
)

// GetTariffByID возвращает тариф по идентификатору.
func (s *Storage) GetTariffByID(ctx context.Context, id int64) (*models.Tariff, error) {
	const op = "repository.GetTariffByID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, name, kind, price, duration_days, traffic_limit_bytes,
			      traffic_strategy, device_limit, squad_uuid, active
			  FROM tariffs WHERE id = $1`
	var t models.Tariff
	err := s.DB.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.Name, &t.Kind, &t.Price, &t.DurationDays, &t.TrafficLimitBytes,
		&t.TrafficStrategy, &t.DeviceLimit, &t.SquadUUID, &t.Active)
	if err != nil {
		return nil, mapError(op, err)
	}
	return &t, nil
}

// ListActiveTariffs возвращает активные тарифы.
func (s *Storage) ListActiveTariffs(ctx context.Context) ([]*models.Tariff, error) {
	const op = "repository.ListActiveTariffs"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, name, kind, price, duration_days, traffic_limit_bytes,
			      traffic_strategy, device_limit, squad_uuid, active
			  FROM tariffs
			  WHERE active = true
			  ORDER BY id`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Tariff
	for rows.Next() {
		var t models.Tariff
		if err := rows.Scan(&t.ID, &t.Name, &t.Kind, &t.Price, &t.DurationDays,
			&t.TrafficLimitBytes, &t.TrafficStrategy, &t.DeviceLimit, &t.SquadUUID, &t.Active); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
