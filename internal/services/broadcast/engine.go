// Package broadcast реализует движок авторассылок: вычисление аудитории
// правила, отметку об отправке и публикацию сообщений в очередь.
// Гарантию "не более одной отправки на пару (правило, клиент)" даёт
// уникальная отметка в журнале, записываемая до публикации.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/maksimkurganov/vpn-backoffice/internal/errs"
	"github.com/maksimkurganov/vpn-backoffice/internal/lib/sl"
	"github.com/maksimkurganov/vpn-backoffice/internal/models"
)

// Repository определяет методы хранилища для движка рассылок.
type Repository interface {
	ListEnabledRules(ctx context.Context) ([]*models.BroadcastRule, error)
	GetRuleByID(ctx context.Context, id int64) (*models.BroadcastRule, error)
	ListBroadcastCandidates(ctx context.Context, rule *models.BroadcastRule) ([]*models.Client, error)
	InsertBroadcastLog(ctx context.Context, ruleID, clientID int64) (bool, error)
}

// PanelClient читает состояние подписчика для триггеров,
// зависящих от панели.
type PanelClient interface {
	GetSubscriberByUUID(ctx context.Context, uuid string) (*models.RemoteSubscriber, error)
}

// Publisher публикует сообщение рассылки в очередь доставки.
type Publisher interface {
	PublishBroadcast(ctx context.Context, msg models.BroadcastMessage) error
}

// RuleResult — итог прогона одного правила.
type RuleResult struct {
	RuleID     int64
	Candidates int // Размер SQL-выборки
	Sent       int // Опубликовано сообщений
	Skipped    int // Отсеяно фильтром панели или чужой отметкой
}

// Engine прогоняет правила авторассылок.
type Engine struct {
	repo  Repository
	panel PanelClient
	pub   Publisher
	log   *slog.Logger
	now   func() time.Time

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// New создает новый экземпляр Engine.
func New(repo Repository, panel PanelClient, pub Publisher, log *slog.Logger) *Engine {
	return &Engine{
		repo:  repo,
		panel: panel,
		pub:   pub,
		log:   log,
		now:   time.Now,
		locks: make(map[int64]*sync.Mutex),
	}
}

// RunAllRules прогоняет все включённые правила. Отказ одного правила
// не прерывает прогон остальных.
func (e *Engine) RunAllRules(ctx context.Context) ([]*RuleResult, error) {
	const op = "broadcast.RunAllRules"

	rules, err := e.repo.ListEnabledRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	results := make([]*RuleResult, 0, len(rules))
	for _, rule := range rules {
		res, err := e.runRule(ctx, rule)
		if err != nil {
			e.log.Error("broadcast rule run failed",
				slog.Int64("rule_id", rule.ID), sl.Err(err))
			continue
		}
		results = append(results, res)
	}
	return results, nil
}

// RunRule прогоняет одно правило по идентификатору, в том числе
// выключенное — ручной запуск оператора игнорирует флаг enabled.
func (e *Engine) RunRule(ctx context.Context, ruleID int64) (*RuleResult, error) {
	const op = "broadcast.RunRule"

	rule, err := e.repo.GetRuleByID(ctx, ruleID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	res, err := e.runRule(ctx, rule)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// runRule держит блокировку правила на время прогона: пересёкшийся
// запуск того же правила (крон против ручного) не ждёт, а возвращает
// ErrConflict.
func (e *Engine) runRule(ctx context.Context, rule *models.BroadcastRule) (*RuleResult, error) {
	lock := e.ruleLock(rule.ID)
	if !lock.TryLock() {
		return nil, fmt.Errorf("rule %d is already running: %w", rule.ID, errs.ErrConflict)
	}
	defer lock.Unlock()

	candidates, err := e.repo.ListBroadcastCandidates(ctx, rule)
	if err != nil {
		return nil, err
	}

	res := &RuleResult{RuleID: rule.ID, Candidates: len(candidates)}
	for _, client := range candidates {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}

		ok, err := e.matchesRemote(ctx, rule, client)
		if err != nil {
			// Панель недоступна или подписчик не прочитан: клиента
			// пропускаем без отметки, его подберёт следующий прогон.
			e.log.Warn("broadcast candidate skipped",
				slog.Int64("rule_id", rule.ID),
				slog.Int64("client_id", client.ID), sl.Err(err))
			res.Skipped++
			continue
		}
		if !ok {
			res.Skipped++
			continue
		}

		inserted, err := e.repo.InsertBroadcastLog(ctx, rule.ID, client.ID)
		if err != nil {
			return res, err
		}
		if !inserted {
			res.Skipped++
			continue
		}
		if err := e.pub.PublishBroadcast(ctx, models.BroadcastMessage{
			RuleID:     rule.ID,
			ClientID:   client.ID,
			TelegramID: client.TelegramID,
			Channel:    rule.Channel,
			Text:       rule.Message,
		}); err != nil {
			// Отметка уже записана: сообщение потеряно, но повторная
			// отправка той же паре исключена.
			e.log.Error("broadcast publish failed",
				slog.Int64("rule_id", rule.ID),
				slog.Int64("client_id", client.ID), sl.Err(err))
			continue
		}
		res.Sent++
	}

	e.log.Info("broadcast rule finished",
		slog.Int64("rule_id", rule.ID),
		slog.Int("candidates", res.Candidates),
		slog.Int("sent", res.Sent),
		slog.Int("skipped", res.Skipped))
	return res, nil
}

// matchesRemote дофильтровывает кандидата по состоянию на панели для
// триггеров, которые SQL-выборка покрывает лишь предварительно.
func (e *Engine) matchesRemote(ctx context.Context, rule *models.BroadcastRule, client *models.Client) (bool, error) {
	switch rule.Trigger {
	case models.TriggerInactivity, models.TriggerNoTraffic,
		models.TriggerTrialNotConnected, models.TriggerSubscriptionExpired:
	default:
		return true, nil
	}
	if client.RemoteSubscriberID == nil {
		return false, nil
	}

	sub, err := e.panel.GetSubscriberByUUID(ctx, *client.RemoteSubscriberID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	cutoff := e.now().AddDate(0, 0, -rule.DelayDays)
	switch rule.Trigger {
	case models.TriggerInactivity:
		return sub.OnlineAt == nil || sub.OnlineAt.Before(cutoff), nil
	case models.TriggerNoTraffic:
		return sub.UsedTrafficBytes == 0, nil
	case models.TriggerTrialNotConnected:
		return sub.OnlineAt == nil, nil
	case models.TriggerSubscriptionExpired:
		return sub.ExpireAt.Before(e.now()) && sub.ExpireAt.After(cutoff), nil
	}
	return true, nil
}

func (e *Engine) ruleLock(ruleID int64) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[ruleID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[ruleID] = lock
	}
	return lock
}
