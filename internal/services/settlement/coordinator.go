// Package settlement координирует расчёт платежей: перевод статуса,
// применение гранта на панели, реферальные начисления и уведомления.
// Арбитром конкурентных расчётов служит условный UPDATE статуса:
// грант применяет только тот вызов, который перевёл платёж в PAID.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/maksimkurganov/vpn-backoffice/internal/config"
	"github.com/maksimkurganov/vpn-backoffice/internal/errs"
	"github.com/maksimkurganov/vpn-backoffice/internal/lib/sl"
	"github.com/maksimkurganov/vpn-backoffice/internal/models"
)

// Repository определяет методы хранилища для расчёта платежей.
type Repository interface {
	GetPaymentByID(ctx context.Context, id string) (*models.Payment, error)
	GetClientByID(ctx context.Context, id int64) (*models.Client, error)
	GetTariffByID(ctx context.Context, id int64) (*models.Tariff, error)
	MarkPaid(ctx context.Context, id string) (bool, error)
	MarkPaidWithBalanceDebit(ctx context.Context, id string, clientID int64, amount decimal.Decimal) (bool, error)
	MarkPaidWithTopUp(ctx context.Context, id string, clientID int64, amount decimal.Decimal) (bool, error)
	MarkFailed(ctx context.Context, id string) (bool, error)
	MarkTrialUsed(ctx context.Context, clientID int64) error
}

// Applier применяет грант на внешней панели.
type Applier interface {
	Apply(ctx context.Context, client *models.Client, grant models.Grant) (*models.RemoteSubscriber, error)
}

// Distributor начисляет реферальные вознаграждения по оплаченному платежу.
type Distributor interface {
	Distribute(ctx context.Context, paymentID string) (*models.CreditResult, error)
}

// Notifier публикует событие об итоге расчёта, best-effort.
type Notifier interface {
	NotifySettlement(ctx context.Context, event models.SettlementEvent)
}

// Result — итог расчёта платежа.
type Result struct {
	Payment *models.Payment
	Applied bool // Грант применён на панели этим вызовом
	Flipped bool // Переход PENDING -> PAID выполнен этим вызовом
}

// Coordinator выполняет расчёт платежей и выдачу пробного доступа.
type Coordinator struct {
	repo        Repository
	applier     Applier
	distributor Distributor
	notifier    Notifier
	trial       config.Trial
	log         *slog.Logger
}

// New создает новый экземпляр Coordinator.
func New(repo Repository, applier Applier, distributor Distributor, notifier Notifier,
	trial config.Trial, log *slog.Logger) *Coordinator {
	return &Coordinator{
		repo:        repo,
		applier:     applier,
		distributor: distributor,
		notifier:    notifier,
		trial:       trial,
		log:         log,
	}
}

// Settle рассчитывает платёж по подтверждению оплаты (вебхук шлюза,
// ручная отметка оператора или оплата с баланса). Повторный вызов по
// уже рассчитанному платежу безопасен: статус не меняется, грант
// не применяется повторно.
//
// Порядок фиксирован: сначала переход в PAID (для оплаты с баланса —
// вместе со списанием одной транзакцией), затем применение гранта.
// Отказ панели после перехода оставляет платёж в PAID без гранта;
// расхождение устраняет ReapplyEntitlement.
func (c *Coordinator) Settle(ctx context.Context, paymentID string) (*Result, error) {
	const op = "settlement.Settle"

	payment, err := c.repo.GetPaymentByID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if payment.Status == models.PaymentStatusFailed {
		return nil, fmt.Errorf("%s: payment already failed: %w", op, errs.ErrConflict)
	}

	flipped, err := c.flip(ctx, payment)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !flipped && payment.Status == models.PaymentStatusPending {
		// Переход выполнил конкурентный расчёт: перечитываем статус,
		// чтобы не вернуть устаревший PENDING.
		payment, err = c.repo.GetPaymentByID(ctx, paymentID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	if flipped {
		payment.Status = models.PaymentStatusPaid
	}

	result := &Result{Payment: payment, Flipped: flipped}
	if !flipped {
		return result, nil
	}

	client, err := c.repo.GetClientByID(ctx, payment.ClientID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if payment.IsEntitlement() {
		if err := c.apply(ctx, client, payment); err != nil {
			// Платёж остаётся PAID: оплата принята, грант довыдаст
			// повторное применение.
			c.log.Error("entitlement apply failed after settlement",
				slog.String("payment_id", payment.ID), sl.Err(err))
			c.notify(ctx, client, payment, false)
			return result, fmt.Errorf("%s: %w", op, err)
		}
		result.Applied = true
	}

	if _, err := c.distributor.Distribute(ctx, payment.ID); err != nil {
		// Начисления не блокируют расчёт, будут повторены отдельно.
		c.log.Error("referral distribution failed",
			slog.String("payment_id", payment.ID), sl.Err(err))
	}
	c.notify(ctx, client, payment, result.Applied)
	return result, nil
}

// flip выполняет переход PENDING -> PAID сообразно способу оплаты.
func (c *Coordinator) flip(ctx context.Context, p *models.Payment) (bool, error) {
	switch {
	case p.FromBalance:
		return c.repo.MarkPaidWithBalanceDebit(ctx, p.ID, p.ClientID, p.Amount)
	case p.Purpose == models.PurposeTopUp:
		return c.repo.MarkPaidWithTopUp(ctx, p.ID, p.ClientID, p.Amount)
	default:
		return c.repo.MarkPaid(ctx, p.ID)
	}
}

// apply применяет грант оплаченного тарифа на панели.
func (c *Coordinator) apply(ctx context.Context, client *models.Client, p *models.Payment) error {
	if p.TariffID == nil {
		return fmt.Errorf("payment %s has no tariff: %w", p.ID, errs.ErrValidation)
	}
	tariff, err := c.repo.GetTariffByID(ctx, *p.TariffID)
	if err != nil {
		return err
	}
	_, err = c.applier.Apply(ctx, client, models.GrantFromTariff(tariff))
	return err
}

// ReapplyEntitlement повторно применяет грант по платежу в статусе PAID.
// Применение идемпотентно на уровне панели: полный пересчёт срока от
// текущего состояния не выполняется, срок продлевается от большего из
// текущего expireAt и настоящего момента, поэтому операция предназначена
// для платежей, чей грант не был применён.
func (c *Coordinator) ReapplyEntitlement(ctx context.Context, paymentID string) error {
	const op = "settlement.ReapplyEntitlement"

	payment, err := c.repo.GetPaymentByID(ctx, paymentID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if payment.Status != models.PaymentStatusPaid {
		return fmt.Errorf("%s: payment is not paid: %w", op, errs.ErrConflict)
	}
	if !payment.IsEntitlement() {
		return fmt.Errorf("%s: top-up carries no entitlement: %w", op, errs.ErrValidation)
	}

	client, err := c.repo.GetClientByID(ctx, payment.ClientID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := c.apply(ctx, client, payment); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	c.notify(ctx, client, payment, true)
	return nil
}

// Fail переводит платёж PENDING -> FAILED по отказу шлюза.
// Платёж вне PENDING не меняется.
func (c *Coordinator) Fail(ctx context.Context, paymentID string) (bool, error) {
	const op = "settlement.Fail"

	flipped, err := c.repo.MarkFailed(ctx, paymentID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if flipped {
		c.log.Info("payment failed", slog.String("payment_id", paymentID))
	}
	return flipped, nil
}

// ActivateTrial выдает клиенту пробный доступ. Флаг trial_used ставится
// условным UPDATE только после успешной записи на панели: отказ панели
// не сжигает попытку. Повторная активация возвращает ErrConflict.
func (c *Coordinator) ActivateTrial(ctx context.Context, clientID int64) (*models.RemoteSubscriber, error) {
	const op = "settlement.ActivateTrial"

	client, err := c.repo.GetClientByID(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if client.TrialUsed {
		return nil, fmt.Errorf("%s: trial already used: %w", op, errs.ErrConflict)
	}

	grant := models.Grant{
		DurationDays:      c.trial.TrialDurationDays,
		TrafficLimitBytes: c.trial.TrialTrafficBytes,
		TrafficStrategy:   c.trial.TrialStrategy,
		DeviceLimit:       c.trial.TrialDeviceLimit,
		SquadUUID:         c.trial.TrialSquadUUID,
	}
	sub, err := c.applier.Apply(ctx, client, grant)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := c.repo.MarkTrialUsed(ctx, clientID); err != nil {
		if errors.Is(err, errs.ErrConflict) {
			// Конкурентная активация успела первой: повторная удалённая
			// запись продлила срок, но флаг уже стоит.
			return nil, fmt.Errorf("%s: %w", op, errs.ErrConflict)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c.log.Info("trial activated", slog.Int64("client_id", clientID))
	return sub, nil
}

// notify публикует событие расчёта, ошибки публикации не влияют на итог.
func (c *Coordinator) notify(ctx context.Context, client *models.Client, p *models.Payment, applied bool) {
	c.notifier.NotifySettlement(ctx, models.SettlementEvent{
		PaymentID:  p.ID,
		ClientID:   client.ID,
		TelegramID: client.TelegramID,
		Purpose:    string(p.Purpose),
		Amount:     p.Amount.StringFixed(2),
		Applied:    applied,
	})
}
