package entitlement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maksimkurganov/vpn-backoffice/internal/models"
)

// Applier применяет вычисленный грант на панели.
// Запись идёт полным замещением состояния подписчика, поэтому повтор
// применения того же гранта безопасен (at-least-once).
type Applier struct {
	resolver *Resolver
	panel    PanelClient
	log      *slog.Logger
	now      func() time.Time
}

// NewApplier создает новый экземпляр Applier.
func NewApplier(resolver *Resolver, panelClient PanelClient, log *slog.Logger) *Applier {
	return &Applier{
		resolver: resolver,
		panel:    panelClient,
		log:      log,
		now:      time.Now,
	}
}

// Apply разрешает учётку, вычисляет грант относительно текущего
// удалённого состояния и записывает его на панель. Возвращает итоговое
// состояние подписчика. Локальные флаги, зависящие от гранта
// (trial_used, строки промо-журналов), вызывающая сторона пишет только
// после успешного возврата отсюда.
func (a *Applier) Apply(ctx context.Context, client *models.Client, grant models.Grant) (*models.RemoteSubscriber, error) {
	const op = "entitlement.Apply"

	subscriberUUID, err := a.resolver.Resolve(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	current, err := a.panel.GetSubscriberByUUID(ctx, subscriberUUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	update := BuildUpdate(current, grant, a.now())
	updated, err := a.panel.UpdateSubscriber(ctx, update)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a.log.Info("entitlement applied",
		slog.String("subscriber", subscriberUUID),
		slog.Time("expire_at", update.ExpireAt),
		slog.Int("squads", len(update.ActiveInternalSquads)))
	return updated, nil
}
