package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maksimkurganov/vpn-backoffice/internal/errs"
	"github.com/maksimkurganov/vpn-backoffice/internal/lib/sl"
	"github.com/maksimkurganov/vpn-backoffice/internal/models"
	"github.com/maksimkurganov/vpn-backoffice/internal/panel"
)

// PanelClient описывает операции панели, используемые движком грантов.
type PanelClient interface {
	GetSubscriberByUUID(ctx context.Context, uuid string) (*models.RemoteSubscriber, error)
	GetSubscriberByTelegramID(ctx context.Context, telegramID int64) (*models.RemoteSubscriber, error)
	GetSubscriberByEmail(ctx context.Context, email string) (*models.RemoteSubscriber, error)
	GetSubscriberByUsername(ctx context.Context, username string) (*models.RemoteSubscriber, error)
	CreateSubscriber(ctx context.Context, req panel.CreateSubscriberRequest) (*models.RemoteSubscriber, error)
	UpdateSubscriber(ctx context.Context, req panel.UpdateSubscriberRequest) (*models.RemoteSubscriber, error)
}

// ClientRepository — методы хранилища, нужные резолверу и применителю.
type ClientRepository interface {
	SetRemoteSubscriberID(ctx context.Context, clientID int64, subscriberUUID string) error
}

// Resolver находит или создаёт учётку подписчика на панели для клиента.
// Порядок поиска: сохранённый uuid -> telegram id -> email -> производное
// имя пользователя; если ничего не нашлось, создаётся подписчик с нулевым
// доступом. Вся троица ручных поисков живёт только здесь — пути trial,
// promo и оплаты пользуются одним резолвером.
type Resolver struct {
	panel PanelClient
	repo  ClientRepository
	log   *slog.Logger
}

// NewResolver создает новый экземпляр Resolver.
func NewResolver(panelClient PanelClient, repo ClientRepository, log *slog.Logger) *Resolver {
	return &Resolver{
		panel: panelClient,
		repo:  repo,
		log:   log,
	}
}

// Resolve возвращает uuid подписчика панели для клиента.
// Найденный или созданный uuid сохраняется локально (не более одного
// раза). При недоступности панели локальное состояние не меняется.
func (r *Resolver) Resolve(ctx context.Context, client *models.Client) (string, error) {
	const op = "entitlement.Resolve"

	if client.RemoteSubscriberID != nil && *client.RemoteSubscriberID != "" {
		return *client.RemoteSubscriberID, nil
	}

	sub, err := r.lookup(ctx, client)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if sub == nil {
		sub, err = r.create(ctx, client)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := r.repo.SetRemoteSubscriberID(ctx, client.ID, sub.UUID); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	client.RemoteSubscriberID = &sub.UUID
	return sub.UUID, nil
}

func (r *Resolver) lookup(ctx context.Context, client *models.Client) (*models.RemoteSubscriber, error) {
	sub, err := r.panel.GetSubscriberByTelegramID(ctx, client.TelegramID)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}

	if client.Email != "" {
		sub, err = r.panel.GetSubscriberByEmail(ctx, client.Email)
		if err == nil {
			return sub, nil
		}
		if !errors.Is(err, errs.ErrNotFound) {
			return nil, err
		}
	}

	sub, err = r.panel.GetSubscriberByUsername(ctx, client.PanelUsername())
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}
	return nil, errs.ErrNotFound
}

// create создаёт подписчика с нулевым доступом. Коллизия имени означает,
// что подписчик уже существует под производным именем: вместо ошибки
// выполняется повторный поиск по имени.
func (r *Resolver) create(ctx context.Context, client *models.Client) (*models.RemoteSubscriber, error) {
	sub, err := r.panel.CreateSubscriber(ctx, panel.CreateSubscriberRequest{
		Username:          client.PanelUsername(),
		TelegramID:        client.TelegramID,
		Email:             client.Email,
		ExpireAt:          time.Now(),
		TrafficLimitBytes: 0,
	})
	if err == nil {
		return sub, nil
	}
	if errors.Is(err, errs.ErrRemoteConflict) {
		r.log.Warn("username collision on create, falling back to lookup",
			slog.String("username", client.PanelUsername()))
		sub, err = r.panel.GetSubscriberByUsername(ctx, client.PanelUsername())
		if err != nil {
			r.log.Error("fallback lookup failed", sl.Err(err))
			return nil, err
		}
		return sub, nil
	}
	return nil, err
}
