// Package promo реализует контроль допуска и погашение промокодов
// и промо-групп. Проверки сервиса — предварительные: последним словом
// в гонке остаются ограничения базы (уникальная пара и счёт строк под
// блокировкой строки промокода).
package promo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maksimkurganov/vpn-backoffice/internal/errs"
	"github.com/maksimkurganov/vpn-backoffice/internal/models"
)

// Repository определяет методы хранилища для промо-журналов.
type Repository interface {
	GetClientByID(ctx context.Context, id int64) (*models.Client, error)
	GetPromoGroupByCode(ctx context.Context, code string) (*models.PromoGroup, error)
	GetPromoCodeByCode(ctx context.Context, code string) (*models.PromoCode, error)
	CountGroupActivations(ctx context.Context, groupID int64) (int, error)
	HasGroupActivation(ctx context.Context, groupID, clientID int64) (bool, error)
	CountCodeUsages(ctx context.Context, codeID, clientID int64) (total int, byClient int, err error)
	InsertGroupActivation(ctx context.Context, groupID, clientID int64) error
	InsertCodeUsage(ctx context.Context, codeID, clientID int64) error
}

// Applier применяет грант бесплатных дней на панели.
type Applier interface {
	Apply(ctx context.Context, client *models.Client, grant models.Grant) (*models.RemoteSubscriber, error)
}

// Service выполняет проверку и погашение промо.
type Service struct {
	repo    Repository
	applier Applier
	log     *slog.Logger
	now     func() time.Time
}

// New создает новый экземпляр Service.
func New(repo Repository, applier Applier, log *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		applier: applier,
		log:     log,
		now:     time.Now,
	}
}

// ValidateCode проверяет промокод для клиента: существование и активность,
// срок действия, общий лимит (0 = без лимита), лимит на клиента.
// Прохождение проверки не резервирует использование — итог решает
// запись строки журнала.
func (s *Service) ValidateCode(ctx context.Context, code string, clientID int64) (*models.PromoCode, error) {
	const op = "promo.ValidateCode"

	promoCode, err := s.repo.GetPromoCodeByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !promoCode.Active {
		return nil, fmt.Errorf("%s: %w", op, errs.ErrNotFound)
	}
	if promoCode.ExpiresAt != nil && promoCode.ExpiresAt.Before(s.now()) {
		return nil, fmt.Errorf("%s: code expired: %w", op, errs.ErrConflict)
	}

	total, byClient, err := s.repo.CountCodeUsages(ctx, promoCode.ID, clientID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if promoCode.MaxUses > 0 && total >= promoCode.MaxUses {
		return nil, fmt.Errorf("%s: code exhausted: %w", op, errs.ErrConflict)
	}
	if promoCode.MaxUsesPerClient > 0 && byClient >= promoCode.MaxUsesPerClient {
		return nil, fmt.Errorf("%s: client limit reached: %w", op, errs.ErrConflict)
	}
	return promoCode, nil
}

// ValidateGroup проверяет промо-группу для клиента: существование
// и активность, общий лимит активаций, одноразовость на клиента.
func (s *Service) ValidateGroup(ctx context.Context, code string, clientID int64) (*models.PromoGroup, error) {
	const op = "promo.ValidateGroup"

	group, err := s.repo.GetPromoGroupByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !group.Active {
		return nil, fmt.Errorf("%s: %w", op, errs.ErrNotFound)
	}
	if group.MaxActivations > 0 {
		used, err := s.repo.CountGroupActivations(ctx, group.ID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if used >= group.MaxActivations {
			return nil, fmt.Errorf("%s: group exhausted: %w", op, errs.ErrConflict)
		}
	}

	// Повторная активация отклоняется до гранта на панели, иначе каждый
	// повтор продлевал бы доступ на FreeDays при отклонённой локально
	// операции. Уникальная пара в базе остаётся арбитром гонки.
	activated, err := s.repo.HasGroupActivation(ctx, group.ID, clientID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if activated {
		return nil, fmt.Errorf("%s: already activated: %w", op, errs.ErrConflict)
	}
	return group, nil
}

// RedeemCode погашает промокод типа free_days: проверка, применение
// гранта на панели, затем строка журнала. Строка пишется только после
// успешной удалённой записи; проигравший гонку получает ErrConflict.
// Промокоды типа discount журналируются без обращения к панели —
// скидку применяет чекаут.
func (s *Service) RedeemCode(ctx context.Context, code string, clientID int64, grant models.Grant) (*models.PromoCode, error) {
	const op = "promo.RedeemCode"

	promoCode, err := s.ValidateCode(ctx, code, clientID)
	if err != nil {
		return nil, err
	}

	if promoCode.Type == models.PromoCodeFreeDays {
		client, err := s.repo.GetClientByID(ctx, clientID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		grant.DurationDays = promoCode.FreeDays
		if _, err := s.applier.Apply(ctx, client, grant); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := s.repo.InsertCodeUsage(ctx, promoCode.ID, clientID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("promo code redeemed",
		slog.String("code", promoCode.Code), slog.Int64("client_id", clientID))
	return promoCode, nil
}

// ActivateGroup активирует промо-группу: проверка, грант на панели,
// затем строка активации под уникальной парой (группа, клиент).
func (s *Service) ActivateGroup(ctx context.Context, code string, clientID int64) (*models.PromoGroup, error) {
	const op = "promo.ActivateGroup"

	group, err := s.ValidateGroup(ctx, code, clientID)
	if err != nil {
		return nil, err
	}

	client, err := s.repo.GetClientByID(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	grant := models.Grant{
		DurationDays: group.FreeDays,
		SquadUUID:    group.SquadUUID,
	}
	if _, err := s.applier.Apply(ctx, client, grant); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.repo.InsertGroupActivation(ctx, group.ID, clientID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("promo group activated",
		slog.String("code", group.Code), slog.Int64("client_id", clientID))
	return group, nil
}
