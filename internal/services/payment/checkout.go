// Package payment создаёт платежи: чекаут через платёжный шлюз
// или с внутреннего баланса.
package payment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/maksimkurganov/vpn-backoffice/internal/errs"
	"github.com/maksimkurganov/vpn-backoffice/internal/gateway"
	"github.com/maksimkurganov/vpn-backoffice/internal/models"
)

// Repository определяет методы хранилища для чекаута.
type Repository interface {
	GetClientByID(ctx context.Context, id int64) (*models.Client, error)
	GetTariffByID(ctx context.Context, id int64) (*models.Tariff, error)
	CreatePayment(ctx context.Context, p *models.Payment) error
	ListPaymentsByClient(ctx context.Context, clientID int64, limit, offset int) ([]*models.Payment, error)
}

// PromoService проверяет и погашает скидочные промокоды.
type PromoService interface {
	ValidateCode(ctx context.Context, code string, clientID int64) (*models.PromoCode, error)
	RedeemCode(ctx context.Context, code string, clientID int64, grant models.Grant) (*models.PromoCode, error)
}

// CheckoutRequest — параметры создания платежа.
type CheckoutRequest struct {
	ClientID    int64
	TariffID    *int64          // nil для пополнения баланса
	Amount      decimal.Decimal // Используется только для пополнения
	Currency    string
	Gateway     string // Имя шлюза, игнорируется при FromBalance
	PromoCode   string // Промокод-скидка, пустая строка = без скидки
	FromBalance bool
}

// CheckoutResult — созданный платёж и ссылка на оплату.
// PaymentURL пуст при оплате с баланса.
type CheckoutResult struct {
	Payment    *models.Payment
	PaymentURL string
}

// Service создаёт PENDING-платежи.
type Service struct {
	repo      Repository
	gateways  *gateway.Registry
	promo     PromoService
	returnURL string
	log       *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo Repository, gateways *gateway.Registry, promo PromoService,
	returnURL string, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		gateways:  gateways,
		promo:     promo,
		returnURL: returnURL,
		log:       log,
	}
}

// Checkout создаёт платёж в статусе PENDING. Для оплаты через шлюз сначала
// создаётся транзакция на стороне шлюза, затем локальная строка платежа
// с её внешним идентификатором. Скидочный промокод уменьшает сумму и
// журналируется после создания платежа: скидка сгорает при создании,
// а не при оплате.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	const op = "payment.Checkout"

	if _, err := s.repo.GetClientByID(ctx, req.ClientID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	amount := req.Amount
	purpose := models.PurposeTopUp
	if req.TariffID != nil {
		tariff, err := s.repo.GetTariffByID(ctx, *req.TariffID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if !tariff.Active {
			return nil, fmt.Errorf("%s: tariff is inactive: %w", op, errs.ErrValidation)
		}
		amount = tariff.Price
		purpose = purposeForKind(tariff.Kind)
	} else if req.FromBalance {
		return nil, fmt.Errorf("%s: top-up from balance makes no sense: %w", op, errs.ErrValidation)
	}

	var discount *models.PromoCode
	if req.PromoCode != "" {
		code, err := s.promo.ValidateCode(ctx, req.PromoCode, req.ClientID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if code.Type != models.PromoCodeDiscount {
			return nil, fmt.Errorf("%s: promo code is not a discount: %w", op, errs.ErrValidation)
		}
		amount = applyDiscount(amount, code.DiscountPercent)
		discount = code
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%s: non-positive amount: %w", op, errs.ErrValidation)
	}

	p := &models.Payment{
		ID:          uuid.NewString(),
		ClientID:    req.ClientID,
		Amount:      amount,
		Currency:    req.Currency,
		Status:      models.PaymentStatusPending,
		Purpose:     purpose,
		TariffID:    req.TariffID,
		FromBalance: req.FromBalance,
	}

	result := &CheckoutResult{Payment: p}
	if req.FromBalance {
		p.Gateway = "balance"
	} else {
		gw, err := s.gateways.Get(req.Gateway)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %w", op, errs.ErrValidation, err)
		}
		p.Gateway = gw.Name()
		paymentURL, externalID, err := gw.CreateTransaction(ctx, amount, req.Currency, s.returnURL)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		p.ExternalID = &externalID
		result.PaymentURL = paymentURL
	}

	if err := s.repo.CreatePayment(ctx, p); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if discount != nil {
		if _, err := s.promo.RedeemCode(ctx, discount.Code, req.ClientID, models.Grant{}); err != nil {
			// Платёж уже создан со скидкой: проигранная гонка за последний
			// слот кода не отменяет чекаут.
			s.log.Warn("discount code usage not recorded",
				slog.String("payment_id", p.ID),
				slog.String("code", discount.Code))
		}
	}
	s.log.Info("payment created",
		slog.String("payment_id", p.ID),
		slog.Int64("client_id", p.ClientID),
		slog.String("gateway", p.Gateway),
		slog.String("amount", amount.StringFixed(2)))
	return result, nil
}

// ListByClient возвращает платежи клиента с пагинацией.
func (s *Service) ListByClient(ctx context.Context, clientID int64, limit, offset int) ([]*models.Payment, error) {
	const op = "payment.ListByClient"
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	payments, err := s.repo.ListPaymentsByClient(ctx, clientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return payments, nil
}

func purposeForKind(kind models.TariffKind) models.PaymentPurpose {
	switch kind {
	case models.TariffKindProxy:
		return models.PurposeProxyTariff
	case models.TariffKindExtra:
		return models.PurposeExtraOption
	default:
		return models.PurposeTariff
	}
}

func applyDiscount(amount decimal.Decimal, percent int) decimal.Decimal {
	if percent <= 0 || percent > 100 {
		return amount
	}
	factor := decimal.NewFromInt(int64(100 - percent)).Div(decimal.NewFromInt(100))
	return amount.Mul(factor).Round(2)
}
