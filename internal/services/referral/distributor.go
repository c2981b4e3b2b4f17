// Package referral реализует раздачу реферальных наград по оплаченному
// платежу: до трёх уровней вверх по цепочке рефереров, ровно один раз
// на платёж. Журнал referral_credits — арбитр идемпотентности.
package referral

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/maksimkurganov/vpn-backoffice/internal/errs"
	"github.com/maksimkurganov/vpn-backoffice/internal/models"
)

// Repository определяет методы хранилища для раздачи наград.
type Repository interface {
	GetPaymentByID(ctx context.Context, id string) (*models.Payment, error)
	GetClientByID(ctx context.Context, id int64) (*models.Client, error)
	ListCreditsByPayment(ctx context.Context, paymentID string) ([]*models.ReferralCredit, error)
	CreditReferral(ctx context.Context, credit *models.ReferralCredit) error
}

// Percents — системные проценты трёх уровней.
type Percents struct {
	Level1 int
	Level2 int
	Level3 int
}

func (p Percents) level(n int) int {
	switch n {
	case 1:
		return p.Level1
	case 2:
		return p.Level2
	default:
		return p.Level3
	}
}

// Distributor раздаёт награды по платежу.
type Distributor struct {
	repo     Repository
	percents Percents
	log      *slog.Logger
}

// NewDistributor создает новый экземпляр Distributor.
func NewDistributor(repo Repository, percents Percents, log *slog.Logger) *Distributor {
	return &Distributor{
		repo:     repo,
		percents: percents,
		log:      log,
	}
}

// Distribute раздаёт награды по оплаченному платежу, идемпотентно.
// Существующие строки журнала возвращаются без повторного начисления —
// сумма платежа при повторе не перепроверяется, наличие строк считается
// достаточным. Цепочка обрывается на первом клиенте без реферера.
// Пополнение баланса, оплаченное с баланса, наград не порождает.
func (d *Distributor) Distribute(ctx context.Context, paymentID string) (*models.CreditResult, error) {
	const op = "referral.Distribute"

	payment, err := d.repo.GetPaymentByID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if payment.Status != models.PaymentStatusPaid {
		return nil, fmt.Errorf("%s: payment %s is not paid: %w", op, paymentID, errs.ErrValidation)
	}
	if payment.Purpose == models.PurposeTopUp && payment.FromBalance {
		return &models.CreditResult{}, nil
	}

	existing, err := d.repo.ListCreditsByPayment(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(existing) > 0 {
		return &models.CreditResult{Credits: existing, AlreadyDistributed: true}, nil
	}

	payer, err := d.repo.GetClientByID(ctx, payment.ClientID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var credits []*models.ReferralCredit
	current := payer
	for level := 1; level <= 3; level++ {
		if current.ReferrerID == nil {
			break
		}
		referrer, err := d.repo.GetClientByID(ctx, *current.ReferrerID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		percent := d.percents.level(level)
		if level == 1 && payer.ReferralPercent != nil {
			percent = *payer.ReferralPercent
		}

		credit := &models.ReferralCredit{
			ReferrerID:      referrer.ID,
			ClientID:        payer.ID,
			Level:           level,
			Percent:         percent,
			Amount:          levelAmount(payment.Amount, percent),
			SourcePaymentID: paymentID,
		}
		if err := d.repo.CreditReferral(ctx, credit); err != nil {
			// Конкурентная раздача успела раньше: журнал уже заполнен.
			if errors.Is(err, errs.ErrConflict) {
				rows, listErr := d.repo.ListCreditsByPayment(ctx, paymentID)
				if listErr != nil {
					return nil, fmt.Errorf("%s: %w", op, listErr)
				}
				return &models.CreditResult{Credits: rows, AlreadyDistributed: true}, nil
			}
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		d.log.Info("referral credited",
			slog.Int64("referrer_id", referrer.ID),
			slog.Int("level", level),
			slog.String("amount", credit.Amount.String()))
		credits = append(credits, credit)
		current = referrer
	}

	if len(credits) == 0 {
		d.log.Debug("no referrers in chain", slog.Int64("client_id", payer.ID))
	}
	return &models.CreditResult{Credits: credits}, nil
}

// levelAmount считает сумму награды уровня: amount * percent / 100.
func levelAmount(amount decimal.Decimal, percent int) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(int64(percent))).Div(decimal.NewFromInt(100)).Round(2)
}
