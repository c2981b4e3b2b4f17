package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReferralCredit — строка реферального журнала, append-only:
// никогда не изменяется и не удаляется. Пара (source_payment_id, level)
// уникальна — это и есть гарантия "ровно один раз" при раздаче наград.
type ReferralCredit struct {
	ID              int64
	ReferrerID      int64           // Кому начислено
	ClientID        int64           // Кто оплатил
	Level           int             // Уровень цепочки: 1, 2 или 3
	Percent         int             // Применённый процент
	Amount          decimal.Decimal // Начисленная сумма
	SourcePaymentID string          // Платёж-источник
	CreatedAt       time.Time
}

// CreditResult — итог раздачи наград по одному платежу.
// AlreadyDistributed выставляется, когда строки журнала уже существовали
// и повторного начисления не было.
type CreditResult struct {
	Credits            []*ReferralCredit
	AlreadyDistributed bool
}
