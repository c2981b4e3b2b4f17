package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus описывает состояние платежа.
// Допустимые переходы: PENDING -> PAID и PENDING -> FAILED, далее состояние
// терминально. Переходы выполняются условными UPDATE в хранилище.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// PaymentPurpose — назначение платежа, ровно одно на платёж.
type PaymentPurpose string

const (
	PurposeTariff      PaymentPurpose = "tariff"
	PurposeProxyTariff PaymentPurpose = "proxy_tariff"
	PurposeExtraOption PaymentPurpose = "extra_option"
	PurposeTopUp       PaymentPurpose = "top_up"
)

// Payment представляет платёж клиента.
// PaidAt устанавливается только при переходе в PAID.
// FromBalance означает оплату с внутреннего баланса: списание и переход
// в PAID выполняются одной транзакцией.
type Payment struct {
	ID          string          // UUID платежа
	ClientID    int64           // Владелец платежа
	Amount      decimal.Decimal // Сумма платежа
	Currency    string          // Валюта, например "RUB"
	Status      PaymentStatus   // Текущий статус
	Purpose     PaymentPurpose  // Назначение платежа
	TariffID    *int64          // Оплачиваемый тариф, nil для пополнения баланса
	Gateway     string          // Имя платёжного шлюза, "balance" для оплаты с баланса
	ExternalID  *string         // Идентификатор транзакции на стороне шлюза
	FromBalance bool            // Оплата с внутреннего баланса
	CreatedAt   time.Time
	PaidAt      *time.Time
}

// IsEntitlement сообщает, требует ли платёж применения гранта на панели.
// Пополнение баланса грант не создаёт.
func (p *Payment) IsEntitlement() bool {
	return p.Purpose != PurposeTopUp
}
