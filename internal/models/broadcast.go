package models

import "time"

// BroadcastTrigger — предикат жизненного цикла клиента,
// вычисляемый на момент "сейчас минус delay_days".
type BroadcastTrigger string

const (
	TriggerAfterRegistration   BroadcastTrigger = "after_registration"
	TriggerInactivity          BroadcastTrigger = "inactivity"
	TriggerNoPayment           BroadcastTrigger = "no_payment"
	TriggerTrialNotConnected   BroadcastTrigger = "trial_not_connected"
	TriggerTrialUsedNeverPaid  BroadcastTrigger = "trial_used_never_paid"
	TriggerNoTraffic           BroadcastTrigger = "no_traffic"
	TriggerSubscriptionExpired BroadcastTrigger = "subscription_expired"
)

// BroadcastRule — правило авторассылки.
type BroadcastRule struct {
	ID        int64
	Name      string
	Trigger   BroadcastTrigger
	DelayDays int
	Channel   string // Канал доставки, например "telegram"
	Message   string // Текст сообщения
	Enabled   bool
	CreatedAt time.Time
}

// BroadcastLog — отметка об отправке, уникальна по (rule_id, client_id).
// Наличие строки — гарантия "не более одной отправки" на пару.
type BroadcastLog struct {
	ID       int64
	RuleID   int64
	ClientID int64
	SentAt   time.Time
}

// BroadcastMessage — сообщение, публикуемое движком рассылок в очередь.
type BroadcastMessage struct {
	RuleID     int64  `json:"rule_id"`
	ClientID   int64  `json:"client_id"`
	TelegramID int64  `json:"telegram_id"`
	Channel    string `json:"channel"`
	Text       string `json:"text"`
}
