package models

import "time"

// PromoGroup — промо-группа с одноразовой активацией на клиента.
// MaxActivations = 0 означает отсутствие общего лимита.
// Инвариант "не более одной активации на (группа, клиент)" обеспечивается
// уникальным ограничением в базе, а не предварительным чтением.
type PromoGroup struct {
	ID             int64
	Code           string // Уникальный код группы
	MaxActivations int    // 0 = без лимита
	FreeDays       int    // Сколько дней доступа выдаёт активация
	SquadUUID      string // Сквад, выдаваемый активацией
	Active         bool
	CreatedAt      time.Time
}

// PromoActivation — строка журнала активации группы, append-only.
type PromoActivation struct {
	ID          int64
	GroupID     int64
	ClientID    int64
	ActivatedAt time.Time
}

// PromoCodeType — тип промокода.
type PromoCodeType string

const (
	PromoCodeDiscount PromoCodeType = "discount"
	PromoCodeFreeDays PromoCodeType = "free_days"
)

// PromoCode — промокод со счётными лимитами использования.
type PromoCode struct {
	ID               int64
	Code             string        // Уникальный код
	Type             PromoCodeType // Скидка или бесплатные дни
	DiscountPercent  int           // Для типа discount
	FreeDays         int           // Для типа free_days
	MaxUses          int           // Общий лимит, 0 = без лимита
	MaxUsesPerClient int           // Лимит на клиента, 0 = без лимита
	ExpiresAt        *time.Time    // nil = бессрочный
	Active           bool
	CreatedAt        time.Time
}

// PromoCodeUsage — строка журнала использования промокода, append-only.
type PromoCodeUsage struct {
	ID       int64
	CodeID   int64
	ClientID int64
	UsedAt   time.Time
}
