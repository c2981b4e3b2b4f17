// Package models содержит доменные структуры движка активации:
// клиентов, платежи, тарифы, промо-сущности, реферальные начисления
// и правила авторассылок.
package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Client представляет клиента сервиса.
// Balance всегда неотрицателен (контролируется CHECK-ограничением в базе).
// RemoteSubscriberID устанавливается не более одного раза — это uuid
// подписчика на внешней панели. ReferrerID неизменяем после создания.
type Client struct {
	ID                 int64           // Внутренний идентификатор
	TelegramID         int64           // Идентификатор в Telegram
	Username           string          // Имя пользователя
	Email              string          // Электронная почта (может быть пустой)
	Balance            decimal.Decimal // Баланс во внутренней валюте
	RemoteSubscriberID *string         // UUID подписчика на панели, nil пока не создан
	TrialUsed          bool            // Пробный период уже выдан (только false -> true)
	ReferrerID         *int64          // Кто привёл клиента, nil если пришёл сам
	ReferralPercent    *int            // Персональный процент 1-го уровня, nil = системный
	CreatedAt          time.Time
}

// PanelUsername возвращает производное имя пользователя для панели.
// Используется резолвером как последний вариант поиска и при создании.
func (c *Client) PanelUsername() string {
	if c.Username != "" {
		return c.Username
	}
	return derivedPanelUsername(c.TelegramID)
}

func derivedPanelUsername(telegramID int64) string {
	return fmt.Sprintf("u%d", telegramID)
}

