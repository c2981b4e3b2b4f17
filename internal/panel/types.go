// Package panel реализует клиента внешней VPN-панели.
// Все варианты ответов панели ("response"/"data"/корневой объект,
// одиночный подписчик или список) приводятся к одной типизированной
// форме models.RemoteSubscriber — потребители сырой JSON не разбирают.
package panel

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/maksimkurganov/vpn-backoffice/internal/models"
)

// envelope покрывает все формы конверта, которые отдаёт панель.
type envelope struct {
	Response json.RawMessage `json:"response"`
	Data     json.RawMessage `json:"data"`
}

// squadRef — членство в скваде: панель отдаёт либо строку-uuid,
// либо объект со вложенным uuid.
type squadRef struct {
	UUID string `json:"uuid"`
}

func (s *squadRef) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &s.UUID)
	}
	type alias squadRef
	return json.Unmarshal(b, (*alias)(s))
}

// subscriberPayload — сырое представление подписчика в ответе панели.
type subscriberPayload struct {
	UUID                 string     `json:"uuid"`
	Username             string     `json:"username"`
	TelegramID           int64      `json:"telegramId"`
	Email                string     `json:"email"`
	ExpireAt             time.Time  `json:"expireAt"`
	TrafficLimitBytes    int64      `json:"trafficLimitBytes"`
	TrafficLimitStrategy string     `json:"trafficLimitStrategy"`
	HWIDDeviceLimit      int        `json:"hwidDeviceLimit"`
	ActiveInternalSquads []squadRef `json:"activeInternalSquads"`
	Status               string     `json:"status"`
	UsedTrafficBytes     int64      `json:"usedTrafficBytes"`
	OnlineAt             *time.Time `json:"onlineAt"`
}

func (p *subscriberPayload) toModel() *models.RemoteSubscriber {
	squads := make([]string, 0, len(p.ActiveInternalSquads))
	for _, s := range p.ActiveInternalSquads {
		squads = append(squads, s.UUID)
	}
	return &models.RemoteSubscriber{
		UUID:              p.UUID,
		Username:          p.Username,
		TelegramID:        p.TelegramID,
		Email:             p.Email,
		ExpireAt:          p.ExpireAt,
		TrafficLimitBytes: p.TrafficLimitBytes,
		TrafficStrategy:   p.TrafficLimitStrategy,
		HWIDDeviceLimit:   p.HWIDDeviceLimit,
		ActiveSquadUUIDs:  squads,
		Status:            p.Status,
		UsedTrafficBytes:  p.UsedTrafficBytes,
		OnlineAt:          p.OnlineAt,
	}
}

// unwrap достаёт полезную нагрузку из любого варианта конверта.
func unwrap(body []byte) (json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("unwrap: %w", err)
	}
	if len(env.Response) > 0 {
		// Встречается двойная обёртка {"response":{"data":{...}}}.
		var inner envelope
		if err := json.Unmarshal(env.Response, &inner); err == nil && len(inner.Data) > 0 {
			return inner.Data, nil
		}
		return env.Response, nil
	}
	if len(env.Data) > 0 {
		return env.Data, nil
	}
	return body, nil
}

// decodeSubscriber нормализует ответ панели с одним подписчиком.
func decodeSubscriber(body []byte) (*models.RemoteSubscriber, error) {
	raw, err := unwrap(body)
	if err != nil {
		return nil, err
	}
	var p subscriberPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode subscriber: %w", err)
	}
	return p.toModel(), nil
}

// decodeSubscriberList нормализует ответ-список; пустой список — не ошибка.
func decodeSubscriberList(body []byte) ([]*models.RemoteSubscriber, error) {
	raw, err := unwrap(body)
	if err != nil {
		return nil, err
	}
	var list []subscriberPayload
	if err := json.Unmarshal(raw, &list); err != nil {
		// Некоторые точки поиска отдают одиночный объект вместо списка.
		var p subscriberPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode subscriber list: %w", err)
		}
		list = []subscriberPayload{p}
	}
	result := make([]*models.RemoteSubscriber, 0, len(list))
	for i := range list {
		result = append(result, list[i].toModel())
	}
	return result, nil
}

// UpdateSubscriberRequest — запрос полного замещения состояния подписчика.
// Панель трактует его как "установить абсолютное состояние", поэтому
// повтор того же запроса безопасен.
type UpdateSubscriberRequest struct {
	UUID                 string    `json:"uuid"`
	ExpireAt             time.Time `json:"expireAt"`
	TrafficLimitBytes    int64     `json:"trafficLimitBytes"`
	TrafficLimitStrategy string    `json:"trafficLimitStrategy"`
	HWIDDeviceLimit      int       `json:"hwidDeviceLimit"`
	ActiveInternalSquads []string  `json:"activeInternalSquads"`
}

// CreateSubscriberRequest — запрос создания подписчика с нулевым доступом.
type CreateSubscriberRequest struct {
	Username             string    `json:"username"`
	TelegramID           int64     `json:"telegramId,omitempty"`
	Email                string    `json:"email,omitempty"`
	ExpireAt             time.Time `json:"expireAt"`
	TrafficLimitBytes    int64     `json:"trafficLimitBytes"`
	ActiveInternalSquads []string  `json:"activeInternalSquads"`
}
