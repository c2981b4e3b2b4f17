// Package entitlement содержит вычисление и применение грантов доступа:
// чистый калькулятор параметров, резолвер внешней учётки и применитель,
// записывающий грант на панель полным замещением состояния.
package entitlement

import (
	"slices"
	"time"

	"github.com/maksimkurganov/vpn-backoffice/internal/models"
	"github.com/maksimkurganov/vpn-backoffice/internal/panel"
)

// NextExpireAt вычисляет новую дату окончания доступа:
// активный доступ продлевается от текущей даты окончания,
// истёкший или отсутствующий — отсчитывается от "сейчас".
func NextExpireAt(current *time.Time, durationDays int, now time.Time) time.Time {
	base := now
	if current != nil && current.After(now) {
		base = *current
	}
	return base.AddDate(0, 0, durationDays)
}

// MergeSquads объединяет текущие сквады с выдаваемым.
// Операция строго аддитивна: выдача пробного или промо-сквада
// никогда не отзывает ранее выданные (в том числе платные) сквады.
func MergeSquads(current []string, granted string) []string {
	if granted == "" {
		return slices.Clone(current)
	}
	if slices.Contains(current, granted) {
		return slices.Clone(current)
	}
	merged := make([]string, 0, len(current)+1)
	merged = append(merged, current...)
	merged = append(merged, granted)
	return merged
}

// BuildUpdate строит запрос полного замещения состояния подписчика
// по текущему удалённому состоянию и гранту. Лимиты трафика и устройств
// замещаются лимитами гранта (последняя выдача выигрывает),
// сквад добавляется к существующим. Грант без стратегии сброса
// сохраняет текущую стратегию подписчика: панель не принимает пустую.
func BuildUpdate(sub *models.RemoteSubscriber, grant models.Grant, now time.Time) panel.UpdateSubscriberRequest {
	var current *time.Time
	if !sub.ExpireAt.IsZero() {
		expireAt := sub.ExpireAt
		current = &expireAt
	}
	strategy := grant.TrafficStrategy
	if strategy == "" {
		strategy = sub.TrafficStrategy
	}
	return panel.UpdateSubscriberRequest{
		UUID:                 sub.UUID,
		ExpireAt:             NextExpireAt(current, grant.DurationDays, now),
		TrafficLimitBytes:    grant.TrafficLimitBytes,
		TrafficLimitStrategy: strategy,
		HWIDDeviceLimit:      grant.DeviceLimit,
		ActiveInternalSquads: MergeSquads(sub.ActiveSquadUUIDs, grant.SquadUUID),
	}
}
