package models

import "time"

// RemoteSubscriber — нормализованное состояние подписчика на внешней панели.
// Единственная типизированная форма, в которую адаптер панели приводит
// все варианты ответов; потребители не разбирают сырой JSON.
type RemoteSubscriber struct {
	UUID              string
	Username          string
	TelegramID        int64
	Email             string
	ExpireAt          time.Time
	TrafficLimitBytes int64
	TrafficStrategy   string
	HWIDDeviceLimit   int
	ActiveSquadUUIDs  []string
	Status            string     // ACTIVE / DISABLED / EXPIRED
	UsedTrafficBytes  int64
	OnlineAt          *time.Time // nil — подписчик ни разу не подключался
}

// SettlementEvent — уведомление об итоге расчёта платежа,
// публикуется в очередь нотификаций по принципу best-effort.
type SettlementEvent struct {
	PaymentID  string `json:"payment_id"`
	ClientID   int64  `json:"client_id"`
	TelegramID int64  `json:"telegram_id"`
	Purpose    string `json:"purpose"`
	Amount     string `json:"amount"`
	Applied    bool   `json:"applied"` // Грант применён на панели
}
