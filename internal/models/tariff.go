package models

import "github.com/shopspring/decimal"

// TariffKind различает вид продаваемого доступа.
type TariffKind string

const (
	TariffKindVPN   TariffKind = "vpn"
	TariffKindProxy TariffKind = "proxy"
	TariffKindExtra TariffKind = "extra"
)

// Tariff — источник параметров гранта при покупке.
// TrafficLimitBytes хранится как int64 в байтах, чтобы избежать округления
// на больших объёмах.
type Tariff struct {
	ID                int64
	Name              string
	Kind              TariffKind
	Price             decimal.Decimal
	DurationDays      int    // Срок действия в днях
	TrafficLimitBytes int64  // 0 = безлимит
	TrafficStrategy   string // Стратегия сброса трафика, например "MONTH"
	DeviceLimit       int    // Лимит устройств (HWID)
	SquadUUID         string // Сквад, членство в котором выдаёт тариф
	Active            bool
}

// Grant — вычисленные параметры выдаваемого доступа.
// Лимиты при применении замещают текущие, сквад добавляется к уже выданным.
type Grant struct {
	DurationDays      int
	TrafficLimitBytes int64
	TrafficStrategy   string
	DeviceLimit       int
	SquadUUID         string
}

// GrantFromTariff строит грант из параметров тарифа.
func GrantFromTariff(t *Tariff) Grant {
	return Grant{
		DurationDays:      t.DurationDays,
		TrafficLimitBytes: t.TrafficLimitBytes,
		TrafficStrategy:   t.TrafficStrategy,
		DeviceLimit:       t.DeviceLimit,
		SquadUUID:         t.SquadUUID,
	}
}
