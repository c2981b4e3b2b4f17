// Package gateway содержит клиентов платёжных шлюзов.
// Каждый шлюз умеет одно: создать транзакцию и вернуть ссылку на оплату.
// Подтверждение оплаты приходит отдельно и сводится координатором
// к единственному событию "платёж оплачен".
package gateway

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Gateway — контракт платёжного шлюза.
type Gateway interface {
	// Name возвращает имя шлюза для поля gateway платежа.
	Name() string
	// CreateTransaction создаёт транзакцию и возвращает ссылку на оплату
	// и внешний идентификатор транзакции.
	CreateTransaction(ctx context.Context, amount decimal.Decimal, currency, returnURL string) (paymentURL, externalID string, err error)
}

// Registry хранит шлюзы по имени.
type Registry struct {
	gateways map[string]Gateway
}

// NewRegistry собирает реестр из переданных шлюзов.
func NewRegistry(gateways ...Gateway) *Registry {
	m := make(map[string]Gateway, len(gateways))
	for _, g := range gateways {
		m[g.Name()] = g
	}
	return &Registry{gateways: m}
}

// Get возвращает шлюз по имени.
func (r *Registry) Get(name string) (Gateway, error) {
	g, ok := r.gateways[name]
	if !ok {
		return nil, fmt.Errorf("unknown gateway %q", name)
	}
	return g, nil
}
