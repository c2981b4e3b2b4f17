// Package notify публикует события бэк-офиса в очередь нотификаций.
package notify

import (
	"context"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/maksimkurganov/vpn-backoffice/internal/lib/rabbitmq"
	"github.com/maksimkurganov/vpn-backoffice/internal/lib/sl"
	"github.com/maksimkurganov/vpn-backoffice/internal/models"
)

// Notifier публикует события в exchange нотификаций.
// Публикация best-effort: ошибки логируются и не возвращаются вызывающему,
// расчёт платежа не зависит от доступности брокера.
type Notifier struct {
	ch  *amqp.Channel
	log *slog.Logger
}

// New создает новый экземпляр Notifier.
func New(ch *amqp.Channel, log *slog.Logger) *Notifier {
	return &Notifier{ch: ch, log: log}
}

// NotifySettlement публикует событие об итоге расчёта платежа.
func (n *Notifier) NotifySettlement(_ context.Context, event models.SettlementEvent) {
	if err := rabbitmq.PublishMessage(n.ch, rabbitmq.Exchange, rabbitmq.RoutingSettlement, event); err != nil {
		n.log.Error("failed to publish settlement event",
			slog.String("payment_id", event.PaymentID), sl.Err(err))
	}
}

// PublishBroadcast публикует сообщение авторассылки. В отличие от событий
// расчёта ошибка возвращается: движок учитывает потерю в итогах прогона.
func (n *Notifier) PublishBroadcast(_ context.Context, msg models.BroadcastMessage) error {
	return rabbitmq.PublishMessage(n.ch, rabbitmq.Exchange, rabbitmq.RoutingBroadcast, msg)
}
