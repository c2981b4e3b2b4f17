package rabbitmq

import (
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"
)

// Exchange — имя exchange нотификаций бэк-офиса.
const Exchange = "notifications"

// Ключи маршрутизации очередей нотификаций.
const (
	RoutingSettlement = "settlement"
	RoutingBroadcast  = "broadcast"
)

// QueueConfig связывает очередь с ключом маршрутизации.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// NotificationQueues возвращает очереди, потребляемые отправителем.
func NotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "notification.settlement", RoutingKey: RoutingSettlement},
		{QueueName: "notification.broadcast", RoutingKey: RoutingBroadcast},
	}
}

// PublishMessage публикует сообщение в RabbitMQ.
func PublishMessage(ch *amqp.Channel, exchange string, routingkey string, message any) error {
	const op = "rabbitmq.PublishMessage"
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = ch.Publish(
		exchange,
		routingkey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
