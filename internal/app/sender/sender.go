// Package sender собирает процесс доставки уведомлений: потребители
// очередей и транспорт Telegram.
package sender

import (
	"context"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/maksimkurganov/vpn-backoffice/internal/config"
	"github.com/maksimkurganov/vpn-backoffice/internal/lib/rabbitmq"
	senderservice "github.com/maksimkurganov/vpn-backoffice/internal/services/sender"
)

type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.Service
	logger        *slog.Logger
}

// New создает новый экземпляр приложения отправителя.
func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.NotificationQueues())
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	transport := senderservice.NewTelegramTransport(cfg.BotToken)
	senderService := senderservice.New(transport, logger)

	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderService,
		logger:        logger,
	}, nil
}

// Run запускает потребителей очередей и ждёт отмены контекста.
func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumeMessages(ctx, a.ch, "notification.settlement", a.senderService.HandleSettlement)
	if err != nil {
		a.logger.Error("failed to start settlement consumer", slog.Any("err", err))
		return err
	}

	err = rabbitmq.ConsumeMessages(ctx, a.ch, "notification.broadcast", a.senderService.HandleBroadcast)
	if err != nil {
		a.logger.Error("failed to start broadcast consumer", slog.Any("err", err))
		return err
	}

	<-ctx.Done()
	a.logger.Info("sender service shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}
	return nil
}
