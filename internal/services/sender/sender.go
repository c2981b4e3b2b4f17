// Package sender доставляет сообщения из очередей нотификаций клиентам.
package sender

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/maksimkurganov/vpn-backoffice/internal/lib/sl"
	"github.com/maksimkurganov/vpn-backoffice/internal/models"
)

// Transport отправляет текстовое сообщение получателю.
type Transport interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Service разбирает сообщения очередей и передаёт их транспорту.
type Service struct {
	transport Transport
	log       *slog.Logger
}

// New создает новый экземпляр Service.
func New(transport Transport, log *slog.Logger) *Service {
	return &Service{
		transport: transport,
		log:       log,
	}
}

// HandleSettlement обрабатывает событие расчёта платежа: клиенту
// уходит подтверждение оплаты либо уведомление о задержке выдачи.
func (s *Service) HandleSettlement(body []byte) error {
	var event models.SettlementEvent
	if err := json.Unmarshal(body, &event); err != nil {
		s.log.Error("failed to unmarshal settlement event", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}
	if event.TelegramID == 0 {
		s.log.Warn("settlement event without telegram id",
			slog.String("payment_id", event.PaymentID))
		return nil
	}

	text := s.settlementText(event)
	if err := s.transport.SendMessage(context.Background(), event.TelegramID, text); err != nil {
		s.log.Error("failed to send settlement notification",
			slog.String("payment_id", event.PaymentID), sl.Err(err))
		return err
	}
	s.log.Info("settlement notification sent",
		slog.String("payment_id", event.PaymentID),
		slog.Int64("telegram_id", event.TelegramID))
	return nil
}

// HandleBroadcast обрабатывает сообщение авторассылки.
func (s *Service) HandleBroadcast(body []byte) error {
	var msg models.BroadcastMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		s.log.Error("failed to unmarshal broadcast message", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}
	if msg.TelegramID == 0 {
		s.log.Warn("broadcast message without telegram id",
			slog.Int64("rule_id", msg.RuleID), slog.Int64("client_id", msg.ClientID))
		return nil
	}

	if err := s.transport.SendMessage(context.Background(), msg.TelegramID, msg.Text); err != nil {
		s.log.Error("failed to send broadcast message",
			slog.Int64("rule_id", msg.RuleID),
			slog.Int64("client_id", msg.ClientID), sl.Err(err))
		return err
	}
	s.log.Info("broadcast message sent",
		slog.Int64("rule_id", msg.RuleID),
		slog.Int64("telegram_id", msg.TelegramID))
	return nil
}

func (s *Service) settlementText(event models.SettlementEvent) string {
	if event.Purpose == string(models.PurposeTopUp) {
		return fmt.Sprintf("Баланс пополнен на %s. Спасибо!", event.Amount)
	}
	if !event.Applied {
		return fmt.Sprintf("Оплата %s получена. Доступ будет выдан в ближайшее время.", event.Amount)
	}
	return fmt.Sprintf("Оплата %s получена, подписка активирована. Приятного пользования!", event.Amount)
}
