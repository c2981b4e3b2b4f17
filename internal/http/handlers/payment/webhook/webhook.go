// Package webhook реализует HTTP-обработчик подтверждений оплаты от шлюзов.
//
// Все шлюзы сведены к единому нормализованному событию с подписью HMAC:
// успех рассчитывает платёж, отказ переводит его в FAILED. Повторная
// доставка того же события безопасна.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/render"

	"github.com/maksimkurganov/vpn-backoffice/internal/http/response"
	"github.com/maksimkurganov/vpn-backoffice/internal/lib/sl"
	"github.com/maksimkurganov/vpn-backoffice/internal/services/settlement"
)

// Payload — нормализованное событие шлюза.
type Payload struct {
	Event     string `json:"event"`      // payment.succeeded или payment.canceled
	PaymentID string `json:"payment_id"` // Идентификатор платежа бэк-офиса
}

// Service рассчитывает платежи по событиям шлюза.
type Service interface {
	Settle(ctx context.Context, paymentID string) (*settlement.Result, error)
	Fail(ctx context.Context, paymentID string) (bool, error)
}

// Handler обрабатывает вебхуки платёжных шлюзов.
type Handler struct {
	log           *slog.Logger
	service       Service
	webhookSecret string // Секрет для проверки подписи
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service, secret string) *Handler {
	return &Handler{
		log:           log,
		service:       service,
		webhookSecret: secret,
	}
}

// Проверка подписи webhook (X-Api-Signature)
func (h *Handler) verifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(h.webhookSecret))
	mac.Write(body)
	expectedSig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expectedSig), []byte(signature))
}

// ServeHTTP godoc
// @Summary Вебхук платёжного шлюза
// @Description Принимает нормализованное событие оплаты с подписью HMAC. Идемпотентен к повторной доставке.
// @Tags Payments
// @Accept  json
// @Produce  json
// @Param request body Payload true "Событие шлюза"
// @Success 200 {object} response.Response "Событие обработано"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Неверная подпись"
// @Failure 500 {object} response.ErrorResponse "Ошибка обработки"
// @Router /payments/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"
	log := h.log.With(slog.String("op", op))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	defer func() {
		_ = r.Body.Close()
	}()

	signature := r.Header.Get("X-Api-Signature")
	if signature == "" || !h.verifySignature(body, signature) {
		log.Error("invalid or missing webhook signature")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Error("failed to unmarshal webhook payload", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if payload.PaymentID == "" {
		log.Error("webhook payload without payment id")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	const (
		PaymentSucceeded = "payment.succeeded"
		PaymentCanceled  = "payment.canceled"
	)

	switch strings.ToLower(payload.Event) {
	case PaymentSucceeded:
		if _, err := h.service.Settle(r.Context(), payload.PaymentID); err != nil {
			log.Error("failed to settle payment", sl.Err(err))
			w.WriteHeader(response.StatusCode(err))
			render.JSON(w, r, response.Error("could not settle payment"))
			return
		}
	case PaymentCanceled:
		if _, err := h.service.Fail(r.Context(), payload.PaymentID); err != nil {
			log.Error("failed to mark payment failed", sl.Err(err))
			w.WriteHeader(response.StatusCode(err))
			render.JSON(w, r, response.Error("could not fail payment"))
			return
		}
	default:
		log.Info("ignored webhook event", slog.String("event", payload.Event))
	}

	log.Info("webhook processed successfully",
		slog.String("event", payload.Event), slog.String("payment_id", payload.PaymentID))
	render.JSON(w, r, response.StatusOKWithData(nil))
}
