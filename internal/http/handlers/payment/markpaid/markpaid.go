// Package markpaid реализует HTTP-обработчик ручной отметки оплаты
// оператором. Проходит через тот же расчёт, что и вебхук шлюза,
// поэтому повторная отметка уже оплаченного платежа безопасна.
package markpaid

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/maksimkurganov/vpn-backoffice/internal/http/middlewarectx"
	"github.com/maksimkurganov/vpn-backoffice/internal/http/response"
	"github.com/maksimkurganov/vpn-backoffice/internal/lib/sl"
	"github.com/maksimkurganov/vpn-backoffice/internal/services/settlement"
)

// Service рассчитывает платёж.
type Service interface {
	Settle(ctx context.Context, paymentID string) (*settlement.Result, error)
}

// Handler обрабатывает ручную отметку оплаты.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Отметить платёж оплаченным
// @Description Рассчитывает платёж по ручному подтверждению оператора. Идемпотентен.
// @Tags Payments
// @Produce  json
// @Param id path string true "Идентификатор платежа"
// @Success 200 {object} map[string]any "Итог расчёта"
// @Failure 404 {object} response.ErrorResponse "Платёж не найден"
// @Failure 409 {object} response.ErrorResponse "Платёж уже FAILED"
// @Failure 422 {object} response.ErrorResponse "Некорректный идентификатор"
// @Router /payments/{id}/markpaid [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.markpaid"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	paymentID := chi.URLParam(r, "id")
	if _, err := uuid.Parse(paymentID); err != nil {
		log.Error("invalid payment id", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("invalid payment id"))
		return
	}

	operator, _ := r.Context().Value(middlewarectx.User).(string)
	result, err := h.service.Settle(r.Context(), paymentID)
	if err != nil {
		log.Error("failed to settle payment", sl.Err(err))
		w.WriteHeader(response.StatusCode(err))
		render.JSON(w, r, response.Error("could not settle payment"))
		return
	}

	log.Info("payment marked paid",
		slog.String("payment_id", paymentID),
		slog.String("operator", operator),
		slog.Bool("flipped", result.Flipped))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"payment_id": paymentID,
		"status":     result.Payment.Status,
		"applied":    result.Applied,
	}))
}
