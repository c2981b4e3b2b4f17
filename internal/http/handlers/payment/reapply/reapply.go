// Package reapply реализует HTTP-обработчик повторного применения гранта
// по оплаченному платежу. Используется, когда панель была недоступна
// в момент расчёта и платёж остался PAID без выданного доступа.
package reapply

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/maksimkurganov/vpn-backoffice/internal/http/response"
	"github.com/maksimkurganov/vpn-backoffice/internal/lib/sl"
)

// Service повторно применяет грант по платежу.
type Service interface {
	ReapplyEntitlement(ctx context.Context, paymentID string) error
}

// Handler обрабатывает повторное применение гранта.
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
// @Summary Повторно применить грант
// @Description Повторяет применение гранта по платежу в статусе PAID.
// @Tags Payments
// @Produce  json
// @Param id path string true "Идентификатор платежа"
// @Success 200 {object} response.Response "Грант применён"
// @Failure 404 {object} response.ErrorResponse "Платёж не найден"
// @Failure 409 {object} response.ErrorResponse "Платёж не в статусе PAID"
// @Failure 502 {object} response.ErrorResponse "Панель недоступна"
// @Router /payments/{id}/reapply [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.reapply"

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

	if err := h.service.ReapplyEntitlement(r.Context(), paymentID); err != nil {
		log.Error("failed to reapply entitlement", sl.Err(err))
		w.WriteHeader(response.StatusCode(err))
		render.JSON(w, r, response.Error("could not reapply entitlement"))
		return
	}

	log.Info("entitlement reapplied", slog.String("payment_id", paymentID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"payment_id": paymentID,
	}))
}
