// Package run реализует HTTP-обработчик ручного запуска правила рассылки.
package run

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/maksimkurganov/vpn-backoffice/internal/http/response"
	"github.com/maksimkurganov/vpn-backoffice/internal/lib/sl"
	"github.com/maksimkurganov/vpn-backoffice/internal/services/broadcast"
)

// Service прогоняет правило рассылки.
type Service interface {
	RunRule(ctx context.Context, ruleID int64) (*broadcast.RuleResult, error)
}

// Handler обрабатывает ручной запуск правил.
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
// @Summary Запустить правило рассылки
// @Description Прогоняет правило вручную, включая выключенные. Пересёкшийся запуск возвращает 409.
// @Tags Broadcast
// @Produce  json
// @Param id path int true "Идентификатор правила"
// @Success 200 {object} map[string]any "Итоги прогона"
// @Failure 404 {object} response.ErrorResponse "Правило не найдено"
// @Failure 409 {object} response.ErrorResponse "Правило уже выполняется"
// @Failure 422 {object} response.ErrorResponse "Некорректный идентификатор"
// @Router /broadcast/rules/{id}/run [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.broadcast.run"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	ruleID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		log.Error("invalid rule id", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("invalid rule id"))
		return
	}

	result, err := h.service.RunRule(r.Context(), ruleID)
	if err != nil {
		log.Error("failed to run broadcast rule", sl.Err(err))
		w.WriteHeader(response.StatusCode(err))
		render.JSON(w, r, response.Error("could not run broadcast rule"))
		return
	}

	log.Info("broadcast rule run", slog.Int64("rule_id", ruleID), slog.Int("sent", result.Sent))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"rule_id":    result.RuleID,
		"candidates": result.Candidates,
		"sent":       result.Sent,
		"skipped":    result.Skipped,
	}))
}
