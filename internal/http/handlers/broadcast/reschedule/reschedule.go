// Package reschedule реализует HTTP-обработчик смены крон-расписания
// планировщика рассылок без перезапуска процесса.
package reschedule

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/maksimkurganov/vpn-backoffice/internal/http/response"
	"github.com/maksimkurganov/vpn-backoffice/internal/lib/sl"
)

// Request — структура входных данных смены расписания.
type Request struct {
	Cron string `json:"cron" validate:"required"`
}

// Scheduler управляет расписанием прогонов.
type Scheduler interface {
	Reschedule(spec string) error
	Spec() string
}

// Handler обрабатывает смену расписания.
type Handler struct {
	log       *slog.Logger
	scheduler Scheduler
	validate  *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, scheduler Scheduler) *Handler {
	return &Handler{
		log:       log,
		scheduler: scheduler,
		validate:  validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Сменить расписание рассылок
// @Description Заменяет крон-выражение планировщика. Ошибочное выражение оставляет прежнее.
// @Tags Broadcast
// @Accept  json
// @Produce  json
// @Param request body Request true "Крон-выражение"
// @Success 200 {object} map[string]any "Расписание обновлено"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации или крон-выражения"
// @Router /broadcast/schedule [put]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.broadcast.reschedule"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	if err := h.scheduler.Reschedule(req.Cron); err != nil {
		log.Error("failed to reschedule broadcasts", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("invalid cron expression"))
		return
	}

	log.Info("broadcast schedule updated", slog.String("cron", req.Cron))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"cron": h.scheduler.Spec(),
	}))
}
