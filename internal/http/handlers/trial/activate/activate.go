// Package activate реализует HTTP-обработчик выдачи пробного доступа.
package activate

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/maksimkurganov/vpn-backoffice/internal/http/response"
	"github.com/maksimkurganov/vpn-backoffice/internal/lib/sl"
	"github.com/maksimkurganov/vpn-backoffice/internal/models"
)

// Request — структура входных данных активации пробного доступа.
type Request struct {
	ClientID int64 `json:"client_id" validate:"required"`
}

// Service выдаёт пробный доступ.
type Service interface {
	ActivateTrial(ctx context.Context, clientID int64) (*models.RemoteSubscriber, error)
}

// Handler обрабатывает активацию пробного доступа.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Выдать пробный доступ
// @Description Выдает клиенту пробный доступ. Повторная активация возвращает 409.
// @Tags Trial
// @Accept  json
// @Produce  json
// @Param request body Request true "Идентификатор клиента"
// @Success 200 {object} map[string]any "Пробный доступ выдан"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 404 {object} response.ErrorResponse "Клиент не найден"
// @Failure 409 {object} response.ErrorResponse "Пробный доступ уже использован"
// @Failure 502 {object} response.ErrorResponse "Панель недоступна"
// @Router /trial/activate [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.trial.activate"

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

	sub, err := h.service.ActivateTrial(r.Context(), req.ClientID)
	if err != nil {
		log.Error("failed to activate trial", sl.Err(err))
		w.WriteHeader(response.StatusCode(err))
		render.JSON(w, r, response.Error("could not activate trial"))
		return
	}

	log.Info("trial activated", slog.Int64("client_id", req.ClientID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"subscriber_uuid": sub.UUID,
		"expire_at":       sub.ExpireAt,
	}))
}
