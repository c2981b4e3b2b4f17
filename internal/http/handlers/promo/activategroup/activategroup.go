// Package activategroup реализует HTTP-обработчик активации промо-группы.
package activategroup

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

// Request — структура входных данных активации промо-группы.
type Request struct {
	Code     string `json:"code" validate:"required,min=3,max=64"`
	ClientID int64  `json:"client_id" validate:"required"`
}

// Service активирует промо-группу.
type Service interface {
	ActivateGroup(ctx context.Context, code string, clientID int64) (*models.PromoGroup, error)
}

// Handler обрабатывает активацию промо-групп.
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
// @Summary Активировать промо-группу
// @Description Активирует промо-группу клиентом, не более одного раза на пару.
// @Tags Promo
// @Accept  json
// @Produce  json
// @Param request body Request true "Код группы и клиент"
// @Success 200 {object} map[string]any "Группа активирована"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 404 {object} response.ErrorResponse "Группа не найдена или неактивна"
// @Failure 409 {object} response.ErrorResponse "Повторная активация или лимит исчерпан"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /promo/activate-group [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.promo.activategroup"

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

	group, err := h.service.ActivateGroup(r.Context(), req.Code, req.ClientID)
	if err != nil {
		log.Error("failed to activate promo group", sl.Err(err))
		w.WriteHeader(response.StatusCode(err))
		render.JSON(w, r, response.Error("could not activate promo group"))
		return
	}

	log.Info("promo group activated",
		slog.String("code", req.Code), slog.Int64("client_id", req.ClientID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"code":      group.Code,
		"free_days": group.FreeDays,
	}))
}
