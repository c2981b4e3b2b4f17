// Package redeem реализует HTTP-обработчик погашения промокода.
package redeem

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

// Request — структура входных данных погашения промокода.
type Request struct {
	Code     string `json:"code" validate:"required,min=3,max=64"`
	ClientID int64  `json:"client_id" validate:"required"`
}

// Service погашает промокод.
type Service interface {
	RedeemCode(ctx context.Context, code string, clientID int64, grant models.Grant) (*models.PromoCode, error)
}

// Handler обрабатывает погашение промокодов.
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
// @Summary Погасить промокод
// @Description Погашает промокод клиентом. Код free_days сразу выдаёт дни на панели.
// @Tags Promo
// @Accept  json
// @Produce  json
// @Param request body Request true "Код и клиент"
// @Success 200 {object} map[string]any "Промокод погашен"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 404 {object} response.ErrorResponse "Код не найден или неактивен"
// @Failure 409 {object} response.ErrorResponse "Лимит использования исчерпан"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /promo/redeem [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.promo.redeem"

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

	code, err := h.service.RedeemCode(r.Context(), req.Code, req.ClientID, models.Grant{})
	if err != nil {
		log.Error("failed to redeem promo code", sl.Err(err))
		w.WriteHeader(response.StatusCode(err))
		render.JSON(w, r, response.Error("could not redeem promo code"))
		return
	}

	log.Info("promo code redeemed",
		slog.String("code", req.Code), slog.Int64("client_id", req.ClientID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"code":             code.Code,
		"type":             code.Type,
		"discount_percent": code.DiscountPercent,
		"free_days":        code.FreeDays,
	}))
}
