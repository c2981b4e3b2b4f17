// Package register реализует HTTP-обработчик создания учётных записей
// операторов. Доступен только роли admin.
package register

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/maksimkurganov/vpn-backoffice/internal/http/middlewarectx"
	"github.com/maksimkurganov/vpn-backoffice/internal/http/response"
	"github.com/maksimkurganov/vpn-backoffice/internal/lib/password"
	"github.com/maksimkurganov/vpn-backoffice/internal/lib/sl"
)

// Request — структура входных данных для регистрации оператора.
type Request struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"required,oneof=admin operator"`
}

// Repository сохраняет нового оператора.
type Repository interface {
	CreateOperator(ctx context.Context, username, passwordHash, role string) (int64, error)
}

// Handler обрабатывает HTTP-запросы регистрации операторов.
type Handler struct {
	log      *slog.Logger
	repo     Repository
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, repo Repository) *Handler {
	return &Handler{
		log:      log,
		repo:     repo,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Регистрация оператора
// @Description Создает учётную запись оператора. Требует роль admin.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Данные нового оператора"
// @Success 200 {object} map[string]any "Оператор создан"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 403 {object} response.ErrorResponse "Недостаточно прав"
// @Failure 409 {object} response.ErrorResponse "Имя занято"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /operators [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.register"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	role, _ := r.Context().Value(middlewarectx.Role).(string)
	if role != "admin" {
		log.Error("operator registration requires admin role")
		w.WriteHeader(http.StatusForbidden)
		render.JSON(w, r, response.Error("admin role required"))
		return
	}

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

	hashed, err := password.GetHash(req.Password)
	if err != nil {
		log.Error("failed to hash password", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	id, err := h.repo.CreateOperator(r.Context(), req.Username, hashed, req.Role)
	if err != nil {
		log.Error("failed to create operator", sl.Err(err))
		w.WriteHeader(response.StatusCode(err))
		render.JSON(w, r, response.Error("could not create operator"))
		return
	}

	log.Info("operator created", slog.String("username", req.Username))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"id":       id,
		"username": req.Username,
		"role":     req.Role,
	}))
}
