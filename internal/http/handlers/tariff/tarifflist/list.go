// Package tarifflist реализует HTTP-обработчик списка активных тарифов.
package tarifflist

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/maksimkurganov/vpn-backoffice/internal/http/response"
	"github.com/maksimkurganov/vpn-backoffice/internal/lib/sl"
	"github.com/maksimkurganov/vpn-backoffice/internal/models"
)

// Repository возвращает активные тарифы каталога.
type Repository interface {
	ListActiveTariffs(ctx context.Context) ([]*models.Tariff, error)
}

// Handler обрабатывает запросы списка тарифов.
type Handler struct {
	log  *slog.Logger
	repo Repository
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, repo Repository) *Handler {
	return &Handler{
		log:  log,
		repo: repo,
	}
}

type tariffView struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Kind         string `json:"kind"`
	Price        string `json:"price"`
	DurationDays int    `json:"duration_days"`
	DeviceLimit  int    `json:"device_limit"`
}

// ServeHTTP godoc
// @Summary Список активных тарифов
// @Description Возвращает тарифы, доступные для покупки.
// @Tags Tariffs
// @Produce  json
// @Success 200 {object} map[string]any "Список тарифов"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /tariffs [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.tariff.list"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	tariffs, err := h.repo.ListActiveTariffs(r.Context())
	if err != nil {
		log.Error("failed to list tariffs", sl.Err(err))
		w.WriteHeader(response.StatusCode(err))
		render.JSON(w, r, response.Error("could not list tariffs"))
		return
	}

	views := make([]tariffView, 0, len(tariffs))
	for _, t := range tariffs {
		views = append(views, tariffView{
			ID:           t.ID,
			Name:         t.Name,
			Kind:         string(t.Kind),
			Price:        t.Price.StringFixed(2),
			DurationDays: t.DurationDays,
			DeviceLimit:  t.DeviceLimit,
		})
	}

	log.Info("tariffs listed", slog.Int("count", len(views)))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"list_count": len(views),
		"tariffs":    views,
	}))
}
