// Package paymentlist реализует HTTP-обработчик списка платежей клиента.
package paymentlist

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
	"github.com/maksimkurganov/vpn-backoffice/internal/models"
)

// Service возвращает платежи клиента.
type Service interface {
	ListByClient(ctx context.Context, clientID int64, limit, offset int) ([]*models.Payment, error)
}

// Handler обрабатывает запросы списка платежей.
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

type paymentView struct {
	ID       string  `json:"id"`
	Amount   string  `json:"amount"`
	Currency string  `json:"currency"`
	Status   string  `json:"status"`
	Purpose  string  `json:"purpose"`
	Gateway  string  `json:"gateway"`
	PaidAt   *string `json:"paid_at,omitempty"`
}

// ServeHTTP godoc
// @Summary Список платежей клиента
// @Description Возвращает платежи клиента, отсортированные по дате создания.
// @Tags Payments
// @Produce  json
// @Param client_id path int true "Идентификатор клиента"
// @Param limit query int false "Размер страницы"
// @Param offset query int false "Смещение"
// @Success 200 {object} map[string]any "Список платежей"
// @Failure 422 {object} response.ErrorResponse "Некорректный идентификатор"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /clients/{client_id}/payments [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.list"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	clientID, err := strconv.ParseInt(chi.URLParam(r, "client_id"), 10, 64)
	if err != nil {
		log.Error("invalid client id", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("invalid client id"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	payments, err := h.service.ListByClient(r.Context(), clientID, limit, offset)
	if err != nil {
		log.Error("failed to list payments", sl.Err(err))
		w.WriteHeader(response.StatusCode(err))
		render.JSON(w, r, response.Error("could not list payments"))
		return
	}

	views := make([]paymentView, 0, len(payments))
	for _, p := range payments {
		v := paymentView{
			ID:       p.ID,
			Amount:   p.Amount.StringFixed(2),
			Currency: p.Currency,
			Status:   string(p.Status),
			Purpose:  string(p.Purpose),
			Gateway:  p.Gateway,
		}
		if p.PaidAt != nil {
			paidAt := p.PaidAt.Format("2006-01-02T15:04:05Z07:00")
			v.PaidAt = &paidAt
		}
		views = append(views, v)
	}

	log.Info("payments listed", slog.Int64("client_id", clientID), slog.Int("count", len(views)))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"list_count": len(views),
		"payments":   views,
	}))
}
