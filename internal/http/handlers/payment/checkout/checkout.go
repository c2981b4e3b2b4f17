// Package checkout реализует HTTP-обработчик создания платежа.
//
// Handler принимает JSON-запрос с параметрами покупки, валидирует их
// и создаёт PENDING-платёж через сервис чекаута. Для оплаты через шлюз
// в ответе возвращается ссылка на оплату; оплата с баланса рассчитывается
// сразу же.
package checkout

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"
	"github.com/shopspring/decimal"

	"github.com/maksimkurganov/vpn-backoffice/internal/http/response"
	"github.com/maksimkurganov/vpn-backoffice/internal/lib/sl"
	"github.com/maksimkurganov/vpn-backoffice/internal/services/payment"
	"github.com/maksimkurganov/vpn-backoffice/internal/services/settlement"
)

// Request — структура входных данных чекаута.
// Для покупки тарифа передаётся tariff_id, для пополнения — amount.
type Request struct {
	ClientID    int64           `json:"client_id" validate:"required"`
	TariffID    *int64          `json:"tariff_id,omitempty"`
	Amount      decimal.Decimal `json:"amount,omitempty"`
	Currency    string          `json:"currency" validate:"required,len=3"`
	Gateway     string          `json:"gateway,omitempty"`
	PromoCode   string          `json:"promo_code,omitempty"`
	FromBalance bool            `json:"from_balance,omitempty"`
}

// CheckoutService создаёт платежи.
type CheckoutService interface {
	Checkout(ctx context.Context, req payment.CheckoutRequest) (*payment.CheckoutResult, error)
}

// SettlementService рассчитывает платёж с баланса сразу после создания.
type SettlementService interface {
	Settle(ctx context.Context, paymentID string) (*settlement.Result, error)
}

// Handler обрабатывает HTTP-запросы на создание платежей.
type Handler struct {
	log        *slog.Logger
	checkout   CheckoutService
	settlement SettlementService
	validate   *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, checkout CheckoutService, settlement SettlementService) *Handler {
	return &Handler{
		log:        log,
		checkout:   checkout,
		settlement: settlement,
		validate:   validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Создать платёж
// @Description Создает PENDING-платёж через шлюз или с баланса. Оплата с баланса рассчитывается сразу.
// @Tags Payments
// @Accept  json
// @Produce  json
// @Param request body Request true "Параметры платежа"
// @Success 200 {object} map[string]any "Платёж создан"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 402 {object} response.ErrorResponse "Недостаточно средств"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /payments/checkout [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.checkout"

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

	result, err := h.checkout.Checkout(r.Context(), payment.CheckoutRequest{
		ClientID:    req.ClientID,
		TariffID:    req.TariffID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Gateway:     req.Gateway,
		PromoCode:   req.PromoCode,
		FromBalance: req.FromBalance,
	})
	if err != nil {
		log.Error("checkout failed", sl.Err(err))
		w.WriteHeader(response.StatusCode(err))
		render.JSON(w, r, response.Error("could not create payment"))
		return
	}

	data := map[string]any{
		"payment_id": result.Payment.ID,
		"amount":     result.Payment.Amount.StringFixed(2),
		"status":     result.Payment.Status,
	}
	if req.FromBalance {
		settled, err := h.settlement.Settle(r.Context(), result.Payment.ID)
		if err != nil {
			log.Error("balance settlement failed", sl.Err(err))
			w.WriteHeader(response.StatusCode(err))
			render.JSON(w, r, response.Error("could not settle payment"))
			return
		}
		data["status"] = settled.Payment.Status
		data["applied"] = settled.Applied
	} else {
		data["payment_url"] = result.PaymentURL
	}

	log.Info("payment checkout complete", slog.String("payment_id", result.Payment.ID))
	render.JSON(w, r, response.StatusOKWithData(data))
}
