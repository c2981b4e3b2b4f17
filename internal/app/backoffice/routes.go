// Package backoffice предоставляет маршруты HTTP-приложения.
package backoffice

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/time/rate"

	"github.com/maksimkurganov/vpn-backoffice/internal/http/handlers/auth/login"
	"github.com/maksimkurganov/vpn-backoffice/internal/http/handlers/auth/register"
	broadcastrun "github.com/maksimkurganov/vpn-backoffice/internal/http/handlers/broadcast/run"
	"github.com/maksimkurganov/vpn-backoffice/internal/http/handlers/health"
	"github.com/maksimkurganov/vpn-backoffice/internal/http/handlers/payment/checkout"
	"github.com/maksimkurganov/vpn-backoffice/internal/http/handlers/payment/markpaid"
	"github.com/maksimkurganov/vpn-backoffice/internal/http/handlers/payment/paymentlist"
	"github.com/maksimkurganov/vpn-backoffice/internal/http/handlers/payment/reapply"
	"github.com/maksimkurganov/vpn-backoffice/internal/http/handlers/payment/webhook"
	"github.com/maksimkurganov/vpn-backoffice/internal/http/handlers/promo/activategroup"
	"github.com/maksimkurganov/vpn-backoffice/internal/http/handlers/promo/redeem"
	"github.com/maksimkurganov/vpn-backoffice/internal/http/handlers/tariff/tarifflist"
	trialactivate "github.com/maksimkurganov/vpn-backoffice/internal/http/handlers/trial/activate"
	"github.com/maksimkurganov/vpn-backoffice/internal/http/middlewarectx"
	authservice "github.com/maksimkurganov/vpn-backoffice/internal/services/auth"
	broadcastservice "github.com/maksimkurganov/vpn-backoffice/internal/services/broadcast"
	paymentservice "github.com/maksimkurganov/vpn-backoffice/internal/services/payment"
	promoservice "github.com/maksimkurganov/vpn-backoffice/internal/services/promo"
	"github.com/maksimkurganov/vpn-backoffice/internal/services/settlement"
	"github.com/maksimkurganov/vpn-backoffice/internal/storage/repository"
)

// Services собирает сервисы, нужные маршрутам.
type Services struct {
	Auth       *authservice.Service
	Checkout   *paymentservice.Service
	Settlement *settlement.Coordinator
	Promo      *promoservice.Service
	Broadcast  *broadcastservice.Engine
	Storage    *repository.Storage
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, svc *Services, webhookSecret string) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	limiter := rate.NewLimiter(20, 40)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/login", login.New(logger, svc.Auth).ServeHTTP)
		r.Get("/health", health.New(logger, svc.Storage).ServeHTTP)

		// Webhook endpoint (подпись вместо JWT)
		r.Post("/payments/webhook", webhook.New(logger, svc.Settlement, webhookSecret).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(svc.Auth, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger, limiter))

			r.Post("/operators", register.New(logger, svc.Storage).ServeHTTP)

			r.Post("/payments/checkout", checkout.New(logger, svc.Checkout, svc.Settlement).ServeHTTP)
			r.Post("/payments/{id}/markpaid", markpaid.New(logger, svc.Settlement).ServeHTTP)
			r.Post("/payments/{id}/reapply", reapply.New(logger, svc.Settlement).ServeHTTP)
			r.Get("/clients/{client_id}/payments", paymentlist.New(logger, svc.Checkout).ServeHTTP)
			r.Get("/tariffs", tarifflist.New(logger, svc.Storage).ServeHTTP)

			r.Post("/promo/redeem", redeem.New(logger, svc.Promo).ServeHTTP)
			r.Post("/promo/activate-group", activategroup.New(logger, svc.Promo).ServeHTTP)

			r.Post("/trial/activate", trialactivate.New(logger, svc.Settlement).ServeHTTP)

			r.Post("/broadcast/rules/{id}/run", broadcastrun.New(logger, svc.Broadcast).ServeHTTP)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
