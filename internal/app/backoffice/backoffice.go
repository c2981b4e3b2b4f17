// Package backoffice собирает HTTP-приложение бэк-офиса: хранилище,
// клиента панели, платёжные шлюзы, сервисы и маршруты.
package backoffice

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/maksimkurganov/vpn-backoffice/internal/cache"
	"github.com/maksimkurganov/vpn-backoffice/internal/config"
	"github.com/maksimkurganov/vpn-backoffice/internal/gateway"
	"github.com/maksimkurganov/vpn-backoffice/internal/lib/jwt"
	"github.com/maksimkurganov/vpn-backoffice/internal/lib/rabbitmq"
	"github.com/maksimkurganov/vpn-backoffice/internal/migrations"
	"github.com/maksimkurganov/vpn-backoffice/internal/panel"
	authservice "github.com/maksimkurganov/vpn-backoffice/internal/services/auth"
	broadcastservice "github.com/maksimkurganov/vpn-backoffice/internal/services/broadcast"
	"github.com/maksimkurganov/vpn-backoffice/internal/services/entitlement"
	notifyservice "github.com/maksimkurganov/vpn-backoffice/internal/services/notify"
	paymentservice "github.com/maksimkurganov/vpn-backoffice/internal/services/payment"
	promoservice "github.com/maksimkurganov/vpn-backoffice/internal/services/promo"
	"github.com/maksimkurganov/vpn-backoffice/internal/services/referral"
	"github.com/maksimkurganov/vpn-backoffice/internal/services/settlement"
	"github.com/maksimkurganov/vpn-backoffice/internal/storage/repository"
)

type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New собирает приложение из конфигурации.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	subscriberCache, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.NotificationQueues())
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	panelClient := panel.NewClient(cfg.PanelBaseURL, cfg.PanelToken, cfg.PanelTimeout)
	cachedPanel := panel.NewCachedClient(panelClient, subscriberCache)

	gateways := gateway.NewRegistry(
		gateway.NewYookassa(cfg.YookassaShopID, cfg.YookassaSecretKey),
		gateway.NewCryptomus(cfg.CryptomusMerchant, cfg.CryptomusAPIKey),
		gateway.NewPlatega(cfg.PlategaMerchant, cfg.PlategaSecretKey),
	)

	notifier := notifyservice.New(ch, logger)
	resolver := entitlement.NewResolver(cachedPanel, db, logger)
	applier := entitlement.NewApplier(resolver, cachedPanel, logger)
	distributor := referral.NewDistributor(db, referral.Percents{
		Level1: cfg.Level1Percent,
		Level2: cfg.Level2Percent,
		Level3: cfg.Level3Percent,
	}, logger)
	coordinator := settlement.New(db, applier, distributor, notifier, cfg.Trial, logger)
	promoSvc := promoservice.New(db, applier, logger)
	checkoutSvc := paymentservice.New(db, gateways, promoSvc, cfg.ReturnURL, logger)
	broadcastEngine := broadcastservice.New(db, cachedPanel, notifier, logger)

	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	authSvc := authservice.New(db, jwtMaker)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, &Services{
		Auth:       authSvc,
		Checkout:   checkoutSvc,
		Settlement: coordinator,
		Promo:      promoSvc,
		Broadcast:  broadcastEngine,
		Storage:    db,
	}, cfg.WebhookSecret)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		conn:   conn,
		ch:     ch,
	}, nil
}

// Run запускает HTTP-сервер и гасит его по отмене контекста.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		if cerr := a.ch.Close(); cerr != nil {
			a.logger.Error("failed to close channel", slog.Any("err", cerr))
		}
		if cerr := a.conn.Close(); cerr != nil {
			a.logger.Error("failed to close connection", slog.Any("err", cerr))
		}
		_ = a.db.DB.Close()
		return err
	}
}
