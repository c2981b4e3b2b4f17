// Package broadcastscheduler собирает процесс планировщика авторассылок:
// движок правил, крон и небольшой служебный HTTP-сервер для ручного
// запуска правил и смены расписания.
package broadcastscheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/streadway/amqp"

	"github.com/maksimkurganov/vpn-backoffice/internal/cache"
	"github.com/maksimkurganov/vpn-backoffice/internal/config"
	"github.com/maksimkurganov/vpn-backoffice/internal/http/handlers/broadcast/reschedule"
	"github.com/maksimkurganov/vpn-backoffice/internal/http/handlers/broadcast/run"
	"github.com/maksimkurganov/vpn-backoffice/internal/http/handlers/health"
	"github.com/maksimkurganov/vpn-backoffice/internal/lib/rabbitmq"
	"github.com/maksimkurganov/vpn-backoffice/internal/panel"
	broadcastservice "github.com/maksimkurganov/vpn-backoffice/internal/services/broadcast"
	notifyservice "github.com/maksimkurganov/vpn-backoffice/internal/services/notify"
	"github.com/maksimkurganov/vpn-backoffice/internal/storage/repository"
)

type App struct {
	scheduler *broadcastservice.Scheduler
	server    *http.Server
	conn      *amqp.Connection
	ch        *amqp.Channel
	db        *repository.Storage
	cronSpec  string
	logger    *slog.Logger
}

func waitForDB(ctx context.Context, db *repository.Storage) error {
	for range 10 {
		if err := db.CheckDatabaseReady(ctx); err == nil {
			return nil
		}
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("database not ready after retries")
}

// New создает новый экземпляр приложения планировщика.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.NotificationQueues())
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	if err := waitForDB(ctx, db); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	subscriberCache, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	panelClient := panel.NewClient(cfg.PanelBaseURL, cfg.PanelToken, cfg.PanelTimeout)
	cachedPanel := panel.NewCachedClient(panelClient, subscriberCache)
	notifier := notifyservice.New(ch, logger)

	engine := broadcastservice.New(db, cachedPanel, notifier, logger)
	scheduler := broadcastservice.NewScheduler(engine, logger)

	router := chi.NewRouter()
	router.Use(middleware.RequestID, middleware.Recoverer)
	router.Post("/broadcast/rules/{id}/run", run.New(logger, engine).ServeHTTP)
	router.Put("/broadcast/schedule", reschedule.New(logger, scheduler).ServeHTTP)
	router.Get("/health", health.New(logger, db).ServeHTTP)
	router.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		scheduler: scheduler,
		server:    srv,
		conn:      conn,
		ch:        ch,
		db:        db,
		cronSpec:  cfg.BroadcastCron,
		logger:    logger,
	}, nil
}

// Run запускает крон и служебный HTTP-сервер.
func (a *App) Run(ctx context.Context) error {
	if err := a.scheduler.Start(a.cronSpec); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("scheduler HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.scheduler.Stop()
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down broadcast scheduler")
	a.scheduler.Stop()

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
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
