package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"escrow-service/internal/cache"
	"escrow-service/internal/config"
	"escrow-service/internal/gateway"
	"escrow-service/internal/handler"
	"escrow-service/internal/notification"
	"escrow-service/internal/pub"
	"escrow-service/internal/queue"
	"escrow-service/internal/repository"
	"escrow-service/internal/router"
	"escrow-service/internal/usecase"
)

const shutdownGrace = 15 * time.Second

// App bundles the HTTP server and the background worker so main can run and
// stop them together.
type App struct {
	HTTP   *http.Server
	Worker *queue.Worker
}

func NewApp(cfg config.AppConfig, logger *zap.Logger) *App {
	db, err := config.ConnectDB()
	if err != nil {
		log.Fatalf("failed to connect DB: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       0,
	})

	// Stores and repositories.
	store := repository.NewLedgerStore(db)
	walletRepo := repository.NewWalletRepo(db)
	orderRepo := repository.NewOrderRepo(db)
	chargesRepo := repository.NewChargesRepo(db)
	jobRepo := repository.NewJobRepo(db)
	auditRepo := repository.NewAuditRepo(db)

	// Infrastructure clients.
	pendingStore := cache.NewPendingStore(rdb)
	events := pub.NewPublisher(rdb, logger)
	flw := gateway.NewFlutterwaveClient(cfg.FlutterwaveBaseURL, cfg.FlutterwaveSecretKey)

	var notifier notification.Sender = notification.Noop{}
	if cfg.NotificationURL != "" {
		notifier = notification.NewHTTPSender(
			cfg.NotificationURL, cfg.NotificationAPIKey, cfg.NotificationTimeout, logger)
	}

	// Usecases.
	paymentUC := usecase.NewPaymentUsecase(
		store, pendingStore, chargesRepo, jobRepo, orderRepo, flw, events, notifier, logger)
	orderUC := usecase.NewOrderUsecase(store, orderRepo, auditRepo, events, notifier, logger)
	walletUC := usecase.NewWalletUsecase(store, walletRepo, chargesRepo, flw, events, logger)

	// Handlers.
	paymentHandler := handler.NewPaymentHandler(paymentUC, cfg.WebhookSecretHash, logger)
	orderHandler := handler.NewOrderHandler(orderUC)
	walletHandler := handler.NewWalletHandler(walletUC)

	r := chi.NewRouter()
	router.SetupRoutes(r, paymentHandler, orderHandler, walletHandler, cfg.InternalAPIKey)

	worker := queue.NewWorker(jobRepo, paymentUC, cfg.WorkerCount, cfg.PollInterval, logger)

	return &App{
		HTTP: &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: r,
		},
		Worker: worker,
	}
}

// Run starts the worker and serves HTTP until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	go a.Worker.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.HTTP.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return a.HTTP.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
