package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"calzados-be/internal/catalog"
	"calzados-be/internal/config"
	"calzados-be/internal/db"
	"calzados-be/internal/inventory"
	"calzados-be/internal/logger"
	"calzados-be/internal/notification"
	"calzados-be/internal/order"
	"calzados-be/internal/payment"
	"calzados-be/internal/payment/confirm"
	"calzados-be/internal/sweeper"
	"calzados-be/internal/transport/rest"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		logger.L().Fatal("server exited", zap.Error(err))
	}
}

func run() error {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	database, err := db.InitDB(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer database.Close()

	ledger := inventory.NewLedger(database)
	orderRepo := order.NewRepository(database, ledger)
	catalogRepo := catalog.NewRepository(database)
	gateway := payment.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	mailer := notification.NewMailer(cfg)

	coordinator := confirm.NewCoordinator(database, orderRepo, gateway, mailer)
	checkout := order.NewCheckoutService(orderRepo, catalogRepo, gateway, coordinator, cfg)
	sw := sweeper.New(database, orderRepo, ledger, cfg.ReservationWindow(), cfg.SweepInterval)

	handler := rest.NewHandler(checkout, coordinator, sw)
	router := rest.NewRouter(handler, []byte(cfg.JWTSecret))

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.L().Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		err := sw.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.L().Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
