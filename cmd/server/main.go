package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/markjakearzadon/schoolpay-gobackend/internal/config"
	"github.com/markjakearzadon/schoolpay-gobackend/internal/db"
	"github.com/markjakearzadon/schoolpay-gobackend/internal/gateway"
	"github.com/markjakearzadon/schoolpay-gobackend/internal/handlers"
	"github.com/markjakearzadon/schoolpay-gobackend/internal/logging"
	"github.com/markjakearzadon/schoolpay-gobackend/internal/services"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:          "schoolpay",
		Short:        "School payments backend",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := config.Load(envFile)
				if err != nil {
					return err
				}
				return serve(cmd.Context(), cfg)
			},
		},
		&cobra.Command{
			Use:   "ensure-indexes",
			Short: "Create the MongoDB indexes and exit",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := config.Load(envFile)
				if err != nil {
					return err
				}
				return ensureIndexes(cmd.Context(), cfg)
			},
		},
	)
	return root
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := logging.New(cfg.LogLevel)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "err", err)
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := db.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return err
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := client.Disconnect(disconnectCtx); err != nil {
			log.Error("error disconnecting from MongoDB", "err", err)
		}
	}()
	log.Info("connected to MongoDB", "database", cfg.MongoDB)

	database := client.Database(cfg.MongoDB)
	if err := db.EnsureIndexes(ctx, database); err != nil {
		return err
	}
	store := db.NewStore(client, database, cfg.MongoTransactions)

	gw, err := gateway.NewClient(log, cfg.Gateway)
	if err != nil {
		return err
	}

	userService := services.NewUserService(log, store, cfg.JWTSecret, cfg.JWTTTL, cfg.SaltRounds)
	paymentService := services.NewPaymentService(log, store, store, store, gw, cfg.Gateway.DefaultSchoolID)
	webhookService := services.NewWebhookService(log, store, store, store, store)

	router := handlers.NewRouter(handlers.Routes{
		Log:      log,
		Payments: handlers.NewPaymentHandler(log, paymentService),
		Webhooks: handlers.NewWebhookHandler(log, webhookService),
		Users:    handlers.NewUserHandler(log, userService),
		Verifier: userService,
		Limiter:  handlers.NewRateLimiter(cfg.LoginRateRPS, cfg.LoginRateBurst),
	})

	server := &http.Server{
		Addr:        "0.0.0.0:" + cfg.Port,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		// Leaves room for the gateway call on create-payment.
		WriteTimeout: cfg.Gateway.Timeout + 10*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server running", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, cfg *config.Config) error {
	log := logging.New(cfg.LogLevel)
	if cfg.MongoURI == "" {
		return &config.MissingKeysError{Keys: []string{"MONGOURI"}}
	}

	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	client, err := db.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background())

	if err := db.EnsureIndexes(ctx, client.Database(cfg.MongoDB)); err != nil {
		return err
	}
	log.Info("indexes ensured", "database", cfg.MongoDB)
	return nil
}
