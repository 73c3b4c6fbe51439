package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/commercepay/e-wallet-service/internal/api"
	"github.com/commercepay/e-wallet-service/internal/auth"
	"github.com/commercepay/e-wallet-service/internal/config"
	"github.com/commercepay/e-wallet-service/internal/events"
	"github.com/commercepay/e-wallet-service/internal/events/kafka"
	"github.com/commercepay/e-wallet-service/internal/paymob"
	"github.com/commercepay/e-wallet-service/internal/storage/postgres"
	"github.com/commercepay/e-wallet-service/internal/wallet"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	db, err := sql.Open("postgres", cfg.PostgresDSN())
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatal("ping database", zap.Error(err))
	}
	logger.Info("connected to postgres", zap.String("host", cfg.PostgresHost))

	store := postgres.NewStore(db, cfg.LockTimeout)

	var publisher events.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := kafka.NewPublisher(cfg.KafkaBrokers)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
		logger.Info("kafka events enabled", zap.Strings("brokers", cfg.KafkaBrokers))
	}

	walletSvc := wallet.NewService(store, publisher, logger)
	authClient := auth.NewClient(cfg.AuthBaseURL())
	paymobClient := paymob.NewClient(cfg.PaymobSecretKey, cfg.PaymobPublicKey, cfg.PaymobIntegrationID)

	server := api.NewServer(walletSvc, authClient, paymobClient, logger)
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.Routes(),
	}

	go func() {
		logger.Info("starting server", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}
