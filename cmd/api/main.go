package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cropintel-api/internal/config"
	"github.com/cropintel-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/cropintel-api/internal/infrastructure/jwt"
	redisinfra "github.com/cropintel-api/internal/infrastructure/redis"
	"github.com/cropintel-api/internal/infrastructure/smtp"
	"github.com/cropintel-api/internal/otp"
	"github.com/cropintel-api/internal/pkg/clock"
	transporthttp "github.com/cropintel-api/internal/transport/http"
	appmiddleware "github.com/cropintel-api/internal/transport/http/middleware"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, reading from environment")
	}

	cfg := config.Load()
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("server exited")
	}
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dynamoClient, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		return err
	}
	// Creates tables that don't exist yet.
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables, logger)

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		if !cfg.IsDevelopment() {
			return fmt.Errorf("jwt provider: %w", err)
		}
		logger.WithError(err).Warn("JWT keys not available, using an ephemeral key pair")
		if jwtProvider, err = jwtinfra.NewEphemeralProvider(cfg.JWTExpiry, cfg.ResetTokenExpiry); err != nil {
			return err
		}
	}

	proxies, err := appmiddleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return err
	}

	store, closeStore, err := newOTPStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	deps := &transporthttp.Deps{
		UserRepo:        dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables),
		ChatSessionRepo: dynamo.NewChatSessionRepo(dynamoClient, cfg.DynamoTables.ChatSessions),
		OTPStore:        store,
		Mailer:          smtp.NewMailer(cfg.SMTP),
		JWTProvider:     jwtProvider,
		Clock:           clock.New(),
		Logger:          logger,
		Ping:            func(ctx context.Context) error { return dynamo.Ping(ctx, dynamoClient) },
		TrustedProxies:  proxies,
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(ctx, cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{"port": cfg.AppPort, "env": cfg.AppEnv, "otp_store": cfg.OTP.Store}).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// newOTPStore selects the pending-code store. The memory store loses all codes
// on restart and gets a sweeper bound to ctx.
func newOTPStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (otp.Store, func(), error) {
	switch cfg.OTP.Store {
	case config.OTPStoreRedis:
		client, err := redisinfra.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return otp.NewRedisStore(client, cfg.OTP.Expiry), func() { _ = client.Close() }, nil
	case config.OTPStoreMemory, "":
		store := otp.NewMemoryStore()
		go store.RunSweeper(ctx, cfg.OTP.SweepInterval, cfg.OTP.Expiry, time.Now, logger)
		return store, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown OTP_STORE %q", cfg.OTP.Store)
	}
}
