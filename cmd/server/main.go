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

	"go.uber.org/zap"

	"github.com/ocenasolutions/salon-tobo-sub000/internal/cache"
	"github.com/ocenasolutions/salon-tobo-sub000/internal/config"
	"github.com/ocenasolutions/salon-tobo-sub000/internal/httpapi"
	"github.com/ocenasolutions/salon-tobo-sub000/internal/logging"
	"github.com/ocenasolutions/salon-tobo-sub000/internal/notify"
	"github.com/ocenasolutions/salon-tobo-sub000/internal/service"
	"github.com/ocenasolutions/salon-tobo-sub000/internal/store"
	"github.com/ocenasolutions/salon-tobo-sub000/internal/store/memory"
	pgstore "github.com/ocenasolutions/salon-tobo-sub000/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	logger := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	defer func() { _ = logger.Sync() }()

	if err := validateSecurityConfig(cfg); err != nil {
		logger.Fatal("invalid security configuration", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 3)

	if cfg.DatabaseURL != "" {
		if cfg.RunMigrations {
			if err := pgstore.Migrate(cfg.DatabaseURL, logger); err != nil {
				logger.Fatal("database migration failed", zap.Error(err))
			}
		}
		pg, err := pgstore.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			logger.Fatal("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback", zap.Error(err))
		}
		repo = pg
		closers = append(closers, pg.Close)
		logger.Info("repository: postgres")
	} else {
		repo = memory.New()
		logger.Warn("repository: in-memory, data is lost on restart")
	}

	var otps cache.OTPStore = cache.NewMemoryOTPStore(nil)
	if cfg.RedisAddr != "" {
		redisStore := cache.NewRedisOTPStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisStore.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, keeping one-time codes in memory", zap.Error(err))
			_ = redisStore.Close()
		} else {
			otps = redisStore
			closers = append(closers, redisStore.Close)
			logger.Info("otp store: redis")
		}
	} else {
		logger.Info("otp store: memory")
	}

	mailer := newMailer(cfg, logger)

	dispatcher, err := notify.NewDispatcher(cfg.NotifyWorkers, logger, billSinks(cfg, logger)...)
	if err != nil {
		logger.Fatal("failed to start notification workers", zap.Error(err))
	}

	svc := service.New(repo, dispatcher, logger, cfg.Location())
	auth := httpapi.NewAuthManager(repo, otps, mailer, httpapi.AuthOptions{
		Secret:     cfg.AuthSecret,
		TokenTTL:   cfg.AccessTokenTTL(),
		OTPTTL:     cfg.OTPTTL(),
		BcryptCost: cfg.BcryptCost,
		Logger:     logger,
	})
	api := httpapi.New(svc, auth, httpapi.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		SecureCookies: cfg.IsProduction(),
		Logger:        logger,
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("salon backend listening", zap.String("addr", cfg.Address()), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	// Pending notifications are flushed before the stores they might read go away.
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Warn("notifications still pending at shutdown", zap.Error(err))
	}
	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Error("close error", zap.Error(err))
		}
	}

	logger.Info("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.IsProduction() && !smtpConfig(cfg).Enabled() {
		return fmt.Errorf("SMTP_HOST and SMTP_FROM must be set in production so one-time codes can be delivered")
	}
	if cfg.IsProduction() && cfg.AllowedOrigin == "*" {
		return fmt.Errorf("ALLOWED_ORIGIN must name a specific origin in production")
	}
	return nil
}

func smtpConfig(cfg config.Config) notify.SMTPConfig {
	return notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}
}

func newMailer(cfg config.Config, logger *zap.Logger) notify.Mailer {
	smtp := smtpConfig(cfg)
	if smtp.Enabled() {
		logger.Info("mailer: smtp", zap.String("host", smtp.Host))
		return notify.NewSMTPMailer(smtp)
	}
	logger.Warn("mailer: smtp not configured, one-time codes are only logged")
	return notify.NewLogMailer(logger)
}

// billSinks lists the best-effort destinations that receive every new bill.
func billSinks(cfg config.Config, logger *zap.Logger) []notify.BillSink {
	sinks := make([]notify.BillSink, 0, 2)
	if cfg.SheetsPath != "" {
		sinks = append(sinks, notify.NewSpreadsheetLog(cfg.SheetsPath))
	}
	whatsapp := notify.WhatsAppConfig{
		APIURL:      cfg.WhatsAppAPIURL,
		Token:       cfg.WhatsAppToken,
		AdminNumber: cfg.AdminWhatsAppNumber,
	}
	if whatsapp.Enabled() {
		sinks = append(sinks, notify.NewWhatsAppNotifier(whatsapp))
	}
	for _, sink := range sinks {
		logger.Info("bill sink enabled", zap.String("sink", sink.Name()))
	}
	return sinks
}
