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

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/opticash/opticash-api/internal/config"
	"github.com/opticash/opticash-api/internal/domain/notification"
	"github.com/opticash/opticash-api/internal/domain/transfer"
	"github.com/opticash/opticash-api/internal/domain/user"
	"github.com/opticash/opticash-api/internal/domain/wallet"
	"github.com/opticash/opticash-api/internal/middleware"
	"github.com/opticash/opticash-api/internal/pkg/database"
	"github.com/opticash/opticash-api/internal/pkg/email"
	"github.com/opticash/opticash-api/internal/pkg/jwt"
	"github.com/opticash/opticash-api/internal/pkg/lock"
	"github.com/opticash/opticash-api/internal/pkg/logger"
	pkgresponse "github.com/opticash/opticash-api/internal/pkg/response"
)

func main() {
	cfg := config.Load()
	if err := logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
		LogFile:     cfg.LogFile,
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting Opticash API")

	db, err := database.NewPostgres(cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	// ---------- Completion leases ----------
	lockOpts := lock.DefaultOptions()
	lockOpts.Expiry = cfg.CompletionLockTTL
	var locker lock.Locker
	if redis != nil {
		locker = lock.NewRedisLocker(redis, lockOpts)
	} else {
		locker = lock.NewLocalLocker(lockOpts)
	}

	// ---------- Email ----------
	transport, closeTransport, err := newMailTransport(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("transport", cfg.MailTransport).Msg("Failed to create mail transport")
	}
	defer closeTransport()

	breaker := email.NewBreakerTransport(transport, email.DefaultBreakerConfig("mail-"+cfg.MailTransport))
	mailer, err := email.NewMailer(breaker, email.Address{Email: cfg.MailFromEmail, Name: cfg.MailFromName})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to parse email templates")
	}

	dispatcherCfg := notification.DefaultConfig()
	dispatcherCfg.MaxRetries = cfg.NotifyMaxRetries
	dispatcherCfg.RetryDelay = cfg.NotifyRetryDelay
	dispatcherCfg.Throttle = cfg.NotifyThrottle
	dispatcher := notification.NewDispatcher(mailer, dispatcherCfg, notification.WithOnResult(func(res notification.Result) {
		if res.Outcome == notification.OutcomeDropped {
			log.Warn().Str("breaker_state", breaker.State()).Msg("Notification dropped")
		}
	}))

	// ---------- Repositories ----------
	userRepo := user.NewRepository(db)
	walletRepo := wallet.NewRepository(db)
	transferRepo := transfer.NewRepository(db, walletRepo)

	// ---------- Services ----------
	userService := user.NewService(userRepo)
	walletService := wallet.NewService(walletRepo)
	transferService := transfer.NewService(userService, walletRepo, transferRepo, locker, dispatcher, transfer.Config{
		IntentTTL: cfg.PaymentIntentTTL,
	})

	// ---------- Handlers ----------
	jwtService := jwt.NewService(cfg.JWTSecret, 24*time.Hour)
	authMiddleware := middleware.Auth(jwtService)

	r := newRouter(cfg.AllowedOrigins, authMiddleware,
		transfer.NewHandler(transferService, cfg.ExposeOTPInResponse),
		wallet.NewHandler(walletService),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Pending receipts get the rest of the shutdown window.
	if err := dispatcher.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Int("pending", dispatcher.Len()).Msg("Notification queue not drained")
	}

	log.Info().Msg("Server exited properly")
}

// newMailTransport builds the configured transport and a func releasing it.
func newMailTransport(cfg *config.Config) (email.Transport, func(), error) {
	switch cfg.MailTransport {
	case "sendgrid":
		if cfg.SendGridAPIKey == "" {
			return nil, nil, errors.New("SENDGRID_API_KEY is required for the sendgrid transport")
		}
		return email.NewSendGridClient(email.SendGridConfig{APIKey: cfg.SendGridAPIKey}), func() {}, nil
	case "amqp":
		relay, err := email.NewAMQPRelay(cfg.AMQPURL, cfg.MailExchange)
		if err != nil {
			return nil, nil, err
		}
		return relay, relay.Close, nil
	case "log", "":
		return email.LogTransport{}, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown mail transport %q", cfg.MailTransport)
	}
}

func newRouter(allowedOrigins []string, authMiddleware func(http.Handler) http.Handler, transferHandler *transfer.Handler, walletHandler *wallet.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(allowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
			pkgresponse.OK(w, map[string]string{"message": "pong"})
		})

		r.Mount("/transactions", transferHandler.Routes(authMiddleware))
		r.Mount("/wallet", walletHandler.Routes(authMiddleware))
	})

	return r
}
