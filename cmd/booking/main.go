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
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"massagebook/internal/booking"
	"massagebook/internal/bookingapi"
	"massagebook/internal/config"
	"massagebook/internal/errlog"
	"massagebook/internal/httpapi"
	"massagebook/internal/metrics"
	"massagebook/internal/payment"
	"massagebook/internal/pricing"
	"massagebook/internal/telegram"
)

const sessionCleanupInterval = time.Minute

type pinger interface {
	Ping(ctx context.Context) error
}

func main() {
	_ = godotenv.Load()

	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("BOOKING_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	if !cfg.Log.Pretty {
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
	if lvl, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		logger = logger.Level(lvl)
	}

	catalog := pricing.Default()
	if cfg.CatalogPath != "" {
		if catalog, err = pricing.LoadFile(cfg.CatalogPath); err != nil {
			logger.Fatal().Err(err).Str("path", cfg.CatalogPath).Msg("failed to load service catalog")
		}
	}

	loc, _ := cfg.Location()
	businessDays, _ := cfg.BusinessDays()

	client := bookingapi.New(bookingapi.Options{
		BaseURL:          cfg.Backend.BaseURL,
		APIKey:           cfg.Backend.APIKey,
		PractitionerID:   cfg.Backend.PractitionerID,
		Timeout:          cfg.BackendTimeout(),
		ClientErrorsPath: cfg.Backend.ClientErrorsPath,
	})

	var store errlog.Store
	if cfg.Errors.DatabasePath != "" {
		sqliteStore, err := errlog.OpenSQLite(cfg.Errors.DatabasePath, cfg.Errors.Capacity)
		if err != nil {
			logger.Fatal().Err(err).Msg("open error log db")
		}
		store = sqliteStore
	} else {
		store = errlog.NewMemoryStore(cfg.Errors.Capacity)
	}
	defer store.Close()

	errOpts := errlog.Options{
		MaxAge:      cfg.ErrorMaxAge(),
		OfficePhone: cfg.Booking.OfficePhone,
	}
	if cfg.Backend.ForwardErrors {
		errOpts.Forward = client
	}
	errs := errlog.New(store, logger, errOpts)
	errs.Start()
	defer errs.Stop()

	var payer booking.Payer
	if cfg.PaymentsEnabled() {
		payer = payment.NewBridge(payment.Config{
			PublishableKey: cfg.Stripe.PublishableKey,
			SecretKey:      cfg.Stripe.SecretKey,
			Currency:       cfg.Stripe.Currency,
		}, client, payment.NewStripeConfirmer(cfg.Stripe.SecretKey))
	} else {
		logger.Warn().Msg("stripe keys not set, card payments disabled")
	}

	sessions := booking.NewSessionStore(cfg.SessionTimeout(), func(id string) *booking.Wizard {
		return booking.NewWizard(id,
			booking.Deps{Catalog: catalog, Backend: client, Payments: payer, Logger: logger},
			booking.Config{
				Location:     loc,
				BusinessDays: businessDays,
				HorizonDays:  cfg.Booking.HorizonDays,
				OfficePhone:  cfg.Booking.OfficePhone,
			},
		)
	})

	var rdb *redis.Client
	var limiter httpapi.Limiter
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		limiter = httpapi.NewRedisLimiter(rdb, cfg.Server.RateLimitPerMinute, time.Minute)
	} else {
		limiter = httpapi.NewLocalLimiter(cfg.Server.RateLimitPerMinute, cfg.Server.RateBurst)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errs.Go(ctx, "session cleanup", func(ctx context.Context) error {
		sessions.RunCleanup(ctx, sessionCleanupInterval, &logger)
		return nil
	})

	var dbPing pinger
	if p, ok := store.(pinger); ok {
		dbPing = p
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, dbPing, rdb, client, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	if cfg.Telegram.Enabled {
		bot, err := telegram.New(cfg.Telegram.BotToken, cfg.Telegram.Debug, sessions, catalog, errs, &logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("create telegram bot error")
		}
		errs.Go(ctx, "telegram bot", func(ctx context.Context) error {
			bot.Start(ctx)
			return nil
		})
	}

	api := httpapi.New(httpapi.Options{
		Sessions: sessions,
		Catalog:  catalog,
		Errors:   errs,
		Limiter:  limiter,
		Logger:   logger,
		Debug:    cfg.Server.DebugRoutes,
	})
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()

	logger.Info().Str("addr", cfg.Server.Addr).Int("services", len(catalog.All(false))).Msg("booking service started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("api server error")
	}
	logger.Info().Msg("booking service stopped")
}

func startHealthServer(
	ctx context.Context,
	port int,
	db pinger,
	rdb *redis.Client,
	backend *bookingapi.Client,
	logger *zerolog.Logger,
) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if db != nil {
			if err := db.Ping(ctxPing); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				return
			}
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		if err := backend.HealthCheck(ctxPing); err != nil {
			http.Error(w, "booking backend not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
