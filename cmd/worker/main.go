package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dealerreach/backend/config"
	"github.com/dealerreach/backend/pkg/cache"
	"github.com/dealerreach/backend/pkg/channel"
	"github.com/dealerreach/backend/pkg/compliance"
	"github.com/dealerreach/backend/pkg/content"
	"github.com/dealerreach/backend/pkg/dispatch"
	"github.com/dealerreach/backend/pkg/dnc"
	"github.com/dealerreach/backend/pkg/logger"
	"github.com/dealerreach/backend/pkg/metrics"
	"github.com/dealerreach/backend/pkg/models"
	"github.com/dealerreach/backend/pkg/queue"
	"github.com/dealerreach/backend/pkg/settings"
	"github.com/dealerreach/backend/pkg/store"
	"github.com/dealerreach/backend/pkg/transport"
)

// The worker process consumes the per-channel dispatch queues. It runs
// separately from the API so send throughput and webhook ingestion
// scale independently.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on OS environment variables")
	}

	cfg := config.Load()
	appLog := logger.New(cfg.LogLevel, cfg.LogFormat)
	appLog.Info("worker starting", "environment", cfg.APIEnvironment)

	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			AttachStacktrace: true,
		})
		if err != nil {
			appLog.Warn("failed to initialize sentry", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		appLog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	redisClient, err := cache.NewClient(cfg.RedisURL)
	if err != nil {
		appLog.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	leadStore := store.NewLeadStore(db)
	touchStore := store.NewTouchStore(db)
	eventStore := store.NewTouchEventStore(db)
	dncStore := store.NewDNCStore(db)
	settingStore := store.NewSettingStore(db)

	resolver := settings.New(settingStore, redisClient, 5*time.Minute, appLog)
	ctx := context.Background()

	windowCfg := compliance.ResolveWindowConfig(ctx, resolver, compliance.WindowConfig{
		StartHour:   cfg.SendWindowStartHour,
		StartMinute: cfg.SendWindowStartMinute,
		EndHour:     cfg.SendWindowEndHour,
		EndMinute:   cfg.SendWindowEndMinute,
		Timezone:    cfg.SendWindowTimezone,
	})
	window, err := compliance.NewWindow(windowCfg)
	if err != nil {
		appLog.Error("invalid send window configuration", "error", err)
		os.Exit(1)
	}

	capsCfg := compliance.ResolveCapsConfig(ctx, resolver, compliance.CapsConfig{
		PerChannelPerWeek:          cfg.CapPerChannelPerWeek,
		TotalPerDay:                cfg.CapTotalPerDay,
		TotalPerWeek:               cfg.CapTotalPerWeek,
		MinHoursBetweenSameChannel: cfg.CapMinHoursBetweenSameChan,
	})
	caps := compliance.NewCapChecker(capsCfg, touchStore)
	registry := dnc.NewRegistry(leadStore, dncStore)

	// Channel capability table with transports attached.
	table := channel.NewTable(cfg)
	table.Attach(models.ChannelWhatsApp, transport.NewWhatsAppTransport(cfg.WhatsAppAPIURL, cfg.WhatsAppToken, cfg.WhatsAppPhoneID))
	table.Attach(models.ChannelEmail, transport.NewEmailTransport(cfg.SendGridAPIKey, cfg.EmailFrom, cfg.EmailFromName))
	table.Attach(models.ChannelSMS, transport.NewSMSTransport(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber))

	// Content generation falls back to deterministic templates when no
	// OpenAI key is configured.
	var provider content.Provider
	if cfg.OpenAIAPIKey != "" {
		provider = content.NewAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIModel, appLog)
		appLog.Info("AI content generation enabled", "model", cfg.OpenAIModel)
	} else {
		provider = content.NewFallbackProvider()
		appLog.Info("AI content generation disabled, using fallback templates")
	}

	prometheusMetrics := metrics.New()

	worker := dispatch.NewWorker(
		table, leadStore, touchStore, eventStore,
		registry, caps, window, provider,
		prometheusMetrics, appLog,
	)

	redisQueue := queue.NewRedisQueue(redisClient.Redis)
	consumer := queue.NewConsumer(redisQueue, cfg.JobMaxRetries, worker.OnJobFailure, appLog)
	worker.Register(consumer)

	// Expose worker metrics and liveness on a side port.
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	metricsServer := &http.Server{Addr: ":9090", Handler: mux}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Error("metrics server failed", "error", err)
		}
	}()

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appLog.Info("consuming dispatch queues",
		"chat_workers", cfg.ChatWorkers,
		"email_workers", cfg.EmailWorkers,
		"sms_workers", cfg.SMSWorkers,
		"max_retries", cfg.JobMaxRetries,
	)
	consumer.Run(runCtx)

	appLog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		appLog.Error("metrics server shutdown failed", "error", err)
	}
	appLog.Info("worker stopped")
}
