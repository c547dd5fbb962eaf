package main

// @title DealerReach API
// @version 1.0
// @description Lead reactivation engine for car dealerships: campaigns, compliance-gated outreach and conversation handoff.

// @host localhost:8080
// @BasePath /api/v1

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dealerreach/backend/config"
	"github.com/dealerreach/backend/pkg/api/handlers"
	"github.com/dealerreach/backend/pkg/cache"
	"github.com/dealerreach/backend/pkg/cadence"
	"github.com/dealerreach/backend/pkg/campaigns"
	"github.com/dealerreach/backend/pkg/compliance"
	"github.com/dealerreach/backend/pkg/conversations"
	"github.com/dealerreach/backend/pkg/dnc"
	"github.com/dealerreach/backend/pkg/domain"
	"github.com/dealerreach/backend/pkg/jobs"
	"github.com/dealerreach/backend/pkg/leads"
	"github.com/dealerreach/backend/pkg/logger"
	"github.com/dealerreach/backend/pkg/metrics"
	custommw "github.com/dealerreach/backend/pkg/middleware"
	"github.com/dealerreach/backend/pkg/queue"
	"github.com/dealerreach/backend/pkg/scheduler"
	"github.com/dealerreach/backend/pkg/settings"
	"github.com/dealerreach/backend/pkg/slack"
	"github.com/dealerreach/backend/pkg/store"
	"github.com/dealerreach/backend/pkg/tracking"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on OS environment variables")
	}

	cfg := config.Load()
	appLog := logger.New(cfg.LogLevel, cfg.LogFormat)
	appLog.Info("configuration loaded", "environment", cfg.APIEnvironment)

	// Sentry error tracking.
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			TracesSampleRate: 1.0,
			AttachStacktrace: true,
		})
		if err != nil {
			appLog.Warn("failed to initialize sentry", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Database.
	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		appLog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	// Redis, shared by the cache, the settings resolver and the queue.
	redisClient, err := cache.NewClient(cfg.RedisURL)
	if err != nil {
		appLog.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// Stores.
	leadStore := store.NewLeadStore(db)
	campaignStore := store.NewCampaignStore(db)
	touchStore := store.NewTouchStore(db)
	eventStore := store.NewTouchEventStore(db)
	conversationStore := store.NewConversationStore(db)
	dncStore := store.NewDNCStore(db)
	settingStore := store.NewSettingStore(db)

	// Compliance configuration, with runtime overrides layered over env
	// defaults.
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

	registry := dnc.NewRegistry(leadStore, dncStore)
	catalog := cadence.NewCatalog(resolver)

	// Queue producer side; the consumer lives in the worker process.
	redisQueue := queue.NewRedisQueue(redisClient.Redis)

	prometheusMetrics := metrics.New()

	// Slack, optional.
	var slackService *slack.Service
	if cfg.SlackWebhookURL != "" {
		slackService = slack.NewService(slack.NewWebhookClient(cfg.SlackWebhookURL))
		appLog.Info("slack notifications enabled")
	}
	var handoffNotifier domain.HandoffNotifier
	if slackService != nil {
		handoffNotifier = slackService
	}

	// Services.
	schedulerService := scheduler.NewService(leadStore, touchStore, eventStore, catalog, registry, window, redisQueue, appLog)
	trackerService := tracking.NewService(touchStore, eventStore, leadStore, appLog)
	conversationService := conversations.NewService(
		leadStore, conversationStore, touchStore,
		trackerService, schedulerService, handoffNotifier,
		prometheusMetrics, cfg.DefaultPhoneRegion, appLog,
	)
	campaignService := campaigns.NewService(campaignStore, touchStore, leadStore, schedulerService, appLog)
	leadService := leads.NewService(leadStore, touchStore, eventStore, dncStore, schedulerService, cfg.DefaultPhoneRegion, appLog)

	// Periodic sweeps.
	var sweeper *jobs.Sweeper
	if slackService != nil {
		sweeper = jobs.NewSweeper(campaignStore, touchStore, registry, schedulerService, campaignService, slackService, appLog)
	} else {
		sweeper = jobs.NewSweeper(campaignStore, touchStore, registry, schedulerService, campaignService, nil, appLog)
	}
	cronManager := jobs.NewCronManager(sweeper, appLog)
	if err := cronManager.SetupJobs(); err != nil {
		appLog.Error("failed to setup cron jobs", "error", err)
		os.Exit(1)
	}
	cronManager.Start()

	// Handlers.
	dedupCache := cache.NewDedupCache(redisClient, 24*time.Hour)
	campaignHandler := handlers.NewCampaignHandler(campaignService)
	leadHandler := handlers.NewLeadHandler(leadService)
	conversationHandler := handlers.NewConversationHandler(conversationService)
	webhookHandler := handlers.NewWebhookHandler(
		trackerService, conversationService, dedupCache,
		cfg.WebhookSharedSecret, prometheusMetrics, appLog,
	)

	// Echo.
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			appLog.Info("request", "method", c.Request().Method, "uri", v.URI, "status", v.Status)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	if cfg.SentryDSN != "" {
		e.Use(sentryecho.New(sentryecho.Options{Repanic: true}))
	}
	e.Use(prometheusMetrics.Middleware())
	e.Use(middleware.CORSWithConfig(custommw.CORSConfig()))
	e.Use(middleware.Gzip())
	e.Use(middleware.Secure())

	// Health and metrics (public).
	e.GET("/health", func(c echo.Context) error {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(c.Request().Context()) != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status": "unhealthy", "database": "down",
			})
		}
		if err := redisClient.Redis.Ping(c.Request().Context()).Err(); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status": "unhealthy", "cache": "down",
			})
		}
		return c.JSON(http.StatusOK, map[string]any{
			"status": "healthy", "database": "up", "cache": "up",
		})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := e.Group("/api/v1")

	campaignsGroup := v1.Group("/campaigns")
	{
		campaignsGroup.POST("", campaignHandler.CreateCampaign)
		campaignsGroup.GET("", campaignHandler.ListCampaigns)
		campaignsGroup.GET("/:id", campaignHandler.GetCampaign)
		campaignsGroup.POST("/:id/activate", campaignHandler.ActivateCampaign)
		campaignsGroup.POST("/:id/pause", campaignHandler.PauseCampaign)
		campaignsGroup.POST("/:id/cancel", campaignHandler.CancelCampaign)
		campaignsGroup.POST("/:id/complete", campaignHandler.CompleteCampaign)
	}

	leadsGroup := v1.Group("/leads")
	{
		leadsGroup.POST("/dnc/import", leadHandler.ImportDNC)
		leadsGroup.POST("/:id/opt-out", leadHandler.OptOutLead)
		leadsGroup.POST("/:id/dnc", leadHandler.AddLeadToDNC)
		leadsGroup.POST("/:id/promote", leadHandler.PromoteLead)
		leadsGroup.GET("/:id/timeline", leadHandler.GetLeadTimeline)
	}

	conversationsGroup := v1.Group("/conversations")
	{
		conversationsGroup.GET("/:id", conversationHandler.GetConversation)
		conversationsGroup.POST("/:id/escalate", conversationHandler.EscalateConversation)
		conversationsGroup.POST("/:id/close", conversationHandler.CloseConversation)
	}

	// Providers retry on 429, so throttling here only sheds abuse.
	webhookRateLimiter := custommw.NewRateLimiter(600, 100)
	webhooksGroup := e.Group("/webhooks", webhookRateLimiter.RateLimitMiddleware())
	{
		webhooksGroup.GET("/whatsapp", webhookHandler.VerifyWhatsApp)
		webhooksGroup.POST("/whatsapp", webhookHandler.WhatsAppWebhook)
		webhooksGroup.POST("/sendgrid", webhookHandler.SendGridWebhook)
		webhooksGroup.POST("/twilio", webhookHandler.TwilioWebhook)
	}

	address := cfg.APIHost + ":" + cfg.APIPort
	appLog.Info("starting API server", "address", address)

	go func() {
		if err := e.Start(address); err != nil && err != http.ErrServerClosed {
			appLog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLog.Info("shutting down")
	cronManager.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLog.Error("forced shutdown", "error", err)
		os.Exit(1)
	}
	appLog.Info("server stopped")
}
