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

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/myclarix/lumina/cmd/mainconfig"
	"github.com/myclarix/lumina/internal/api/router"
	"github.com/myclarix/lumina/internal/app/bootstrap"
	"github.com/myclarix/lumina/internal/appointments"
	"github.com/myclarix/lumina/internal/channels/whatsapp"
	appconfig "github.com/myclarix/lumina/internal/config"
	"github.com/myclarix/lumina/internal/dialog"
	"github.com/myclarix/lumina/internal/http/handlers"
	"github.com/myclarix/lumina/internal/observability/metrics"
	"github.com/myclarix/lumina/internal/telemetry"
	"github.com/myclarix/lumina/internal/webchat"
	"github.com/myclarix/lumina/pkg/logging"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.NewWithFormat(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	logger.Info("starting Lumina API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}

	// Create HTTP server. WriteTimeout stays 0 so chat websockets are not cut.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	a.close()

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

type app struct {
	handler http.Handler
	cleanup []func()
}

func (a *app) close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
}

// buildApp wires every backend named by cfg into the HTTP handler.
func buildApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*app, error) {
	a := &app{}
	fail := func(err error) (*app, error) {
		a.close()
		return nil, err
	}

	metricsHandler, dialogMetrics, messagingMetrics := setupMetrics()

	var awsCfg *aws.Config
	if bootstrap.NeedsAWS(cfg) {
		loaded, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return fail(fmt.Errorf("load aws config: %w", err))
		}
		awsCfg = &loaded
	}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		a.cleanup = append(a.cleanup, func() { _ = redisClient.Close() })
	}

	states, err := bootstrap.BuildStateStore(cfg, redisClient, logger)
	if err != nil {
		return fail(err)
	}
	a.cleanup = append(a.cleanup, func() { _ = states.Close() })

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	if pool != nil {
		a.cleanup = append(a.cleanup, pool.Close)
	}
	sqlDB, err := bootstrap.BuildSQLDB(cfg)
	if err != nil {
		return fail(err)
	}
	if sqlDB != nil {
		a.cleanup = append(a.cleanup, func() { _ = sqlDB.Close() })
	}

	var dynamoClient *dynamodb.Client
	if awsCfg != nil && cfg.AppointmentBackend == "dynamodb" {
		dynamoClient = dynamodb.NewFromConfig(*awsCfg)
	}
	repo, err := bootstrap.BuildAppointmentRepository(cfg, pool, dynamoClient, logger)
	if err != nil {
		return fail(err)
	}

	llmClient, closeLLM, err := bootstrap.BuildLLMClient(ctx, cfg, awsCfg, logger)
	if err != nil {
		return fail(err)
	}
	a.cleanup = append(a.cleanup, closeLLM)

	analytics := bootstrap.BuildAnalytics(cfg, logger)
	a.cleanup = append(a.cleanup, analytics.Wait)

	engine := dialog.NewEngine(states, repo, dialog.Options{
		Replier:     bootstrap.BuildReplier(llmClient, logger),
		Emitter:     analytics.Emitter,
		Metrics:     dialogMetrics,
		Logger:      logger,
		DefaultHour: cfg.DefaultAppointmentHour,
	})

	adminDB := sqlDB
	if cfg.AppointmentBackend != "postgres" {
		adminDB = nil
	}

	var deduper whatsapp.Deduper = whatsapp.NewMemoryDeduper(whatsapp.DefaultDedupeTTL)
	if redisClient != nil {
		deduper = whatsapp.NewRedisDeduper(redisClient, whatsapp.DefaultDedupeTTL)
	}

	stopLimiter := make(chan struct{})
	a.cleanup = append(a.cleanup, func() { close(stopLimiter) })

	a.handler = router.New(&router.Config{
		Logger:       logger,
		Env:          cfg.Env,
		Appointments: appointments.NewHandler(repo, states, logger),
		Chat:         webchat.NewHandler(engine, bootstrap.BuildTranscriptStore(redisClient), messagingMetrics, logger),
		GA4:          telemetry.NewHandler(analytics.Sender(), logger),
		WhatsApp: whatsapp.NewWebhookHandler(
			cfg.MetaVerifyToken,
			cfg.MetaAppSecret,
			engine,
			whatsapp.NewClient(cfg.WhatsAppAccessToken, cfg.WhatsAppPhoneNumberID, logger),
			messagingMetrics,
			logger,
		).WithDeduper(deduper),
		AdminAppointments:  handlers.NewAdminAppointmentsHandler(adminDB, repo, logger),
		AdminJWTSecret:     cfg.AdminJWTSecret,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
		Stop:               stopLimiter,
	})
	return a, nil
}

// setupMetrics registers the app collectors on a private registry.
func setupMetrics() (http.Handler, *metrics.DialogMetrics, *metrics.MessagingMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return handler, metrics.NewDialogMetrics(reg), metrics.NewMessagingMetrics(reg)
}
