package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/topproz/leadchat/internal/api/router"
	appconfig "github.com/topproz/leadchat/internal/config"
	"github.com/topproz/leadchat/internal/crm"
	"github.com/topproz/leadchat/internal/flowapi"
	"github.com/topproz/leadchat/internal/observability/metrics"
	"github.com/topproz/leadchat/internal/session"
	"github.com/topproz/leadchat/internal/transcript"
	"github.com/topproz/leadchat/internal/webchat"
	"github.com/topproz/leadchat/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting leadchat widget engine",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	flowClient := flowapi.NewClient(cfg.FlowNewCustomerURL, cfg.FlowExistingCustomerURL,
		flowapi.WithHTTPClient(httpClient),
		flowapi.WithLogger(logger),
	)
	crmClient := crm.NewClient(cfg.CRMBaseURL,
		crm.WithHTTPClient(httpClient),
		crm.WithLogger(logger),
	)

	var store *transcript.Store
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		client := redis.NewClient(opts)
		if err := client.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis unreachable, transcript mirror disabled", "addr", cfg.RedisAddr, "error", err)
		} else {
			store = transcript.NewStore(client, cfg.TranscriptTTL)
			logger.Info("transcript mirror enabled", "addr", cfg.RedisAddr, "ttl", cfg.TranscriptTTL)
		}
	}

	chatMetrics := metrics.NewChatMetrics(prometheus.DefaultRegisterer)

	widgetJS, err := os.ReadFile("web/widget.js")
	if err != nil {
		logger.Warn("widget bundle not found, /widget.js will serve empty", "error", err)
	}

	factory := func(identity session.Identity) webchat.Controller {
		return session.NewController(session.Config{
			Flow:     flowClient,
			CRM:      crmClient,
			Store:    store,
			Identity: identity,
			Logger:   logger,
			Metrics:  chatMetrics,
		})
	}
	widgetHandler := webchat.NewHandler(factory, widgetJS, logger)

	r := router.New(&router.Config{
		Logger:         logger,
		WidgetHandler:  widgetHandler,
		MetricsHandler: promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
