package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"moneybot/internal/amqp"
	"moneybot/internal/cli"
	apphttp "moneybot/internal/http"
	applog "moneybot/internal/log"
	"moneybot/internal/middleware/ratelimit"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentApp, nil)

	res := cli.InitBackend(context.Background(), logger, cfg)
	bot, cacheManager := cli.NewBotService(cfg, res, logger)

	var (
		amqpClient *amqp.Client
		enqueuer   apphttp.Enqueuer
	)
	if cfg.QueueEnabled() {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPInboundQueue, cfg.AMQPReplyQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		enqueuer = amqpClient
		logger.Info("Webhook messages will be queued", "queue", cfg.AMQPInboundQueue)
	}

	limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute})
	srv := apphttp.NewServer(":"+cfg.Port, bot, apphttp.Options{
		Limiter:        limiter,
		Enqueuer:       enqueuer,
		TrustedProxies: cfg.TrustedProxies,
		Logger:         logger.WithComponent(applog.ComponentHTTP),
	})

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = cfg.BackendTimeout + 20*time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, stop, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", applog.FieldError, err)
			}
		}
		if res.Cleanup != nil {
			if err := res.Cleanup(); err != nil {
				logger.Warn("Backend cleanup error", applog.FieldError, err)
			}
		}
	})

	if cacheManager != nil {
		go cacheManager.Run(ctx, cfg.ReferenceCacheTTL)
	}

	logger.Info("Starting moneybot server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"queued", cfg.QueueEnabled())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		stop()
		<-done
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}
