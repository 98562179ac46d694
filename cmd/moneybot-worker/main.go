package main

import (
	"context"
	"os"

	"moneybot/internal/amqp"
	"moneybot/internal/cli"
	"moneybot/internal/config"
	applog "moneybot/internal/log"
	"moneybot/internal/worker"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentWorker, (*config.Config).ValidateWorker)
	logger.Info("Starting moneybot-worker", "backend", cfg.DataBackend)

	res := cli.InitBackend(context.Background(), logger, cfg)
	bot, cacheManager := cli.NewBotService(cfg, res, logger)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPInboundQueue, cfg.AMQPReplyQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}

	inbound := worker.NewInboundWorker(bot, amqpClient, amqpClient, logger.Logger)

	ctx, stop, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(shutdownCtx context.Context) {
		logger.Info("Shutting down worker...")
		if err := inbound.Stop(shutdownCtx); err != nil {
			logger.Warn("Worker stop error", applog.FieldError, err)
		}
		if err := amqpClient.Close(); err != nil {
			logger.Warn("AMQP close error", applog.FieldError, err)
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

	if err := inbound.Start(ctx); err != nil {
		logger.Error("Failed to start worker", applog.FieldError, err)
		stop()
		<-done
		os.Exit(1)
	}

	select {
	case <-ctx.Done():
	case <-inbound.Done():
		if err := inbound.Err(); err != nil && ctx.Err() == nil {
			logger.Error("Message consumption failed", applog.FieldError, err)
		}
		stop()
	}
	<-done
}
