package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/boddenberg/finops-assistant-go/internal/app"
	"github.com/boddenberg/finops-assistant-go/internal/bot"
	"github.com/boddenberg/finops-assistant-go/internal/config"
	"github.com/boddenberg/finops-assistant-go/internal/infra/observability"
)

func main() {
	_ = config.LoadDotEnv(".env")
	cfg := config.Load()

	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	if cfg.DiscordBotToken == "" {
		logger.Fatal("DISCORD_BOT_TOKEN is required")
	}

	shutdown, err := observability.InitTracer(context.Background(), "finops-bot", cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	a, err := app.New(context.Background(), cfg, observability.NewMetrics(), logger)
	if err != nil {
		logger.Fatal("failed to wire services", zap.Error(err))
	}
	defer a.Close()

	b, err := bot.New(cfg.DiscordBotToken, cfg.DiscordChannelID, a.Questions, a.Reports, logger)
	if err != nil {
		logger.Fatal("failed to create bot", zap.Error(err))
	}
	if err := b.Start(); err != nil {
		logger.Fatal("failed to start bot", zap.Error(err))
	}
	defer b.Stop()

	logger.Info("bot running", zap.String("channel_id", cfg.DiscordChannelID))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("bot shutting down...")
}
