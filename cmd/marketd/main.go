package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ZilDuck/marketplace-settlement/internal/config"
	"github.com/ZilDuck/marketplace-settlement/internal/config/di"
	"github.com/ZilDuck/marketplace-settlement/internal/log"
	"go.uber.org/zap"
)

func main() {
	config.Init("marketd")
	defer log.Flush()

	container, err := di.NewContainer()
	if err != nil {
		zap.L().With(zap.Error(err)).Fatal("Failed to build container")
	}
	defer container.Delete()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	daemon := container.GetDaemon()
	if err := daemon.Restore(ctx); err != nil {
		zap.L().With(zap.Error(err)).Fatal("Failed to restore ledger")
	}
	if err := daemon.Bootstrap(ctx, config.Get().Market); err != nil {
		zap.L().With(zap.Error(err)).Fatal("Failed to bootstrap market")
	}

	zap.L().With(
		zap.String("programId", config.Get().ProgramId),
		zap.String("treasury", container.GetMarket().Treasury().String()),
		zap.Bool("devnet", config.Get().Devnet),
		zap.Bool("persistent", container.GetSnapshotter() != nil),
	).Info("Market Started")

	if err := daemon.Execute(ctx, config.Get().ApiPort); err != nil {
		zap.L().With(zap.Error(err)).Error("Market stopped")
	}
}
