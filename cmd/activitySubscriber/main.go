package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZilDuck/marketplace-settlement/internal/config"
	"github.com/ZilDuck/marketplace-settlement/internal/config/di"
	"github.com/ZilDuck/marketplace-settlement/internal/log"
	"github.com/ZilDuck/marketplace-settlement/internal/messenger"
	"go.uber.org/zap"
)

func main() {
	config.Init("activitySubscriber")
	defer log.Flush()

	container, err := di.NewContainer()
	if err != nil {
		zap.L().With(zap.Error(err)).Fatal("Failed to build container")
	}

	messageService := container.GetMessenger()
	elastic := container.GetElastic()
	if messageService == nil || elastic == nil {
		zap.L().Fatal("The subscriber needs both a messenger and elastic search")
	}
	if err := elastic.InstallMappings(); err != nil {
		zap.L().With(zap.Error(err)).Fatal("Failed to install mappings")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	activityIndexer := container.GetActivityIndexer()
	go activityIndexer.Run(ctx, 2*time.Second)

	zap.L().Info("Subscribing to activity")
	err = messageService.ConsumeMessages(ctx, messenger.ActivityItem, activityIndexer.IndexMessage)
	if err != nil && ctx.Err() == nil {
		zap.L().With(zap.Error(err)).Error("Activity subscription stopped")
	}

	if n := activityIndexer.Flush(); n > 0 {
		zap.L().With(zap.Int("count", n)).Info("Flushed activity")
	}
}
