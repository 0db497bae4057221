package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-lifecycle/internal/config"
	"github.com/ariefcatur/go-order-lifecycle/internal/inventory"
	kafkax "github.com/ariefcatur/go-order-lifecycle/internal/kafka"
	"github.com/ariefcatur/go-order-lifecycle/internal/logger"
	"github.com/ariefcatur/go-order-lifecycle/internal/orders"
	"github.com/ariefcatur/go-order-lifecycle/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	lg, err := logger.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		lg.Fatal("redis ping", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}

	svc := &inventory.Service{
		Cache:       redisx.NewCache(rdb),
		Logger:      lg.Named("inventory"),
		ServiceName: cfg.ServiceName + "-inventory",
	}

	// Consumer: event yang mengubah stok
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.InventoryGroup, orders.StockTopics, cfg.InventoryWorkers, lg.Named("kafka"))
	lg.Info("inventory consumer started",
		zap.String("group", cfg.InventoryGroup),
		zap.Strings("topics", orders.StockTopics),
		zap.Int("workers", cfg.InventoryWorkers),
	)
	if err := cons.Start(ctx, svc.HandleStockEvent); err != nil {
		lg.Error("consumer exit", zap.Error(err))
	}
	lg.Info("inventory consumer stopped")
}
