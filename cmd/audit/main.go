package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-realtime-holds/internal/audit"
	"github.com/ariefcatur/go-realtime-holds/internal/config"
	kafkax "github.com/ariefcatur/go-realtime-holds/internal/kafka"
	"github.com/ariefcatur/go-realtime-holds/internal/observability"
	"github.com/ariefcatur/go-realtime-holds/internal/redisx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := observability.NewLogger(cfg.ServiceName+"-audit", cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	if !cfg.KafkaEnabled() {
		log.Fatal("KAFKA_BROKERS is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("redis ping", zap.Error(err))
	}

	svc := audit.NewService(rdb, log.Named("audit"))
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.AuditGroup, cfg.EventsTopic, cfg.AuditWorkers, log.Named("kafka"))

	log.Info("audit consumer started",
		zap.String("group", cfg.AuditGroup),
		zap.String("topic", cfg.EventsTopic),
		zap.Int("workers", cfg.AuditWorkers),
	)
	if err := cons.Start(ctx, svc.HandleEvent); err != nil {
		log.Error("consumer exit", zap.Error(err))
	}
	for _, id := range svc.Items() {
		log.Info("held at shutdown", zap.Int("item_id", id), zap.Int("held", svc.Held(id)))
	}
}
