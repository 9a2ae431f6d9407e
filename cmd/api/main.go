package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-realtime-holds/internal/catalog"
	"github.com/ariefcatur/go-realtime-holds/internal/config"
	"github.com/ariefcatur/go-realtime-holds/internal/httpx"
	kafkax "github.com/ariefcatur/go-realtime-holds/internal/kafka"
	"github.com/ariefcatur/go-realtime-holds/internal/metrics"
	"github.com/ariefcatur/go-realtime-holds/internal/observability"
	"github.com/ariefcatur/go-realtime-holds/internal/persist"
	"github.com/ariefcatur/go-realtime-holds/internal/postgres"
	"github.com/ariefcatur/go-realtime-holds/internal/redisx"
	"github.com/ariefcatur/go-realtime-holds/internal/reservations"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		// logger not configured yet
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := observability.NewLogger(cfg.ServiceName, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.ServiceName, cfg.OtelEndpoint)
	if err != nil {
		log.Fatal("tracing setup", zap.Error(err))
	}

	// Postgres, only if something needs it
	var db *pgxpool.Pool
	if cfg.NeedsPostgres() {
		db, err = postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatal("db connect", zap.Error(err))
		}
		defer db.Close()
	}

	cat := catalog.Default()
	if cfg.CatalogSource == config.CatalogPostgres {
		if err := postgres.EnsureCatalog(ctx, db, cat.List()); err != nil {
			log.Fatal("ensure catalog", zap.Error(err))
		}
		if cat, err = catalog.Load(ctx, db); err != nil {
			log.Fatal("load catalog", zap.Error(err))
		}
	}
	log.Info("catalog ready", zap.String("source", cfg.CatalogSource), zap.Int("items", cat.Len()))

	backend, err := openBackend(ctx, cfg, db)
	if err != nil {
		log.Fatal("storage backend", zap.Error(err))
	}
	clock := clockwork.NewRealClock()
	mirror := persist.NewMirror(backend, clock, log.Named("persist"))

	// Service, mirror and producer outlive the signal context so that
	// requests still in flight during shutdown are persisted and published.
	bg := context.Background()

	var svc *reservations.Service
	collector := metrics.New(prometheus.DefaultRegisterer, func() int { return svc.Live() })
	notifiers := reservations.Notifiers{collector}

	var prod *kafkax.Producer
	if cfg.KafkaEnabled() {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, cfg.EventsTopic, 1024, log.Named("kafka"))
		prod.Start(bg)
		notifiers = append(notifiers, kafkax.NewPublisher(prod, cfg.ServiceName))
	}

	svc, err = reservations.NewService(reservations.Deps{
		Catalog:  cat,
		Clock:    clock,
		TTL:      cfg.HoldTTL,
		Mirror:   mirror,
		Notifier: notifiers,
		Logger:   log.Named("reservations"),
	})
	if err != nil {
		log.Fatal("reservation service", zap.Error(err))
	}

	restored := svc.Restore(mirror.Load(ctx))
	log.Info("reservations restored", zap.Int("count", restored), zap.String("backend", cfg.StorageBackend))
	svc.Start(bg)
	mirror.Start(bg)

	router := httpx.NewRouter(log.Named("http"))
	router.Handle("/metrics", metrics.Handler(prometheus.DefaultGatherer))
	(&httpx.HoldsHandler{Holds: svc}).Register(router)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	if err := g.Wait(); err != nil {
		log.Error("http server", zap.Error(err))
	}

	svc.Close()
	mirror.Close()
	if prod != nil {
		prod.Close()
		prod.WaitClosed()
	}
	tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(tctx); err != nil {
		log.Warn("tracing shutdown", zap.Error(err))
	}
}

func openBackend(ctx context.Context, cfg config.Config, db *pgxpool.Pool) (persist.Backend, error) {
	switch cfg.StorageBackend {
	case config.BackendRedis:
		rdb := redisx.New(cfg.RedisAddr)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, err
		}
		return persist.NewRedisBackend(rdb), nil
	case config.BackendPostgres:
		pb := &persist.PostgresBackend{DB: db}
		if err := pb.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return pb, nil
	case config.BackendMemory:
		return persist.NewMemoryBackend(), nil
	default:
		return persist.NewFileBackend(cfg.StateDir), nil
	}
}
