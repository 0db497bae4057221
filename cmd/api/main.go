package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-lifecycle/internal/config"
	"github.com/ariefcatur/go-order-lifecycle/internal/httpx"
	kafkax "github.com/ariefcatur/go-order-lifecycle/internal/kafka"
	"github.com/ariefcatur/go-order-lifecycle/internal/logger"
	"github.com/ariefcatur/go-order-lifecycle/internal/memstore"
	"github.com/ariefcatur/go-order-lifecycle/internal/metrics"
	"github.com/ariefcatur/go-order-lifecycle/internal/orders"
	"github.com/ariefcatur/go-order-lifecycle/internal/postgres"
	"github.com/ariefcatur/go-order-lifecycle/internal/reclaim"
	"github.com/ariefcatur/go-order-lifecycle/internal/redisx"
	"github.com/ariefcatur/go-order-lifecycle/internal/telemetry"
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

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.ServiceName, cfg.Env, cfg.OtelEndpoint)
	if err != nil {
		lg.Fatal("tracer init", zap.Error(err))
	}

	// Store
	store, closeStore, err := openStore(ctx, cfg, lg)
	if err != nil {
		lg.Fatal("store init", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer closeStore()

	// Redis (opsional): status cache, product cache, reclaim journal
	var (
		rdb   *redis.Client
		cache *redisx.Cache
	)
	schedOpts := []reclaim.Option{reclaim.WithDelay(cfg.ReclaimDelay), reclaim.WithWorkers(cfg.ReclaimWorkers)}
	if cfg.RedisAddr != "" {
		rdb = redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		if err := redisx.Ping(ctx, rdb); err != nil {
			lg.Warn("redis not reachable, cache and journal degraded", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		cache = redisx.NewCache(rdb)
		schedOpts = append(schedOpts, reclaim.WithJournal(redisx.NewReclaimJournal(rdb)))
	}

	sched := reclaim.NewScheduler(lg.Named("reclaim"), schedOpts...)
	if n, err := sched.Restore(ctx); err != nil {
		lg.Warn("reclaim journal restore failed", zap.Error(err))
	} else if n > 0 {
		lg.Info("pending reclamations restored", zap.Int("count", n))
	}

	m := metrics.New()
	m.PendingReclamations(sched.Len)

	svcOpts := []orders.Option{}
	if cache != nil {
		svcOpts = append(svcOpts, orders.WithStatusCache(cache), orders.WithProductCache(cache))
	}

	// Kafka producer
	var (
		prod *kafkax.Producer
		pub  orders.Publisher
	)
	if cfg.KafkaEnabled {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, 1024, lg.Named("kafka"))
		prod.Start(context.Background())
		pub = kafkax.NewPublisher(prod, cfg.ServiceName)
	}
	svcOpts = append(svcOpts, orders.WithPublisher(m.CountEvents(pub)))

	svc := orders.NewService(store, sched, lg.Named("orders"), svcOpts...)

	schedCtx, stopSched := context.WithCancel(context.Background())
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		sched.Run(schedCtx, svc.ReclaimAbandoned)
	}()

	// Handlers
	oh := &httpx.OrdersHandler{Service: svc, Logger: lg}
	ph := &httpx.ProductsHandler{Service: svc, Logger: lg}
	if cache != nil {
		oh.Cache = cache
		ph.Cache = cache
	}
	rh := &httpx.ReclamationsHandler{Scheduler: sched}

	router := httpx.NewRouter(lg.Named("http"), m.Middleware)
	router.Handle("/metrics", m.Handler())
	router.Route("/api", func(r chi.Router) {
		oh.Register(r)
		ph.Register(r)
		rh.Register(r)
	})

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		lg.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("listen", zap.Error(err))
			stop()
		}
	}()

	// wait signal
	<-ctx.Done()
	lg.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		lg.Warn("http shutdown", zap.Error(err))
	}

	stopSched()
	<-schedDone // tunggu reclaim yang sedang jalan

	if prod != nil {
		prod.Close()      // stop inbox -> flush & close writer
		prod.WaitClosed() // drain
	}
	if err := shutdownTracer(ctx2); err != nil {
		lg.Warn("tracer shutdown", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg config.Config, lg *zap.Logger) (orders.Store, func(), error) {
	if cfg.StoreDriver == "memory" {
		lg.Warn("using in-memory store, data is lost on restart")
		return memstore.New(), func() {}, nil
	}
	if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
		return nil, nil, err
	}
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
	if err != nil {
		return nil, nil, err
	}
	return postgres.NewStore(db, lg.Named("postgres")), db.Close, nil
}
