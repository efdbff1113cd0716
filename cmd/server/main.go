package main

import (
	"context"
	"errors"
	"fleet-ops-service/internal/adapters/distance"
	"fleet-ops-service/internal/adapters/events"
	"fleet-ops-service/internal/adapters/repositories"
	"fleet-ops-service/internal/api"
	"fleet-ops-service/internal/config"
	"fleet-ops-service/internal/domain"
	"fleet-ops-service/internal/platform/db"
	"fleet-ops-service/internal/platform/logging"
	"fleet-ops-service/internal/platform/metrics"
	"fleet-ops-service/internal/ports"
	"fleet-ops-service/internal/services"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type stores interface {
	ports.RouteStore
	ports.CapacityStore
}

// main is the application composition root.
// It wires concrete adapters (Postgres or memory, event buses) behind ports and starts the HTTP server.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.New(cfg.Production)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	sink, closers, err := openSinks(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				logger.Warn("close event sink", zap.Error(err))
			}
		}
	}()

	bridge := services.NewNotificationBridge(sink, logger.Named("bridge"), m, cfg.NotifyTimeout)
	// Runs before sinks close so queued events are flushed.
	defer bridge.Close()

	provider, err := distance.NewHaversineProvider(cfg.AverageSpeedKmh)
	if err != nil {
		return err
	}

	router := api.NewRouter(api.Deps{
		Optimizer: services.NewRouteOptimizer(provider, logger.Named("optimizer"), m),
		Lifecycle: services.NewRouteLifecycle(store, bridge, logger.Named("routes"), m, cfg.StoreTimeout),
		Ledger:    services.NewCapacityLedger(store, bridge, logger.Named("capacity"), m, cfg.StoreTimeout),
		Relay:     services.NewLocationRelay(bridge),
		Logger:    logger.Named("http"),
		Metrics:   m,
		Gatherer:  reg,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.KafkaDeliveryTopic != "" {
		consumer := events.NewDeliveryQueuedConsumer(cfg.KafkaBrokers, cfg.KafkaDeliveryTopic, cfg.KafkaGroupID, logger.Named("delivery-consumer"))
		g.Go(func() error {
			defer consumer.Close()
			return consumer.Run(gctx, logDeliveryQueued(logger))
		})
	}

	return g.Wait()
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (stores, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory store")
		return repositories.NewMemoryStore(), func() {}, nil
	}

	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := repositories.InitSchema(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, nil, err
	}

	return repositories.NewPostgresStore(conn), func() { _ = conn.Close() }, nil
}

func openSinks(ctx context.Context, cfg config.Config, logger *zap.Logger) (ports.NotificationSink, []io.Closer, error) {
	var (
		sinks   []ports.NotificationSink
		closers []io.Closer
	)

	for _, bus := range cfg.EventBuses {
		switch bus {
		case "log":
			sinks = append(sinks, events.NewLogSink(logger.Named("events")))
		case "redis":
			s := events.NewRedisSink(cfg.RedisAddr)
			if err := s.Ping(ctx); err != nil {
				_ = s.Close()
				closeAll(closers)
				return nil, nil, err
			}
			sinks = append(sinks, s)
			closers = append(closers, s)
		case "kafka":
			s := events.NewKafkaSink(cfg.KafkaBrokers)
			sinks = append(sinks, s)
			closers = append(closers, s)
		case "amqp":
			s, err := events.NewAMQPSink(cfg.AMQPURL, cfg.AMQPExchange)
			if err != nil {
				closeAll(closers)
				return nil, nil, err
			}
			sinks = append(sinks, s)
			closers = append(closers, s)
		}
		logger.Info("event bus enabled", zap.String("bus", bus))
	}

	if len(sinks) == 1 {
		return sinks[0], closers, nil
	}
	return events.NewMultiSink(sinks...), closers, nil
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		_ = c.Close()
	}
}

// logDeliveryQueued records delivery-queued events. Re-planning is left to
// the dispatcher that owns the route.
func logDeliveryQueued(logger *zap.Logger) events.DeliveryQueuedHandler {
	return func(ctx context.Context, ev domain.DeliveryQueued) error {
		logger.Info("delivery queued",
			zap.String("delivery_id", ev.DeliveryID),
			zap.String("order_id", ev.OrderID),
			zap.Float64("lat", ev.DeliveryCoordinates.Lat),
			zap.Float64("lng", ev.DeliveryCoordinates.Lng),
		)
		return nil
	}
}
