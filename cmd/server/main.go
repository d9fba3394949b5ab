package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiwari-pos/restaurant-ops/internal/config"
	"github.com/kiwari-pos/restaurant-ops/internal/demo"
	"github.com/kiwari-pos/restaurant-ops/internal/lock"
	"github.com/kiwari-pos/restaurant-ops/internal/logging"
	"github.com/kiwari-pos/restaurant-ops/internal/notify"
	"github.com/kiwari-pos/restaurant-ops/internal/router"
	"github.com/kiwari-pos/restaurant-ops/internal/service"
	"github.com/kiwari-pos/restaurant-ops/internal/store"
	"github.com/kiwari-pos/restaurant-ops/internal/store/memory"
	"github.com/kiwari-pos/restaurant-ops/internal/ws"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Store
	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// Per-order lock
	locker, closeLocker, err := openLocker(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLocker()

	// Notifications: websocket clients always, brokers when configured
	hub := ws.NewHub(logger)
	publishers := notify.Fanout{hub}
	var closers []io.Closer
	if len(cfg.KafkaBrokers) > 0 {
		k, err := notify.NewKafka(notify.KafkaOptions{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic}, logger)
		if err != nil {
			return fmt.Errorf("kafka publisher: %w", err)
		}
		publishers = append(publishers, k)
		closers = append(closers, k)
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("kafka notifications enabled")
	}
	if cfg.AMQPURL != "" {
		a, err := notify.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			return fmt.Errorf("amqp publisher: %w", err)
		}
		publishers = append(publishers, a)
		closers = append(closers, a)
		logger.Info().Str("exchange", cfg.AMQPExchange).Msg("amqp notifications enabled")
	}
	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				logger.Warn().Err(err).Msg("close publisher")
			}
		}
	}()

	svc := service.NewOrchestrator(st, locker, publishers, logger)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.New(cfg, svc, hub, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Str("store", cfg.StoreDriver).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (service.Store, func(), error) {
	if cfg.StoreDriver == config.DriverMemory {
		st := memory.New()
		rid := uuid.New()
		if _, err := demo.Seed(ctx, demo.Memory(st), rid); err != nil {
			return nil, nil, fmt.Errorf("seed memory store: %w", err)
		}
		logger.Warn().Str("restaurant_id", rid.String()).Msg("using in-memory store with demo data; state is lost on exit")
		return st, func() {}, nil
	}

	if err := store.Migrate(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return nil, nil, err
	}
	logger.Info().Str("dir", cfg.MigrationsDir).Msg("migrations applied")

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info().Msg("connected to database")
	return store.New(pool, cfg.StoreTimeout), pool.Close, nil
}

func openLocker(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (lock.Locker, func(), error) {
	if cfg.RedisAddr == "" {
		return lock.NewLocal(), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.Info().Str("addr", cfg.RedisAddr).Msg("using redis order locks")
	return lock.NewRedis(client, lock.RedisOptions{TTL: cfg.LockTTL}, logger), func() { client.Close() }, nil
}
