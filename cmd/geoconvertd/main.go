package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mohammed-shakir/geoconvert/internal/cache"
	"github.com/mohammed-shakir/geoconvert/internal/cache/lrustore"
	"github.com/mohammed-shakir/geoconvert/internal/cache/redisstore"
	"github.com/mohammed-shakir/geoconvert/internal/core/config"
	"github.com/mohammed-shakir/geoconvert/internal/core/health"
	"github.com/mohammed-shakir/geoconvert/internal/core/observability"
	"github.com/mohammed-shakir/geoconvert/internal/core/router"
	"github.com/mohammed-shakir/geoconvert/internal/core/server"
	"github.com/mohammed-shakir/geoconvert/internal/logger"
	"github.com/mohammed-shakir/geoconvert/internal/metrics"
	"github.com/mohammed-shakir/geoconvert/internal/opevents"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", os.Getenv("GEOCONVERT_CONFIG"), "optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("config", "err", err)
		return 2
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Component: "geoconvertd",
		Version:   Version,
	}, os.Stdout)

	appLog := logger.NewSlog(&zl)

	observability.ExposeBuildInfo(Version)
	appLog.Info("starting geoconvertd",
		"addr", cfg.Addr,
		"version", Version,
		"cache", cfg.Cache.Driver,
		"events", cfg.Events.Enabled)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openCache(ctx, cfg)
	if err != nil {
		appLog.Error("cache setup failed", "driver", cfg.Cache.Driver, "err", err)
		return 1
	}
	defer closeStore()

	var sink opevents.Sink = opevents.Nop{}
	if cfg.Events.Enabled {
		pub, err := opevents.NewKafka(cfg.Events.BrokerList(), cfg.Events.Topic, cfg.Events.QueueSize, appLog)
		if err != nil {
			appLog.Error("event publisher setup failed", "err", err)
			return 1
		}
		defer func() {
			if err := pub.Close(); err != nil {
				appLog.Warn("event publisher close", "err", err)
			}
		}()
		sink = pub
	}

	if cfg.Metrics.Enabled {
		startMetrics(ctx, cfg, appLog)
	}

	geo := router.NewGeoOps(appLog, cfg, store, sink)
	checks := []health.Check{{
		Name: "cache",
		Fn: func(ctx context.Context) error {
			_, _, err := store.Get(ctx, "gc:v1:readyz")
			return err
		},
	}}

	if err := server.Run(ctx, cfg, appLog, server.NewHandler(appLog, geo, checks...)); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

func openCache(ctx context.Context, cfg config.Config) (cache.Interface, func(), error) {
	switch cfg.Cache.Driver {
	case "lru":
		s, err := lrustore.New(cfg.Cache.LRUSize)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	case "redis":
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		c, err := redisstore.New(dialCtx, cfg.Cache.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		return c, func() { _ = c.Close() }, nil
	default:
		return cache.Noop{}, func() {}, nil
	}
}

func startMetrics(ctx context.Context, cfg config.Config, log *slog.Logger) {
	p := metrics.Init(metrics.Config{
		Enabled: true,
		Addr:    cfg.Metrics.Addr,
		Path:    cfg.Metrics.Path,
		Build: metrics.BuildInfo{
			Version:   Version,
			Revision:  os.Getenv("BUILD_REVISION"),
			Branch:    os.Getenv("BUILD_BRANCH"),
			BuildDate: os.Getenv("BUILD_DATE"),
		},
	}, observability.Collectors()...)

	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, p.Handler())

	srv := &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info("metrics listen", "addr", cfg.Metrics.Addr, "path", cfg.Metrics.Path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server exited", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("metrics shutdown", "err", err)
		}
	}()
}
