package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"banking-core/pkg/accounts"
	"banking-core/pkg/api"
	"banking-core/pkg/cache"
	"banking-core/pkg/ledger"
	"banking-core/pkg/loan"
	"banking-core/pkg/logging"
	"banking-core/pkg/metrics"
	"banking-core/pkg/store"
)

func main() {
	logger, err := logging.FromEnv()
	if err != nil {
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// Datastore: PostgreSQL when configured, in-memory otherwise.
	var base store.Store
	if os.Getenv("PG_HOST") != "" {
		cfg := store.DefaultPostgresConfig()
		cfg.Host = os.Getenv("PG_HOST")
		if v := os.Getenv("PG_PORT"); v != "" {
			if port, err := strconv.Atoi(v); err == nil {
				cfg.Port = port
			}
		}
		if v := os.Getenv("PG_USER"); v != "" {
			cfg.User = v
		}
		if v := os.Getenv("PG_PASSWORD"); v != "" {
			cfg.Password = v
		}
		if v := os.Getenv("PG_DATABASE"); v != "" {
			cfg.Database = v
		}
		pg, err := store.NewPostgres(cfg)
		if err != nil {
			logger.Fatal("postgres init failed", zap.Error(err))
		}
		base = pg
		logger.Info("using postgres store", zap.String("host", cfg.Host), zap.String("database", cfg.Database))
	} else {
		base = store.NewMemory()
		logger.Warn("PG_HOST not set, using in-memory store")
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewPrometheus("banking", registry)

	st := store.NewResilient(base, store.DefaultBreakerConfig(), logger, collector)
	defer st.Close()

	var limits *ledger.LimitPolicy
	if v := os.Getenv("DAILY_LIMIT"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			limits = ledger.NewLimitPolicy(d)
		}
	}

	engine := ledger.NewEngine(st, limits, nil, logger, collector)
	loanSvc := loan.NewService(st, nil, logger, collector)
	accountSvc := accounts.NewService(st, nil, logger)

	var history cache.HistoryCache = cache.Noop{}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg := cache.DefaultRedisConfig()
		cfg.Addr = addr
		cfg.Password = os.Getenv("REDIS_PASSWORD")
		redis, err := cache.NewRedis(cfg, logger)
		if err != nil {
			logger.Warn("redis unavailable, history cache disabled", zap.Error(err))
		} else {
			history = redis
			defer redis.Close()
		}
	}

	serverCfg := api.DefaultServerConfig()
	if addr := os.Getenv("ADDR"); addr != "" {
		serverCfg.Address = addr
	}

	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	server := api.NewServer(serverCfg, accountSvc, engine, loanSvc, st, history, metricsHandler, logger)
	server.Start()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil && err != http.ErrServerClosed {
		logger.Error("shutdown failed", zap.Error(err))
	}
}
