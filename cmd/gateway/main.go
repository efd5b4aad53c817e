package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sessionpod/orchestrator/pkg/audit"
	"github.com/sessionpod/orchestrator/pkg/config"
	"github.com/sessionpod/orchestrator/pkg/gateway"
	"github.com/sessionpod/orchestrator/pkg/interfaces"
	"github.com/sessionpod/orchestrator/pkg/metrics"
	"github.com/sessionpod/orchestrator/pkg/queue"
	"github.com/sessionpod/orchestrator/pkg/store"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg := config.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stateStore := store.New(store.Config{Addr: cfg.StoreAddr, Password: cfg.StorePassword, DB: cfg.StoreDB})
	defer stateStore.Close()
	waitForStore(ctx, log, stateStore)

	broker := queue.New(queue.Config{Host: cfg.QueueHost, User: cfg.QueueUser, Password: cfg.QueuePassword})
	defer broker.Close()

	var metricsCollector interfaces.MetricsCollector = &interfaces.NoOpMetricsCollector{}
	if cfg.EnableMetrics {
		metricsCollector = metrics.NewPrometheusCollector()
	}

	var auditWriter interfaces.AuditWriter = audit.NewNoOpWriter()
	if cfg.ClickHouseEnabled {
		w, err := audit.NewClickHouseWriter(audit.ClickHouseConfig{
			Addr:          cfg.ClickHouseAddr,
			Database:      cfg.ClickHouseDatabase,
			Username:      cfg.ClickHouseUsername,
			Password:      cfg.ClickHousePassword,
			BatchSize:     cfg.ClickHouseBatchSize,
			FlushInterval: cfg.ClickHouseFlushInterval,
		})
		if err != nil {
			log.Warn("audit writer init failed, auditing disabled", zap.Error(err))
		} else {
			auditWriter = w
			defer w.Close()
		}
	}

	gw := gateway.New(gateway.Options{
		Store:            stateStore,
		Queue:            broker,
		Metrics:          metricsCollector,
		Audit:            auditWriter,
		Log:              log.Named("gateway"),
		LongPollBound:    cfg.LongPollBound,
		LongPollInterval: cfg.LongPollInterval,
		ProxyTimeout:     cfg.ProxyTimeout,
		SandboxPort:      int(cfg.SandboxPort),
	})

	addr := ":" + strconv.Itoa(cfg.GatewayPort)
	server := gateway.NewServer(addr, gw)

	go func() {
		log.Info("gateway listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down gateway")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	server.Shutdown(shutdownCtx)

	log.Info("gateway stopped")
}

// waitForStore blocks until the state store answers a ping, retrying with a
// fixed 5s period, matching the reference implementation's startup
// connectivity loop. It only returns early if ctx is canceled first.
func waitForStore(ctx context.Context, log *zap.Logger, s *store.RedisStore) {
	for {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := s.Ping(pingCtx)
		cancel()
		if err == nil {
			return
		}
		log.Warn("state store not reachable yet, retrying", zap.Error(err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}
