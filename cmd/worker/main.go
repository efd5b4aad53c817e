package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	ctrlclient "sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/sessionpod/orchestrator/pkg/audit"
	"github.com/sessionpod/orchestrator/pkg/config"
	"github.com/sessionpod/orchestrator/pkg/interfaces"
	"github.com/sessionpod/orchestrator/pkg/metrics"
	"github.com/sessionpod/orchestrator/pkg/orchestrator"
	"github.com/sessionpod/orchestrator/pkg/queue"
	"github.com/sessionpod/orchestrator/pkg/store"
	"github.com/sessionpod/orchestrator/pkg/worker"
)

var scheme = runtime.NewScheme()

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
}

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctrl.SetLogger(zapr.NewLogger(log))

	cfg := config.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	k8sConfig := ctrl.GetConfigOrDie()
	k8sConfig.QPS = cfg.K8sClientQPS
	k8sConfig.Burst = cfg.K8sClientBurst

	k8sClient, err := ctrlclient.NewWithWatch(k8sConfig, ctrlclient.Options{Scheme: scheme})
	if err != nil {
		log.Fatal("failed to create kubernetes client", zap.Error(err))
	}

	orch := orchestrator.New(k8sClient, cfg.Namespace, orchestrator.PodConfig{
		Image: cfg.SandboxImage,
		Port:  cfg.SandboxPort,
	})

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

	wk := worker.New(worker.Options{
		Store:           stateStore,
		Orchestrator:    orch,
		Metrics:         metricsCollector,
		Audit:           auditWriter,
		Log:             log.Named("worker"),
		CreateRateQPS:   cfg.WorkerCreateRateQPS,
		CreateRateBurst: cfg.WorkerCreateRateBurst,
		WatchTimeout:    cfg.SandboxWatchTimeout,
	})

	log.Info("worker starting", zap.String("queue", queue.QueueName))
	if err := wk.Run(ctx, broker); err != nil && ctx.Err() == nil {
		log.Fatal("worker stopped unexpectedly", zap.Error(err))
	}

	log.Info("worker stopped")
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
