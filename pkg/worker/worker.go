// Package worker implements the Lifecycle Worker: it consumes pod-creation
// requests from the durable queue, converges the sandbox via the
// orchestrator, and writes the resulting status back to the state store.
package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sessionpod/orchestrator/pkg/interfaces"
	"github.com/sessionpod/orchestrator/pkg/orchestrator"
	"github.com/sessionpod/orchestrator/pkg/queue"
	"github.com/sessionpod/orchestrator/pkg/session"
	"github.com/sessionpod/orchestrator/pkg/store"
)

var tracer = otel.Tracer("sessionpod-worker")

// Worker consumes creation requests and converges sandboxes.
type Worker struct {
	store        store.Store
	orchestrator orchestrator.Orchestrator
	metrics      interfaces.MetricsCollector
	audit        interfaces.AuditWriter
	log          *zap.Logger
	createLimiter *rate.Limiter
	watchTimeout  time.Duration
}

// Options configures a new Worker.
type Options struct {
	Store        store.Store
	Orchestrator orchestrator.Orchestrator
	Metrics      interfaces.MetricsCollector
	Audit        interfaces.AuditWriter
	Log          *zap.Logger
	CreateRateQPS   float64
	CreateRateBurst int
	WatchTimeout    time.Duration
}

// New builds a Worker from Options.
func New(opts Options) *Worker {
	if opts.Metrics == nil {
		opts.Metrics = &interfaces.NoOpMetricsCollector{}
	}
	if opts.Audit == nil {
		opts.Audit = &interfaces.NoOpAuditWriter{}
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	qps := opts.CreateRateQPS
	if qps <= 0 {
		qps = 5
	}
	burst := opts.CreateRateBurst
	if burst <= 0 {
		burst = 10
	}
	watchTimeout := opts.WatchTimeout
	if watchTimeout <= 0 {
		watchTimeout = 60 * time.Second
	}

	return &Worker{
		store:         opts.Store,
		orchestrator:  opts.Orchestrator,
		metrics:       opts.Metrics,
		audit:         opts.Audit,
		log:           opts.Log,
		createLimiter: rate.NewLimiter(rate.Limit(qps), burst),
		watchTimeout:  watchTimeout,
	}
}

// Handle processes one delivered creation message. It always returns
// queue.Ack: the reference worker acks unconditionally regardless of
// outcome, leaving convergence to the next redelivery or the gateway's
// long-poll rather than retrying the broker delivery itself.
func (w *Worker) Handle(ctx context.Context, msg queue.CreationMessage) queue.Disposition {
	userID := msg.ID
	sanitizedID := session.Sanitize(userID)

	ctx, span := tracer.Start(ctx, "worker.reconcile", trace.WithAttributes(
		attribute.String("user_id", userID),
		attribute.String("sanitized_id", sanitizedID),
	))
	defer span.End()

	started := time.Now()
	outcome := w.reconcile(ctx, userID, sanitizedID)
	w.metrics.RecordSandboxCreation(outcome, time.Since(started))
	span.SetAttributes(attribute.String("outcome", outcome))

	return queue.Ack
}

func (w *Worker) reconcile(ctx context.Context, userID, sanitizedID string) string {
	sb, exists, err := w.orchestrator.ReadSandbox(ctx, sanitizedID)
	if err != nil {
		w.log.Error("read sandbox failed", zap.String("user_id", userID), zap.Error(err))
		return "error"
	}

	if exists {
		if sb.Addressable() {
			w.markReady(ctx, userID, sb.Addr)
			return "ready"
		}
		// Sandbox exists but isn't Running yet (or has no IP): leave the
		// record untouched and let a future proxy long-poll or worker
		// redelivery observe convergence, exactly as the reference
		// implementation's "leave as-is" branch does.
		w.log.Debug("sandbox exists but not yet addressable", zap.String("user_id", userID), zap.String("phase", string(sb.Phase)))
		return "pending"
	}

	if err := w.createLimiter.Wait(ctx); err != nil {
		return "error"
	}

	if err := w.orchestrator.CreateSandbox(ctx, userID, sanitizedID); err != nil {
		// The record stays initiating; only a watch failure marks it failed.
		w.log.Error("create sandbox failed", zap.String("user_id", userID), zap.Error(err))
		return "error"
	}

	waitCtx, cancel := context.WithTimeout(ctx, w.watchTimeout)
	defer cancel()

	ready, err := w.orchestrator.WaitUntilAddressable(waitCtx, sanitizedID)
	if err != nil {
		w.log.Warn("sandbox did not become addressable in time", zap.String("user_id", userID), zap.Error(err))
		w.markFailed(ctx, userID)
		return "failed"
	}

	w.markReady(ctx, userID, ready.Addr)
	return "ready"
}

func (w *Worker) markReady(ctx context.Context, userID, addr string) {
	if err := w.store.PutReady(ctx, userID, addr, time.Now()); err != nil {
		w.log.Error("failed to write ready status", zap.String("user_id", userID), zap.Error(err))
		return
	}
	w.writeAuditEvent(ctx, userID, "ready", string(session.StatusReady))
}

func (w *Worker) markFailed(ctx context.Context, userID string) {
	if err := w.store.PutStatus(ctx, userID, session.StatusFailed); err != nil {
		w.log.Error("failed to write failed status", zap.String("user_id", userID), zap.Error(err))
		return
	}
	w.writeAuditEvent(ctx, userID, "failed", string(session.StatusFailed))
}

func (w *Worker) writeAuditEvent(ctx context.Context, userID, event, status string) {
	if err := w.audit.WriteSessionEvent(ctx, interfaces.SessionAuditRecord{
		TraceID:   uuid.NewString(),
		UserID:    userID,
		PodName:   session.PodName(session.Sanitize(userID)),
		Event:     event,
		Status:    status,
		Timestamp: time.Now(),
	}); err != nil {
		w.metrics.RecordAuditWriteError("session")
	}
}

// Run wires Handle into a Consumer and blocks until ctx is canceled.
func (w *Worker) Run(ctx context.Context, consumer queue.Consumer) error {
	return consumer.Consume(ctx, w.Handle)
}
