// Package gateway implements the HTTP ingress component: it demultiplexes
// incoming requests by identity, drives the per-session state machine, and
// streams a reverse proxy to the sandbox once it is ready.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sessionpod/orchestrator/pkg/interfaces"
	"github.com/sessionpod/orchestrator/pkg/queue"
	"github.com/sessionpod/orchestrator/pkg/session"
	"github.com/sessionpod/orchestrator/pkg/store"
)

// maxDispatchIterations bounds the absent->initiating and failed->absent
// transitions so a single request can never loop more than twice: once to
// observe the terminal/absent state and once to act on the state it caused.
const maxDispatchIterations = 2

// Gateway demultiplexes requests by identity, walks the session state
// machine, and proxies to ready sandboxes.
type Gateway struct {
	store        store.Store
	queue        queue.Publisher
	metrics      interfaces.MetricsCollector
	audit        interfaces.AuditWriter
	log          *zap.Logger
	proxy        *Proxy
	longPollBound    time.Duration
	longPollInterval time.Duration

	publishGroup singleflight.Group
}

// Options configures a new Gateway.
type Options struct {
	Store            store.Store
	Queue            queue.Publisher
	Metrics          interfaces.MetricsCollector
	Audit            interfaces.AuditWriter
	Log              *zap.Logger
	LongPollBound    time.Duration
	LongPollInterval time.Duration
	ProxyTimeout     time.Duration
	SandboxPort      int
}

// New builds a Gateway from Options, filling in no-op defaults for any
// unset optional dependency.
func New(opts Options) *Gateway {
	if opts.Metrics == nil {
		opts.Metrics = &interfaces.NoOpMetricsCollector{}
	}
	if opts.Audit == nil {
		opts.Audit = &interfaces.NoOpAuditWriter{}
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.LongPollBound <= 0 {
		opts.LongPollBound = 90 * time.Second
	}
	if opts.LongPollInterval <= 0 {
		opts.LongPollInterval = 500 * time.Millisecond
	}

	return &Gateway{
		store:            opts.Store,
		queue:            opts.Queue,
		metrics:          opts.Metrics,
		audit:            opts.Audit,
		log:              opts.Log,
		proxy:            NewProxy(opts.ProxyTimeout, opts.SandboxPort),
		longPollBound:    opts.LongPollBound,
		longPollInterval: opts.LongPollInterval,
	}
}

// outcome classifies how a dispatch pass ended, for logging and metrics.
type outcome string

const (
	outcomeProxied     outcome = "proxied"
	outcomeTimeout     outcome = "timeout"
	outcomeFailed      outcome = "failed"
	outcomeBadRequest  outcome = "bad_request"
	outcomeStoreError  outcome = "store_unavailable"
	outcomeBrokerError outcome = "broker_unavailable"
)

// ServeHTTP implements the Gateway's single entry point: every request,
// regardless of path, is dispatched by the X-User-ID header.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		http.Error(w, "X-User-ID header is required", http.StatusBadRequest)
		return
	}

	g.dispatch(w, r, userID, 0)
}

// dispatch implements the state-dispatch table. It is a bounded loop rather
// than true recursion: absent leads to initiating, and failed leads to
// absent, each consuming one of maxDispatchIterations passes. The bound is
// enforced by handleAbsent/handleFailed before they recurse, not here,
// since dispatch itself only ever reads and branches on the current state.
func (g *Gateway) dispatch(w http.ResponseWriter, r *http.Request, userID string, iteration int) {
	ctx := r.Context()

	rec, exists, err := g.store.GetSession(ctx, userID)
	if err != nil {
		g.log.Error("store unavailable", zap.String("user_id", userID), zap.Error(err))
		http.Error(w, "state store unavailable", http.StatusServiceUnavailable)
		return
	}

	if !exists {
		g.handleAbsent(w, r, userID, iteration)
		return
	}

	switch rec.Status {
	case session.StatusReady:
		g.handleReady(w, r, userID, rec)
	case session.StatusInitiating:
		g.handleInitiating(w, r, userID)
	case session.StatusFailed:
		g.handleFailed(w, r, userID, iteration)
	default:
		// Unknown status value: treat like absent to self-heal.
		g.handleAbsent(w, r, userID, iteration)
	}
}

func (g *Gateway) handleAbsent(w http.ResponseWriter, r *http.Request, userID string, iteration int) {
	if iteration >= maxDispatchIterations {
		g.log.Error("dispatch iteration bound exceeded", zap.String("user_id", userID))
		http.Error(w, "session could not be established", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()

	_, err, _ := g.publishGroup.Do(userID, func() (interface{}, error) {
		if err := g.store.PutStatus(ctx, userID, session.StatusInitiating); err != nil {
			return nil, err
		}
		if err := g.queue.Publish(ctx, userID); err != nil {
			// Roll back the optimistic initiating write so a future
			// request can retry from absent, matching the reference
			// implementation's delete-on-publish-failure behavior.
			_ = g.store.DeleteSession(ctx, userID)
			g.metrics.RecordQueuePublish("error")
			return nil, err
		}
		g.metrics.RecordQueuePublish("success")
		g.writeAuditEvent(ctx, userID, "created", string(session.StatusInitiating))
		return nil, nil
	})
	if err != nil {
		g.log.Error("failed to publish creation request", zap.String("user_id", userID), zap.Error(err))
		http.Error(w, "failed to schedule session creation", http.StatusInternalServerError)
		return
	}

	g.dispatch(w, r, userID, iteration+1)
}

func (g *Gateway) handleFailed(w http.ResponseWriter, r *http.Request, userID string, iteration int) {
	if iteration >= maxDispatchIterations {
		g.log.Error("dispatch iteration bound exceeded", zap.String("user_id", userID))
		http.Error(w, "session could not be established", http.StatusInternalServerError)
		return
	}

	if err := g.store.DeleteSession(r.Context(), userID); err != nil {
		g.log.Error("failed to clear failed session", zap.String("user_id", userID), zap.Error(err))
		http.Error(w, "state store unavailable", http.StatusServiceUnavailable)
		return
	}
	g.dispatch(w, r, userID, iteration+1)
}

func (g *Gateway) handleInitiating(w http.ResponseWriter, r *http.Request, userID string) {
	ctx := r.Context()
	deadline := time.Now().Add(g.longPollBound)
	started := time.Now()

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(g.longPollInterval):
		}

		rec, exists, err := g.store.GetSession(ctx, userID)
		if err != nil {
			g.log.Error("store unavailable during long poll", zap.String("user_id", userID), zap.Error(err))
			http.Error(w, "state store unavailable", http.StatusServiceUnavailable)
			return
		}
		if !exists {
			// Record vanished mid-poll; treat as a hard failure for this
			// request rather than looping further.
			g.metrics.RecordLongPoll(string(outcomeFailed), time.Since(started))
			http.Error(w, "session creation failed", http.StatusInternalServerError)
			return
		}

		switch rec.Status {
		case session.StatusReady:
			g.metrics.RecordLongPoll("ready", time.Since(started))
			g.handleReady(w, r, userID, rec)
			return
		case session.StatusFailed:
			g.metrics.RecordLongPoll(string(outcomeFailed), time.Since(started))
			http.Error(w, "session creation failed", http.StatusInternalServerError)
			return
		}
		// still initiating: keep polling
	}

	g.metrics.RecordLongPoll(string(outcomeTimeout), time.Since(started))
	http.Error(w, "timed out waiting for session to become ready", http.StatusGatewayTimeout)
}

func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request, userID string, rec session.Record) {
	ctx := r.Context()

	if err := g.store.Touch(ctx, userID, time.Now()); err != nil {
		// Touch failing doesn't invalidate the proxy attempt; log and
		// continue, matching the reference implementation which never
		// aborts a ready request over a touch error.
		g.log.Warn("failed to touch session", zap.String("user_id", userID), zap.Error(err))
	} else {
		g.writeAuditEvent(ctx, userID, "touched", string(rec.Status))
	}

	start := time.Now()
	status := g.proxy.Serve(w, r, rec.Addr)
	g.metrics.RecordProxyRequest(fmt.Sprintf("%d", status), time.Since(start))
}

func (g *Gateway) writeAuditEvent(ctx context.Context, userID, event, status string) {
	if err := g.audit.WriteSessionEvent(ctx, interfaces.SessionAuditRecord{
		TraceID:   uuid.NewString(),
		UserID:    userID,
		PodName:   session.PodName(session.Sanitize(userID)),
		Event:     event,
		Status:    status,
		Timestamp: time.Now(),
	}); err != nil {
		g.metrics.RecordAuditWriteError("session")
	}
}
