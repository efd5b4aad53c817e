// Package reaper implements the Reaper: it periodically scans all session
// records and evicts any session that has been idle longer than the
// configured timeout.
package reaper

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sessionpod/orchestrator/pkg/interfaces"
	"github.com/sessionpod/orchestrator/pkg/middleware"
	"github.com/sessionpod/orchestrator/pkg/orchestrator"
	"github.com/sessionpod/orchestrator/pkg/session"
	"github.com/sessionpod/orchestrator/pkg/store"
)

// Reaper evicts idle sessions on a fixed period.
type Reaper struct {
	store        store.Store
	orchestrator orchestrator.Orchestrator
	metrics      interfaces.MetricsCollector
	audit        interfaces.AuditWriter
	log          *zap.Logger
	chain        *middleware.Chain

	period      time.Duration
	idleTimeout time.Duration
}

// Options configures a new Reaper.
type Options struct {
	Store        store.Store
	Orchestrator orchestrator.Orchestrator
	Metrics      interfaces.MetricsCollector
	Audit        interfaces.AuditWriter
	Log          *zap.Logger
	Period       time.Duration
	IdleTimeout  time.Duration
}

// New builds a Reaper from Options.
func New(opts Options) *Reaper {
	if opts.Metrics == nil {
		opts.Metrics = &interfaces.NoOpMetricsCollector{}
	}
	if opts.Audit == nil {
		opts.Audit = &interfaces.NoOpAuditWriter{}
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Period <= 0 {
		opts.Period = 60 * time.Second
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 600 * time.Second
	}

	r := &Reaper{
		store:        opts.Store,
		orchestrator: opts.Orchestrator,
		metrics:      opts.Metrics,
		audit:        opts.Audit,
		log:          opts.Log,
		period:       opts.Period,
		idleTimeout:  opts.IdleTimeout,
	}

	r.chain = middleware.NewChain().
		AddBefore(middleware.NewLoggingHook("reaper", opts.Log)).
		AddAfter(middleware.NewLoggingHook("reaper", opts.Log)).
		AddAfter(middleware.NewMetricsHook("reaper", func(string) {}))

	return r
}

// Run ticks every Period until ctx is canceled, running Tick on each beat.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.chain.Wrap(r.Tick)(ctx); err != nil {
				r.log.Error("reaper tick failed", zap.Error(err))
			}
		}
	}
}

// Tick performs one scan-and-evict pass over every session record.
func (r *Reaper) Tick(ctx context.Context) error {
	started := time.Now()
	now := started
	scanned := 0

	err := r.store.ScanSessions(ctx, func(userID string, rec session.Record) error {
		scanned++

		// A record with no last_active is still initiating (or just
		// transitioned) and is never the reaper's business, matching the
		// reference implementation's `if 'last_active' in data` guard.
		if !rec.HasLastActive {
			return nil
		}

		idleFor := now.Sub(rec.LastActive)
		if idleFor <= r.idleTimeout {
			return nil
		}

		return r.evict(ctx, userID)
	})

	r.metrics.RecordReaperTick(scanned, time.Since(started))
	return err
}

func (r *Reaper) evict(ctx context.Context, userID string) error {
	sanitizedID := session.Sanitize(userID)

	if err := r.orchestrator.DeleteSandbox(ctx, sanitizedID); err != nil {
		// Deletion failed for a reason other than not-found: skip the
		// record deletion and retry on the next tick, matching the
		// reference implementation's continue-on-error branch.
		r.log.Warn("failed to delete sandbox, will retry next tick", zap.String("user_id", userID), zap.Error(err))
		return err
	}

	if err := r.store.DeleteSession(ctx, userID); err != nil {
		r.log.Error("failed to delete session record after sandbox eviction", zap.String("user_id", userID), zap.Error(err))
		return err
	}

	r.metrics.RecordReaperEviction()
	r.writeAuditEvent(ctx, userID)
	return nil
}

func (r *Reaper) writeAuditEvent(ctx context.Context, userID string) {
	if err := r.audit.WriteSessionEvent(ctx, interfaces.SessionAuditRecord{
		TraceID:   uuid.NewString(),
		UserID:    userID,
		PodName:   session.PodName(session.Sanitize(userID)),
		Event:     "reaped",
		Timestamp: time.Now(),
	}); err != nil {
		r.metrics.RecordAuditWriteError("session")
	}
}
