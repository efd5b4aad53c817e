package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"

	"github.com/sessionpod/orchestrator/pkg/interfaces"
)

// ClickHouseWriter implements interfaces.AuditWriter using ClickHouse,
// batching session lifecycle events and flushing on a timer or when a
// batch fills up.
type ClickHouseWriter struct {
	db            *sql.DB
	batchSize     int
	flushInterval time.Duration

	records []interfaces.SessionAuditRecord
	mu      sync.Mutex

	stopCh chan struct{}
	doneCh chan struct{}
}

// ClickHouseConfig holds configuration for the ClickHouse connection.
type ClickHouseConfig struct {
	Addr          string
	Database      string
	Username      string
	Password      string
	BatchSize     int
	FlushInterval time.Duration
}

// NewClickHouseWriter creates a new ClickHouse audit writer.
func NewClickHouseWriter(cfg ClickHouseConfig) (*ClickHouseWriter, error) {
	encodedPassword := url.QueryEscape(cfg.Password)
	dsn := fmt.Sprintf("clickhouse://%s:%s@%s/%s",
		cfg.Username, encodedPassword, cfg.Addr, cfg.Database)

	db, err := sql.Open("clickhouse", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open clickhouse connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	if _, err := db.Exec(SessionAuditTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create session_audit table: %w", err)
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 10 * time.Second
	}

	w := &ClickHouseWriter{
		db:            db,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}

	go w.flushLoop()

	return w, nil
}

// WriteSessionEvent buffers one lifecycle audit record, flushing
// immediately if the batch is full.
func (w *ClickHouseWriter) WriteSessionEvent(_ context.Context, record interfaces.SessionAuditRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.records = append(w.records, record)

	if len(w.records) >= w.batchSize {
		return w.flushLocked()
	}
	return nil
}

// Flush flushes any buffered audit records.
func (w *ClickHouseWriter) Flush(_ context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

// Close stops the flush loop and drains any remaining records.
func (w *ClickHouseWriter) Close() error {
	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	defer w.mu.Unlock()

	var errs []error
	if err := w.flushLocked(); err != nil {
		errs = append(errs, fmt.Errorf("flush session audit records: %w", err))
	}
	if err := w.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close db: %w", err))
	}
	return errors.Join(errs...)
}

func (w *ClickHouseWriter) flushLoop() {
	defer close(w.doneCh)
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.mu.Lock()
			_ = w.flushLocked()
			w.mu.Unlock()
		}
	}
}

func (w *ClickHouseWriter) flushLocked() error {
	if len(w.records) == 0 {
		return nil
	}

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO session_audit (
			trace_id, user_id, pod_name, event, status, timestamp
		) VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range w.records {
		if _, err := stmt.Exec(
			r.TraceID, r.UserID, r.PodName, r.Event, r.Status, r.Timestamp,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert session audit record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	w.records = w.records[:0]
	return nil
}
