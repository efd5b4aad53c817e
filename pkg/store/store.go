// Package store implements the state store adapter: the shared hash-valued
// key-value store that the Gateway, Worker, and Reaper all read and write.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/sessionpod/orchestrator/pkg/session"
)

// ErrUnavailable wraps any failure to reach the backing store (connection
// refused, timeout, auth failure). Callers should treat it as transient.
var ErrUnavailable = errors.New("state store unavailable")

// Store is the state store adapter described by the component design: get,
// put-status, put-ready, touch, delete, and scan over session records.
type Store interface {
	// GetSession returns the current record for a user id, or ok=false if
	// no record exists.
	GetSession(ctx context.Context, userID string) (rec session.Record, ok bool, err error)

	// PutStatus sets only the status field, leaving addr/last_active
	// untouched. Used for the Gateway's absent->initiating transition and
	// the Worker's transition to failed.
	PutStatus(ctx context.Context, userID string, status session.Status) error

	// PutReady sets status=ready, addr, and last_active=now in one write.
	PutReady(ctx context.Context, userID string, addr string, now time.Time) error

	// Touch updates last_active=now on an existing record without
	// disturbing status or addr.
	Touch(ctx context.Context, userID string, now time.Time) error

	// DeleteSession removes the record entirely. Deleting an absent key is
	// not an error.
	DeleteSession(ctx context.Context, userID string) error

	// ScanSessions iterates every session:* key, invoking fn with the
	// user id (key with the prefix stripped) and its decoded record. fn's
	// error does not stop the scan; ScanSessions returns the last error
	// encountered, if any, after completing the pass.
	ScanSessions(ctx context.Context, fn func(userID string, rec session.Record) error) error
}
