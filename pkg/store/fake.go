package store

import (
	"context"
	"sync"
	"time"

	"github.com/sessionpod/orchestrator/pkg/session"
)

// Fake is an in-memory Store for tests, avoiding a live Redis dependency in
// the gateway/worker/reaper unit tests.
type Fake struct {
	mu      sync.Mutex
	records map[string]session.Record

	// Err, when set, is returned by every method instead of operating on
	// the map, for exercising the StoreUnavailable path.
	Err error
}

// NewFake returns an empty fake store.
func NewFake() *Fake {
	return &Fake{records: make(map[string]session.Record)}
}

func (f *Fake) GetSession(_ context.Context, userID string) (session.Record, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return session.Record{}, false, f.Err
	}
	rec, ok := f.records[userID]
	return rec, ok, nil
}

func (f *Fake) PutStatus(_ context.Context, userID string, status session.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	rec := f.records[userID]
	rec.Status = status
	f.records[userID] = rec
	return nil
}

func (f *Fake) PutReady(_ context.Context, userID string, addr string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.records[userID] = session.Record{
		Status:        session.StatusReady,
		Addr:          addr,
		LastActive:    now,
		HasLastActive: true,
	}
	return nil
}

func (f *Fake) Touch(_ context.Context, userID string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	rec, ok := f.records[userID]
	if !ok {
		return nil
	}
	rec.LastActive = now
	rec.HasLastActive = true
	f.records[userID] = rec
	return nil
}

func (f *Fake) DeleteSession(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	delete(f.records, userID)
	return nil
}

func (f *Fake) ScanSessions(_ context.Context, fn func(userID string, rec session.Record) error) error {
	f.mu.Lock()
	snapshot := make(map[string]session.Record, len(f.records))
	for k, v := range f.records {
		snapshot[k] = v
	}
	f.mu.Unlock()

	if f.Err != nil {
		return f.Err
	}

	var lastErr error
	for userID, rec := range snapshot {
		if err := fn(userID, rec); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Seed directly installs a record, bypassing the normal write paths, for
// test setup.
func (f *Fake) Seed(userID string, rec session.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[userID] = rec
}
