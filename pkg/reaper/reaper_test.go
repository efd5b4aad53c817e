package reaper

import (
	"context"
	"testing"
	"time"

	"github.com/sessionpod/orchestrator/pkg/orchestrator"
	"github.com/sessionpod/orchestrator/pkg/session"
	"github.com/sessionpod/orchestrator/pkg/store"
)

func TestTick_EvictsIdleSessions(t *testing.T) {
	s := store.NewFake()
	orch := orchestrator.NewFake()

	sanitized := session.Sanitize("gail")
	orch.SetRunning(sanitized, "10.0.0.9")
	s.Seed("gail", session.Record{
		Status:        session.StatusReady,
		Addr:          "10.0.0.9",
		LastActive:    time.Now().Add(-700 * time.Second),
		HasLastActive: true,
	})

	r := New(Options{Store: s, Orchestrator: orch, IdleTimeout: 600 * time.Second})
	if err := r.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, exists, err := s.GetSession(context.Background(), "gail")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exists {
		t.Fatalf("expected gail's session to be evicted")
	}

	if _, ok, _ := orch.ReadSandbox(context.Background(), sanitized); ok {
		t.Fatalf("expected gail's sandbox to be deleted")
	}
}

func TestTick_SkipsFreshSessions(t *testing.T) {
	s := store.NewFake()
	orch := orchestrator.NewFake()

	s.Seed("hank", session.Record{
		Status:        session.StatusReady,
		Addr:          "10.0.0.1",
		LastActive:    time.Now(),
		HasLastActive: true,
	})

	r := New(Options{Store: s, Orchestrator: orch, IdleTimeout: 600 * time.Second})
	if err := r.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, exists, err := s.GetSession(context.Background(), "hank")
	if err != nil || !exists {
		t.Fatalf("expected hank's session to survive: exists=%v err=%v", exists, err)
	}
}

func TestTick_SkipsRecordsWithoutLastActive(t *testing.T) {
	s := store.NewFake()
	orch := orchestrator.NewFake()

	s.Seed("iris", session.Record{Status: session.StatusInitiating})

	r := New(Options{Store: s, Orchestrator: orch, IdleTimeout: 1 * time.Nanosecond})
	if err := r.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, exists, err := s.GetSession(context.Background(), "iris")
	if err != nil || !exists {
		t.Fatalf("expected iris's initiating session to survive: exists=%v err=%v", exists, err)
	}
}
