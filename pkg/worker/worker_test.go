package worker

import (
	"context"
	"testing"

	"github.com/sessionpod/orchestrator/pkg/orchestrator"
	"github.com/sessionpod/orchestrator/pkg/queue"
	"github.com/sessionpod/orchestrator/pkg/session"
	"github.com/sessionpod/orchestrator/pkg/store"
)

func TestHandle_CreatesAndMarksFailedWhenNeverAddressable(t *testing.T) {
	s := store.NewFake()
	orch := orchestrator.NewFake()
	w := New(Options{Store: s, Orchestrator: orch, CreateRateQPS: 1000, CreateRateBurst: 1000})

	// No sandbox exists yet, so Handle creates one through the fake.
	disp := w.Handle(context.Background(), queue.CreationMessage{ID: "dave"})
	if disp != queue.Ack {
		t.Fatalf("expected unconditional ack, got %v", disp)
	}

	rec, exists, err := s.GetSession(context.Background(), "dave")
	if err != nil || !exists {
		t.Fatalf("expected a record for dave: exists=%v err=%v", exists, err)
	}
	// The fake orchestrator starts pods Pending, so WaitUntilAddressable
	// times out and the worker marks the session failed.
	if rec.Status != session.StatusFailed {
		t.Fatalf("expected failed status when sandbox never becomes addressable, got %q", rec.Status)
	}
}

func TestHandle_ExistingRunningSandboxMarksReady(t *testing.T) {
	s := store.NewFake()
	orch := orchestrator.NewFake()
	orch.SetRunning(session.Sanitize("erin"), "10.0.0.5")
	w := New(Options{Store: s, Orchestrator: orch, CreateRateQPS: 1000, CreateRateBurst: 1000})

	disp := w.Handle(context.Background(), queue.CreationMessage{ID: "erin"})
	if disp != queue.Ack {
		t.Fatalf("expected unconditional ack, got %v", disp)
	}

	rec, exists, err := s.GetSession(context.Background(), "erin")
	if err != nil || !exists {
		t.Fatalf("expected a record for erin: exists=%v err=%v", exists, err)
	}
	if rec.Status != session.StatusReady || rec.Addr != "10.0.0.5" {
		t.Fatalf("expected ready with addr 10.0.0.5, got %+v", rec)
	}
}

func TestHandle_ExistingPendingSandboxLeftUntouched(t *testing.T) {
	s := store.NewFake()
	orch := orchestrator.NewFake()
	_ = orch.CreateSandbox(context.Background(), "finn", session.Sanitize("finn"))
	w := New(Options{Store: s, Orchestrator: orch, CreateRateQPS: 1000, CreateRateBurst: 1000})

	disp := w.Handle(context.Background(), queue.CreationMessage{ID: "finn"})
	if disp != queue.Ack {
		t.Fatalf("expected unconditional ack, got %v", disp)
	}

	_, exists, err := s.GetSession(context.Background(), "finn")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exists {
		t.Fatalf("expected no record written when sandbox is left pending")
	}
}
