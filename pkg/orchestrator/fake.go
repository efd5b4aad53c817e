package orchestrator

import (
	"context"
	"sync"

	"github.com/sessionpod/orchestrator/pkg/session"
)

// Fake is an in-memory Orchestrator for tests.
type Fake struct {
	mu   sync.Mutex
	pods map[string]Sandbox

	CreateErr error
	ReadErr   error
	DeleteErr error
	// WaitResult, when set, is returned directly by WaitUntilAddressable
	// instead of polling the in-memory map; WaitErr likewise short-circuits
	// to an error (e.g. ErrTimedOut).
	WaitResult *Sandbox
	WaitErr    error
}

// NewFake returns an empty fake orchestrator.
func NewFake() *Fake {
	return &Fake{pods: make(map[string]Sandbox)}
}

func (f *Fake) CreateSandbox(_ context.Context, _, sanitizedID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return f.CreateErr
	}
	if _, exists := f.pods[sanitizedID]; exists {
		return nil
	}
	f.pods[sanitizedID] = Sandbox{Name: session.PodName(sanitizedID), Phase: PhasePending}
	return nil
}

func (f *Fake) ReadSandbox(_ context.Context, sanitizedID string) (Sandbox, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadErr != nil {
		return Sandbox{}, false, f.ReadErr
	}
	sb, ok := f.pods[sanitizedID]
	return sb, ok, nil
}

func (f *Fake) WaitUntilAddressable(_ context.Context, sanitizedID string) (Sandbox, error) {
	if f.WaitErr != nil {
		return Sandbox{}, f.WaitErr
	}
	if f.WaitResult != nil {
		return *f.WaitResult, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	sb := f.pods[sanitizedID]
	if !sb.Addressable() {
		return Sandbox{}, ErrTimedOut
	}
	return sb, nil
}

func (f *Fake) DeleteSandbox(_ context.Context, sanitizedID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	delete(f.pods, sanitizedID)
	return nil
}

// SetRunning marks a pod as Running with the given address, for test setup.
func (f *Fake) SetRunning(sanitizedID, addr string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pods[sanitizedID] = Sandbox{Name: session.PodName(sanitizedID), Phase: PhaseRunning, Addr: addr}
}
