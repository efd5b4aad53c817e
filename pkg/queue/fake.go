package queue

import (
	"context"
	"sync"
)

// Fake is an in-memory Publisher/Consumer pair for tests: Publish appends to
// a slice, Consume drains it. It avoids a live RabbitMQ dependency in the
// gateway/worker unit tests.
type Fake struct {
	mu       sync.Mutex
	messages []CreationMessage

	Err error
}

// NewFake returns an empty fake broker.
func NewFake() *Fake {
	return &Fake{}
}

func (f *Fake) Publish(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.messages = append(f.messages, CreationMessage{ID: userID})
	return nil
}

// Published returns a copy of every message published so far, in order.
func (f *Fake) Published() []CreationMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]CreationMessage, len(f.messages))
	copy(out, f.messages)
	return out
}

// Consume drains whatever has been published at call time; it does not
// block waiting for future publishes, which is sufficient for the
// request-response-shaped worker tests that use it.
func (f *Fake) Consume(ctx context.Context, handler Handler) error {
	f.mu.Lock()
	pending := f.messages
	f.messages = nil
	f.mu.Unlock()

	for _, msg := range pending {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		handler(ctx, msg)
	}
	return nil
}
