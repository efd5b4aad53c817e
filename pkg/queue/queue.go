// Package queue implements the durable message broker adapter used to
// dispatch pod-creation work from the Gateway to the Lifecycle Worker.
package queue

import (
	"context"
	"encoding/json"
	"errors"
)

// QueueName is the durable queue the Worker consumes and the Gateway
// publishes to.
const QueueName = "pod_creation_queue"

// ErrUnavailable wraps any failure to reach the broker.
var ErrUnavailable = errors.New("broker unavailable")

// CreationMessage is the payload published for every pod-creation request.
type CreationMessage struct {
	ID string `json:"id"`
}

// Decode parses a raw delivery body into a CreationMessage. A malformed or
// empty id is reported as an error so the caller can drop-and-ack rather
// than crash-looping on a poison message.
func Decode(body []byte) (CreationMessage, error) {
	var msg CreationMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return CreationMessage{}, err
	}
	if msg.ID == "" {
		return CreationMessage{}, errors.New("message missing id field")
	}
	return msg, nil
}

// Publisher publishes durable, persistent creation requests.
type Publisher interface {
	// Publish enqueues a creation request for userID. It must not report
	// success unless the broker has accepted and persisted the message.
	Publish(ctx context.Context, userID string) error
}

// Disposition is how a consumer wants a delivered message handled.
type Disposition int

const (
	// Ack acknowledges the message; it will not be redelivered.
	Ack Disposition = iota
	// Nack rejects the message without requeueing it (poison message).
	Nack
)

// Handler processes one delivery and returns how it should be acked.
type Handler func(ctx context.Context, msg CreationMessage) Disposition

// Consumer runs a handler over deliveries from the durable queue.
type Consumer interface {
	// Consume blocks, invoking handler for each delivery, until ctx is
	// canceled or an unrecoverable error occurs. It reconnects on
	// transient broker failures.
	Consume(ctx context.Context, handler Handler) error
}
