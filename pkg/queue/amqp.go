package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Config holds the connection parameters for the AMQP-backed broker.
type Config struct {
	Host     string
	User     string
	Password string

	// ReconnectDelay is how long Consume waits between reconnect attempts
	// after the connection drops.
	ReconnectDelay time.Duration
}

func (c Config) url() string {
	return fmt.Sprintf("amqp://%s:%s@%s/", c.User, c.Password, c.Host)
}

func (c Config) reconnectDelay() time.Duration {
	if c.ReconnectDelay > 0 {
		return c.ReconnectDelay
	}
	return 5 * time.Second
}

// Broker implements both Publisher and Consumer on top of
// github.com/rabbitmq/amqp091-go, declaring pod_creation_queue as durable
// and publishing with persistent delivery mode and publisher confirms, so a
// successful Publish means the broker has accepted the message onto disk.
type Broker struct {
	cfg Config
	url string

	conn *amqp.Connection
	ch   *amqp.Channel
}

// New returns a Broker that lazily dials on first use.
func New(cfg Config) *Broker {
	return &Broker{cfg: cfg, url: cfg.url()}
}

// Close tears down the channel and connection, if open.
func (b *Broker) Close() error {
	var err error
	if b.ch != nil {
		err = b.ch.Close()
	}
	if b.conn != nil {
		if cerr := b.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (b *Broker) ensureChannel() (*amqp.Channel, error) {
	if b.ch != nil && !b.ch.IsClosed() {
		return b.ch, nil
	}

	conn, err := amqp.Dial(b.url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	b.conn = conn
	b.ch = ch
	return ch, nil
}

// Publish publishes a persistent message, blocking until the broker
// confirms receipt. The durable queue is declared (idempotently) whenever
// a new channel is opened, not on every publish over a reused channel.
func (b *Broker) Publish(ctx context.Context, userID string) error {
	ch, err := b.ensureChannel()
	if err != nil {
		return err
	}

	body, err := json.Marshal(CreationMessage{ID: userID})
	if err != nil {
		return fmt.Errorf("encode creation message: %w", err)
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, "", QueueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	ok, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !ok {
		return fmt.Errorf("%w: broker nacked publish", ErrUnavailable)
	}
	return nil
}

// Consume runs handler over deliveries with prefetch 1, so a worker replica
// holds at most one unacked message at a time. On connection loss it waits
// ReconnectDelay and reconnects, until ctx is canceled.
func (b *Broker) Consume(ctx context.Context, handler Handler) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := b.consumeOnce(ctx, handler); err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(b.cfg.reconnectDelay()):
			}
		}
	}
}

func (b *Broker) consumeOnce(ctx context.Context, handler Handler) error {
	ch, err := b.ensureChannel()
	if err != nil {
		return err
	}

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	deliveries, err := ch.ConsumeWithContext(ctx, QueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	closed := ch.NotifyClose(make(chan *amqp.Error, 1))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr, ok := <-closed:
			if !ok {
				return fmt.Errorf("%w: channel closed", ErrUnavailable)
			}
			return fmt.Errorf("%w: %v", ErrUnavailable, amqpErr)
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("%w: delivery channel closed", ErrUnavailable)
			}

			msg, decodeErr := Decode(d.Body)
			if decodeErr != nil {
				// Poison message: ack so it isn't redelivered forever.
				d.Ack(false)
				continue
			}

			switch handler(ctx, msg) {
			case Ack:
				d.Ack(false)
			case Nack:
				d.Nack(false, false)
			}
		}
	}
}
