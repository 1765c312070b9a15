// Package messagequeue defines the message queue ports (interfaces) and the
// wire schema of tool requests.
package messagequeue

import (
	"context"
	"errors"
)

// ErrConnection marks broker failures at the connection level (dial,
// authentication, lost connection). Consumers back off and reconnect.
var ErrConnection = errors.New("broker connection error")

// Delivery is one message handed out by a Stream. The consumer that
// received it owns it until it calls exactly one of Ack or Term.
type Delivery interface {
	// Data returns the raw message body.
	Data() []byte

	// Ack acknowledges the message as accepted for processing.
	Ack() error

	// Term rejects the message without requeue.
	Term() error
}

// Stream is a blocking iterator over deliveries of one durable queue.
type Stream interface {
	// Next blocks until the next delivery is available or the stream fails.
	Next() (Delivery, error)

	// Close stops the stream and releases its connection.
	Close() error
}

// Broker opens consuming streams on a durable queue.
type Broker interface {
	// Open connects, declares the durable queue, and returns a Stream.
	Open(ctx context.Context) (Stream, error)
}

// Publisher sends messages onto the durable queue.
type Publisher interface {
	// Publish fails with an error wrapping ErrConnection while the broker
	// is unreachable.
	Publish(ctx context.Context, subject string, data []byte) error

	// Connected reports whether the broker is currently reachable.
	Connected() bool
}
