package broker

import (
	"context"

	"github.com/cuemby/colony/pkg/results"
)

// MiddlewareSpec is the subset of a configured middleware's declaration
// a broker exposes to the worker bootstrap sequence: the fork-function
// paths the canteen's first writer publishes.
type MiddlewareSpec struct {
	Forks []string
}

// Broker is a message store plus notification, with just enough
// surface to drive a worker loop. Ack/nack, retry, and rate-limit
// semantics are out of scope.
type Broker interface {
	// Middleware lists the configured middleware specs, in registration
	// order, for canteen bootstrap.
	Middleware() []MiddlewareSpec

	// EmitAfter fires a named lifecycle event (e.g. "process_boot")
	// for any middleware hooked on it. Unknown event names are no-ops.
	EmitAfter(ctx context.Context, event string) error

	// Enqueue publishes a message's payload to queue.
	Enqueue(ctx context.Context, queue string, msg results.Message, payload []byte) error

	// Fetch blocks until a message is available on one of queues, ctx
	// is done, or the implementation's own wait runs out (Redis waits
	// one second per call). It returns the message identity and its
	// payload.
	Fetch(ctx context.Context, queues []string) (results.Message, []byte, error)

	// Close releases the broker's resources. Safe to call once.
	Close() error
}
