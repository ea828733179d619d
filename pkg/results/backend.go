package results

import (
	"context"
	"iter"
	"time"

	"github.com/cuemby/colony/pkg/colonyerr"
)

// GetOptions controls a Get or GetAny call.
type GetOptions struct {
	// Block waits up to Timeout for a result. A non-blocking Get returns
	// colonyerr.ErrResultMissing at once when there is no record; a
	// non-blocking GetAny yields ErrResultMissing when a poll finds no
	// result (Redis polls for up to one second) and ErrResultTimeout when
	// results are still outstanding after Timeout has passed.
	Block bool
	// Timeout bounds a blocking wait. Durable backends may coarsen
	// this to whole seconds.
	Timeout time.Duration
	// Propagate controls exception handling: true returns a stored
	// exception as the call's error; false returns it as the value.
	Propagate bool
	// WithTask requests that GetAny populate AnyResult.Msg.
	WithTask bool
}

// AnyResult is one item yielded by GetAny, in store-completion order.
type AnyResult struct {
	Msg   Message
	Value any
	Err   error
}

// Backend is the result backend contract every implementation satisfies.
type Backend interface {
	// Store atomically replaces any prior record for msg with value,
	// expiring after ttl.
	Store(ctx context.Context, msg Message, value any, ttl time.Duration) error

	// StoreException atomically replaces any prior record for msg with
	// a reconstructable exception, expiring after ttl.
	StoreException(ctx context.Context, msg Message, exc *colonyerr.RemoteError, ttl time.Duration) error

	// Get retrieves the stored record for msg. It returns
	// colonyerr.ErrResultMissing (non-blocking, no record) or
	// colonyerr.ErrResultTimeout (blocking, deadline exceeded).
	Get(ctx context.Context, msg Message, opts GetOptions) (any, error)

	// GetAny harvests results over msgs in completion order, not
	// submission order. The returned sequence stops once every message
	// has yielded exactly one result, or once a timeout/missing error
	// is yielded.
	GetAny(ctx context.Context, msgs []Message, opts GetOptions) iter.Seq[AnyResult]
}

func secondsTimeout(d time.Duration) int64 {
	s := int64(d.Seconds())
	if s < 1 {
		return 1
	}
	return s
}
