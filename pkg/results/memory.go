package results

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/cuemby/colony/pkg/colonyerr"
)

// Memory is an in-memory stub backend: a process-shared table of
// fingerprint -> (payload, expiry). It is intentionally single-process;
// it serves tests, colonyctl's smoke command, and the master's
// memory:// results backend.
type Memory struct {
	mu      sync.Mutex
	records map[string]memRecord
}

type memRecord struct {
	env     Envelope
	expires time.Time
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]memRecord)}
}

func (m *Memory) put(msg Message, env Envelope, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[string(BuildMessageKey(msg))] = memRecord{env: env, expires: time.Now().Add(ttl)}
}

func (m *Memory) Store(_ context.Context, msg Message, value any, ttl time.Duration) error {
	env, err := encodeValue(value)
	if err != nil {
		return err
	}
	m.put(msg, env, ttl)
	return nil
}

func (m *Memory) StoreException(_ context.Context, msg Message, exc *colonyerr.RemoteError, ttl time.Duration) error {
	m.put(msg, encodeException(exc), ttl)
	return nil
}

// load returns the record for key, evicting it lazily if its TTL has
// passed.
func (m *Memory) load(key string) (Envelope, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		return Envelope{}, false
	}
	if time.Now().After(rec.expires) {
		delete(m.records, key)
		return Envelope{}, false
	}
	return rec.env, true
}

func (m *Memory) Get(ctx context.Context, msg Message, opts GetOptions) (any, error) {
	key := string(BuildMessageKey(msg))
	deadline := time.Now().Add(opts.Timeout)

	for {
		if env, ok := m.load(key); ok {
			return decodeEnvelope(env, opts.Propagate)
		}
		if !opts.Block {
			return nil, colonyerr.ErrResultMissing
		}
		if time.Now().After(deadline) {
			return nil, colonyerr.ErrResultTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (m *Memory) GetAny(ctx context.Context, msgs []Message, opts GetOptions) iter.Seq[AnyResult] {
	return func(yield func(AnyResult) bool) {
		outstanding := make(map[string]Message, len(msgs))
		for _, msg := range msgs {
			outstanding[string(BuildMessageKey(msg))] = msg
		}
		deadline := time.Now().Add(opts.Timeout)

		for len(outstanding) > 0 {
			progressed := false
			for key, msg := range outstanding {
				env, ok := m.load(key)
				if !ok {
					continue
				}
				value, err := decodeEnvelope(env, opts.Propagate)
				ar := AnyResult{Value: value, Err: err}
				if opts.WithTask {
					ar.Msg = msg
				}
				if !yield(ar) {
					return
				}
				delete(outstanding, key)
				progressed = true
			}
			if len(outstanding) == 0 {
				return
			}
			if !opts.Block && time.Now().After(deadline) {
				if progressed {
					yield(AnyResult{Err: colonyerr.ErrResultTimeout})
				} else {
					yield(AnyResult{Err: colonyerr.ErrResultMissing})
				}
				return
			}
			if !progressed {
				select {
				case <-ctx.Done():
					yield(AnyResult{Err: ctx.Err()})
					return
				case <-time.After(10 * time.Millisecond):
				}
				if opts.Block && time.Now().After(deadline) {
					yield(AnyResult{Err: colonyerr.ErrResultTimeout})
					return
				}
			}
		}
	}
}
