package results

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cuemby/colony/pkg/colonyerr"
)

// DefaultNamespace prefixes every key this backend writes.
const DefaultNamespace = "colony-results"

// Redis is a durable result backend. Each fingerprint maps to a
// single-element list: store is a DELETE+LPUSH+PEXPIRE
// pipelined transaction so no partial record is ever visible; a
// blocking read is BRPOPLPUSH (pop right, push back left) so the
// record survives for future readers; a non-blocking read is LINDEX 0.
//
// Timeouts are given in milliseconds but truncated to whole seconds by
// the transport — this limitation is preserved rather than papered over
// with a finer-grained polling fallback.
type Redis struct {
	client    redis.UniversalClient
	namespace string
}

// NewRedis wraps an existing client. namespace defaults to
// DefaultNamespace when empty.
func NewRedis(client redis.UniversalClient, namespace string) *Redis {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Redis{client: client, namespace: namespace}
}

func (r *Redis) key(msg Message) string {
	return fmt.Sprintf("%s:%s", r.namespace, BuildMessageKey(msg))
}

func (r *Redis) store(ctx context.Context, msg Message, env Envelope, ttl time.Duration) error {
	payload, err := marshalEnvelope(env)
	if err != nil {
		return err
	}
	key := r.key(msg)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.LPush(ctx, key, payload)
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return &colonyerr.BackendError{Op: "store", Err: err}
	}
	return nil
}

func (r *Redis) Store(ctx context.Context, msg Message, value any, ttl time.Duration) error {
	env, err := encodeValue(value)
	if err != nil {
		return err
	}
	return r.store(ctx, msg, env, ttl)
}

func (r *Redis) StoreException(ctx context.Context, msg Message, exc *colonyerr.RemoteError, ttl time.Duration) error {
	return r.store(ctx, msg, encodeException(exc), ttl)
}

func (r *Redis) Get(ctx context.Context, msg Message, opts GetOptions) (any, error) {
	key := r.key(msg)

	if !opts.Block {
		payload, err := r.client.LIndex(ctx, key, 0).Result()
		if err == redis.Nil {
			return nil, colonyerr.ErrResultMissing
		}
		if err != nil {
			return nil, &colonyerr.BackendError{Op: "lindex", Err: err}
		}
		return decodePayload([]byte(payload), opts.Propagate)
	}

	wait := time.Duration(secondsTimeout(opts.Timeout)) * time.Second
	payload, err := r.client.BRPopLPush(ctx, key, key, wait).Result()
	if err == redis.Nil {
		return nil, colonyerr.ErrResultTimeout
	}
	if err != nil {
		return nil, &colonyerr.BackendError{Op: "brpoplpush", Err: err}
	}
	return decodePayload([]byte(payload), opts.Propagate)
}

// GetAny implements a multi-key blocking pop: compute a per-iteration
// deadline-bounded wait, BRPOP across every still-outstanding key,
// LPUSH the payload back onto its key for idempotent replay, decode and
// yield, then drop the key from the outstanding set.
func (r *Redis) GetAny(ctx context.Context, msgs []Message, opts GetOptions) iter.Seq[AnyResult] {
	return func(yield func(AnyResult) bool) {
		keyToMsg := make(map[string]Message, len(msgs))
		for _, msg := range msgs {
			keyToMsg[r.key(msg)] = msg
		}
		outstanding := make([]string, 0, len(keyToMsg))
		for k := range keyToMsg {
			outstanding = append(outstanding, k)
		}
		deadline := time.Now().Add(opts.Timeout)

		for len(outstanding) > 0 {
			var waitSeconds int64 = 1
			if opts.Block {
				waitSeconds = int64(time.Until(deadline).Seconds())
				if waitSeconds < 1 {
					waitSeconds = 1
				}
			}

			res, err := r.client.BRPop(ctx, time.Duration(waitSeconds)*time.Second, outstanding...).Result()
			if err == redis.Nil {
				if opts.Block {
					yield(AnyResult{Err: colonyerr.ErrResultTimeout})
					return
				}
				yield(AnyResult{Err: colonyerr.ErrResultMissing})
				return
			}
			if err != nil {
				yield(AnyResult{Err: &colonyerr.BackendError{Op: "brpop", Err: err}})
				return
			}

			key, payload := res[0], res[1]
			if err := r.client.LPush(ctx, key, payload).Err(); err != nil {
				yield(AnyResult{Err: &colonyerr.BackendError{Op: "lpush-replay", Err: err}})
				return
			}

			value, decodeErr := decodePayload([]byte(payload), opts.Propagate)
			ar := AnyResult{Value: value, Err: decodeErr}
			if opts.WithTask {
				ar.Msg = keyToMsg[key]
			}
			if !yield(ar) {
				return
			}

			outstanding = removeKey(outstanding, key)

			if !opts.Block && len(outstanding) > 0 && time.Now().After(deadline) {
				yield(AnyResult{Err: colonyerr.ErrResultTimeout})
				return
			}
		}
	}
}

func removeKey(keys []string, target string) []string {
	out := keys[:0]
	for _, k := range keys {
		if k != target {
			out = append(out, k)
		}
	}
	return out
}

func marshalEnvelope(env Envelope) ([]byte, error) {
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, &colonyerr.BackendError{Op: "marshal-envelope", Err: err}
	}
	return payload, nil
}
