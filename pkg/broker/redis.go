package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/cuemby/colony/pkg/results"
)

// DefaultKeyPrefix namespaces the lists this broker reads and writes.
const DefaultKeyPrefix = "colony-broker"

type redisEnvelope struct {
	ID      string          `json:"id"`
	Actor   string          `json:"actor"`
	Queue   string          `json:"queue"`
	Payload json.RawMessage `json:"payload"`
}

// Redis is a thin wrapper over github.com/redis/go-redis/v9 issuing
// BRPOP/LPUSH against a list per queue. It provides only enough surface
// to drive a worker loop and fork discovery in tests; ack/nack, retry,
// and rate limiting remain out of scope.
type Redis struct {
	client     redis.UniversalClient
	prefix     string
	middleware []MiddlewareSpec
}

// NewRedis wraps client. prefix defaults to DefaultKeyPrefix when empty.
func NewRedis(client redis.UniversalClient, prefix string, middleware []MiddlewareSpec) *Redis {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Redis{client: client, prefix: prefix, middleware: middleware}
}

func (r *Redis) Middleware() []MiddlewareSpec { return r.middleware }

func (r *Redis) EmitAfter(_ context.Context, _ string) error {
	return nil
}

func (r *Redis) listKey(queue string) string {
	return fmt.Sprintf("%s:%s", r.prefix, queue)
}

func (r *Redis) Enqueue(ctx context.Context, queue string, msg results.Message, payload []byte) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.Queue = queue

	env := redisEnvelope{ID: msg.ID, Actor: msg.Actor, Queue: queue, Payload: payload}
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return r.client.LPush(ctx, r.listKey(queue), raw).Err()
}

// Fetch waits at most one second per call; when nothing arrives in that
// time it returns context.DeadlineExceeded even if ctx is still live.
func (r *Redis) Fetch(ctx context.Context, queues []string) (results.Message, []byte, error) {
	keys := make([]string, len(queues))
	for i, q := range queues {
		keys[i] = r.listKey(q)
	}

	res, err := r.client.BRPop(ctx, 1*time.Second, keys...).Result()
	if err == redis.Nil {
		return results.Message{}, nil, context.DeadlineExceeded
	}
	if err != nil {
		return results.Message{}, nil, err
	}

	var env redisEnvelope
	if err := json.Unmarshal([]byte(res[1]), &env); err != nil {
		return results.Message{}, nil, err
	}
	msg := results.Message{ID: env.ID, Actor: env.Actor, Queue: env.Queue}
	return msg, env.Payload, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
