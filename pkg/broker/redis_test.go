package broker_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/cuemby/colony/pkg/broker"
	"github.com/cuemby/colony/pkg/results"
)

func newTestRedisBroker(t *testing.T) *broker.Redis {
	t.Helper()
	srv := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })
	return broker.NewRedis(client, "", nil)
}

func TestRedisEnqueueFetch(t *testing.T) {
	b := newTestRedisBroker(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := b.Enqueue(ctx, "default", results.Message{Actor: "send_email"}, []byte(`{"x":1}`)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	msg, payload, err := b.Fetch(ctx, []string{"default"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if msg.Actor != "send_email" {
		t.Fatalf("Actor = %q", msg.Actor)
	}
	if string(payload) != `{"x":1}` {
		t.Fatalf("payload = %s", payload)
	}
}

func TestRedisFetchEmptyTimesOut(t *testing.T) {
	b := newTestRedisBroker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, _, err := b.Fetch(ctx, []string{"nothing"})
	if err == nil {
		t.Fatal("expected a timeout error for an empty queue")
	}
}
