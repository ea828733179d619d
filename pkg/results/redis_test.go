package results_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/cuemby/colony/pkg/colonyerr"
	"github.com/cuemby/colony/pkg/results"
)

func newTestRedis(t *testing.T) *results.Redis {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })
	return results.NewRedis(client, "")
}

func TestRedisStoreAndGetNonBlocking(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()
	msg := results.Message{ID: "job-1"}

	if err := r.Store(ctx, msg, 42, time.Minute); err != nil {
		t.Fatalf("Store: %v", err)
	}

	v, err := r.Get(ctx, msg, results.GetOptions{})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != float64(42) {
		t.Fatalf("Get = %#v, want 42", v)
	}
}

func TestRedisGetMissingNonBlocking(t *testing.T) {
	r := newTestRedis(t)
	_, err := r.Get(context.Background(), results.Message{ID: "missing"}, results.GetOptions{})
	if err != colonyerr.ErrResultMissing {
		t.Fatalf("want ErrResultMissing, got %v", err)
	}
}

func TestRedisStoreOverwritesPriorValue(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()
	msg := results.Message{ID: "job-2"}

	if err := r.Store(ctx, msg, "first", time.Minute); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := r.Store(ctx, msg, "second", time.Minute); err != nil {
		t.Fatalf("Store: %v", err)
	}

	v, err := r.Get(ctx, msg, results.GetOptions{})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != "second" {
		t.Fatalf("Get = %#v, want %q", v, "second")
	}
}

func TestRedisStoreExceptionPropagate(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()
	msg := results.Message{ID: "job-3"}
	exc := colonyerr.NewRemoteError("RuntimeError", "myapp.actors", []any{"boom"})

	if err := r.StoreException(ctx, msg, exc, time.Minute); err != nil {
		t.Fatalf("StoreException: %v", err)
	}

	_, err := r.Get(ctx, msg, results.GetOptions{Propagate: true})
	remote, ok := err.(*colonyerr.RemoteError)
	if !ok {
		t.Fatalf("want *colonyerr.RemoteError, got %T: %v", err, err)
	}
	if remote.TypeName != "RuntimeError" {
		t.Fatalf("TypeName = %q", remote.TypeName)
	}
}

// TestRedisGetAnyReplaysForLaterReaders confirms the LPUSH-back after
// GetAny harvests a result: the key is still readable, so a second
// caller polling the same message set observes it too.
func TestRedisGetAnyReplaysForLaterReaders(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()
	msg := results.Message{ID: "job-4"}

	if err := r.Store(ctx, msg, "value", time.Minute); err != nil {
		t.Fatalf("Store: %v", err)
	}

	var harvested int
	for ar := range r.GetAny(ctx, []results.Message{msg}, results.GetOptions{}) {
		if ar.Err != nil {
			t.Fatalf("unexpected error: %v", ar.Err)
		}
		harvested++
	}
	if harvested != 1 {
		t.Fatalf("harvested = %d, want 1", harvested)
	}

	v, err := r.Get(ctx, msg, results.GetOptions{})
	if err != nil {
		t.Fatalf("Get after GetAny: %v", err)
	}
	if v != "value" {
		t.Fatalf("Get after GetAny = %#v", v)
	}
}

func TestRedisGetAnyCompletesAllMessages(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()
	msgs := []results.Message{{ID: "m1"}, {ID: "m2"}, {ID: "m3"}}

	for i, msg := range msgs {
		if err := r.Store(ctx, msg, i, time.Minute); err != nil {
			t.Fatalf("Store: %v", err)
		}
	}

	seen := map[string]bool{}
	for ar := range r.GetAny(ctx, msgs, results.GetOptions{Block: true, Timeout: 2 * time.Second, WithTask: true}) {
		if ar.Err != nil {
			t.Fatalf("unexpected error: %v", ar.Err)
		}
		seen[ar.Msg.ID] = true
	}
	for _, msg := range msgs {
		if !seen[msg.ID] {
			t.Fatalf("missing result for %s", msg.ID)
		}
	}
}

func TestRedisGetBlockingTimeout(t *testing.T) {
	r := newTestRedis(t)
	_, err := r.Get(context.Background(), results.Message{ID: "never"}, results.GetOptions{
		Block:   true,
		Timeout: time.Second,
	})
	if err != colonyerr.ErrResultTimeout {
		t.Fatalf("want ErrResultTimeout, got %v", err)
	}
}
