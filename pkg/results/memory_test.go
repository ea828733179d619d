package results_test

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/colony/pkg/colonyerr"
	"github.com/cuemby/colony/pkg/results"
)

func TestMemoryStoreAndGet(t *testing.T) {
	m := results.NewMemory()
	ctx := context.Background()
	msg := results.Message{ID: "abc-1", Actor: "send_email", Queue: "default"}

	if err := m.Store(ctx, msg, map[string]any{"ok": true}, time.Minute); err != nil {
		t.Fatalf("Store: %v", err)
	}

	v, err := m.Get(ctx, msg, results.GetOptions{})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	got, ok := v.(map[string]any)
	if !ok || got["ok"] != true {
		t.Fatalf("Get returned %#v", v)
	}
}

func TestMemoryGetMissingNonBlocking(t *testing.T) {
	m := results.NewMemory()
	_, err := m.Get(context.Background(), results.Message{ID: "nope"}, results.GetOptions{})
	if err != colonyerr.ErrResultMissing {
		t.Fatalf("want ErrResultMissing, got %v", err)
	}
}

func TestMemoryGetBlockingTimeout(t *testing.T) {
	m := results.NewMemory()
	_, err := m.Get(context.Background(), results.Message{ID: "nope"}, results.GetOptions{
		Block:   true,
		Timeout: 30 * time.Millisecond,
	})
	if err != colonyerr.ErrResultTimeout {
		t.Fatalf("want ErrResultTimeout, got %v", err)
	}
}

func TestMemoryStoreExceptionPropagate(t *testing.T) {
	m := results.NewMemory()
	ctx := context.Background()
	msg := results.Message{ID: "abc-2"}
	exc := colonyerr.NewRemoteError("ValueError", "builtins", []any{"bad input"})

	if err := m.StoreException(ctx, msg, exc, time.Minute); err != nil {
		t.Fatalf("StoreException: %v", err)
	}

	_, err := m.Get(ctx, msg, results.GetOptions{Propagate: true})
	var remote *colonyerr.RemoteError
	if err == nil {
		t.Fatal("expected an error with Propagate=true")
	}
	if !asRemoteError(err, &remote) {
		t.Fatalf("want *colonyerr.RemoteError, got %T: %v", err, err)
	}
	if remote.TypeName != "ValueError" {
		t.Fatalf("TypeName = %q", remote.TypeName)
	}
}

func TestMemoryStoreExceptionNoPropagate(t *testing.T) {
	m := results.NewMemory()
	ctx := context.Background()
	msg := results.Message{ID: "abc-3"}
	exc := colonyerr.NewRemoteError("ValueError", "builtins", nil)

	if err := m.StoreException(ctx, msg, exc, time.Minute); err != nil {
		t.Fatalf("StoreException: %v", err)
	}

	v, err := m.Get(ctx, msg, results.GetOptions{Propagate: false})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	remote, ok := v.(*colonyerr.RemoteError)
	if !ok {
		t.Fatalf("want *colonyerr.RemoteError value, got %T", v)
	}
	if remote.TypeName != "ValueError" {
		t.Fatalf("TypeName = %q", remote.TypeName)
	}
}

func TestMemoryGetAnyCompletesAllMessages(t *testing.T) {
	m := results.NewMemory()
	ctx := context.Background()
	msgs := []results.Message{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	for i, msg := range msgs {
		if err := m.Store(ctx, msg, i, time.Minute); err != nil {
			t.Fatalf("Store: %v", err)
		}
	}

	seen := map[string]bool{}
	for ar := range m.GetAny(ctx, msgs, results.GetOptions{WithTask: true}) {
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

func TestMemoryGetAnyPartialTimesOut(t *testing.T) {
	m := results.NewMemory()
	ctx := context.Background()
	present := results.Message{ID: "present"}
	absent := results.Message{ID: "absent"}

	if err := m.Store(ctx, present, "done", time.Minute); err != nil {
		t.Fatalf("Store: %v", err)
	}

	var gotTimeout bool
	for ar := range m.GetAny(ctx, []results.Message{present, absent}, results.GetOptions{
		Block:   true,
		Timeout: 30 * time.Millisecond,
	}) {
		if ar.Err == colonyerr.ErrResultTimeout {
			gotTimeout = true
		}
	}
	if !gotTimeout {
		t.Fatal("expected a timeout for the never-stored message")
	}
}

func asRemoteError(err error, target **colonyerr.RemoteError) bool {
	if re, ok := err.(*colonyerr.RemoteError); ok {
		*target = re
		return true
	}
	return false
}
