//go:build unix

package canteen

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"
)

func TestAddAndGet(t *testing.T) {
	c, err := New(DefaultCapacity)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	c.Lock()
	defer c.Unlock()

	if err := c.Add("pkg/forks:Ping"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := c.Add("pkg/forks:Pong"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	// Duplicate is a no-op, not a second entry.
	if err := c.Add("pkg/forks:Ping"); err != nil {
		t.Fatalf("Add duplicate: %v", err)
	}

	got := c.Get()
	want := []string{"pkg/forks:Ping", "pkg/forks:Pong"}
	if len(got) != len(want) {
		t.Fatalf("Get() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Get()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCapacityExceeded(t *testing.T) {
	c, err := New(headerSize + 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	c.Lock()
	defer c.Unlock()

	if err := c.Add("ab"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := c.Add("this one does not fit"); err == nil {
		t.Fatalf("expected capacity error")
	}
}

// TestFirstWriterElection simulates P workers racing Publish over one
// shared region: exactly one writer's paths must win.
func TestFirstWriterElection(t *testing.T) {
	c, err := New(DefaultCapacity)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	const workers = 16
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		i := i
		go func() {
			defer wg.Done()
			paths := []string{fmt.Sprintf("worker%d:Fork", i)}
			if err := Publish(c, paths); err != nil {
				t.Errorf("Publish: %v", err)
			}
		}()
	}
	wg.Wait()

	if !c.Initialized() {
		t.Fatalf("expected canteen to be initialized")
	}

	got := c.Get()
	sort.Strings(got)
	// Exactly one worker's single-path list should have won the race.
	if len(got) != 1 {
		t.Fatalf("Get() = %v, want exactly one entry from the election winner", got)
	}
}

// TestOpenSharesStateAcrossIndependentMappings simulates the
// master/child relationship: two independent Open calls against the
// same path must observe each other's writes, unlike two New calls.
func TestOpenSharesStateAcrossIndependentMappings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "canteen")

	master, err := Open(path, DefaultCapacity)
	if err != nil {
		t.Fatalf("Open master: %v", err)
	}
	defer master.Close()
	defer master.Unlink()

	child, err := Open(path, DefaultCapacity)
	if err != nil {
		t.Fatalf("Open child: %v", err)
	}
	defer child.Close()

	child.Lock()
	if err := child.Add("child:Fork"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	child.Unlock()

	if !master.Initialized() {
		t.Fatal("master should observe the child's write")
	}
	if got := master.Get(); len(got) != 1 || got[0] != "child:Fork" {
		t.Fatalf("master.Get() = %v, want [child:Fork]", got)
	}
}
