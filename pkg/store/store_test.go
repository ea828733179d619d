package store_test

import (
	"testing"
	"time"

	"github.com/cuemby/colony/pkg/store"
)

func TestSaveAndListWorkers(t *testing.T) {
	dir := t.TempDir()
	s, err := store.Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	now := time.Now()
	if err := s.SaveWorker(store.WorkerSnapshot{Slot: 1, PID: 100, Restarts: 0, LastExitCode: -1, UpdatedAt: now}); err != nil {
		t.Fatalf("SaveWorker: %v", err)
	}
	if err := s.SaveWorker(store.WorkerSnapshot{Slot: 0, PID: 99, Restarts: 2, LastExitCode: 253, UpdatedAt: now}); err != nil {
		t.Fatalf("SaveWorker: %v", err)
	}

	workers, err := s.ListWorkers()
	if err != nil {
		t.Fatalf("ListWorkers: %v", err)
	}
	if len(workers) != 2 {
		t.Fatalf("len(workers) = %d, want 2", len(workers))
	}
	if workers[0].Slot != 0 || workers[1].Slot != 1 {
		t.Fatalf("workers not ordered by slot: %+v", workers)
	}
	if workers[0].Restarts != 2 {
		t.Errorf("workers[0].Restarts = %d, want 2", workers[0].Restarts)
	}
}

func TestSaveWorkerUpsertsSameSlot(t *testing.T) {
	dir := t.TempDir()
	s, err := store.Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	_ = s.SaveWorker(store.WorkerSnapshot{Slot: 0, PID: 1, Restarts: 0})
	_ = s.SaveWorker(store.WorkerSnapshot{Slot: 0, PID: 2, Restarts: 1})

	workers, err := s.ListWorkers()
	if err != nil {
		t.Fatalf("ListWorkers: %v", err)
	}
	if len(workers) != 1 {
		t.Fatalf("len(workers) = %d, want 1", len(workers))
	}
	if workers[0].PID != 2 || workers[0].Restarts != 1 {
		t.Errorf("worker = %+v, want PID=2 Restarts=1", workers[0])
	}
}

func TestSaveAndListForks(t *testing.T) {
	dir := t.TempDir()
	s, err := store.Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if err := s.SaveFork(store.ForkSnapshot{Path: "mymodule:Watch", PID: 55, UpdatedAt: time.Now()}); err != nil {
		t.Fatalf("SaveFork: %v", err)
	}
	forks, err := s.ListForks()
	if err != nil {
		t.Fatalf("ListForks: %v", err)
	}
	if len(forks) != 1 || forks[0].Path != "mymodule:Watch" {
		t.Fatalf("forks = %+v", forks)
	}
}
