package logmux_test

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/cuemby/colony/pkg/logmux"
)

func newPipe(t *testing.T) (io.WriteCloser, io.ReadCloser) {
	t.Helper()
	r, w := io.Pipe()
	return w, r
}

func TestMultiplexerWritesLinesFromMultipleEndpoints(t *testing.T) {
	var sink bytes.Buffer
	m := logmux.New(&sink)

	w1, r1 := newPipe(t)
	w2, r2 := newPipe(t)
	m.Add("worker-0", r1)
	m.Add("worker-1", r2)

	done := make(chan struct{})
	go func() {
		m.Run()
		close(done)
	}()

	go func() {
		_, _ = w1.Write([]byte("hello from 0\n"))
		w1.Close()
	}()
	go func() {
		_, _ = w2.Write([]byte("hello from 1\n"))
		w2.Close()
	}()

	m.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop and both endpoints closing")
	}

	out := sink.String()
	if !bytes.Contains([]byte(out), []byte("hello from 0\n")) {
		t.Errorf("missing line from worker-0 in %q", out)
	}
	if !bytes.Contains([]byte(out), []byte("hello from 1\n")) {
		t.Errorf("missing line from worker-1 in %q", out)
	}
}

func TestMultiplexerSuppressesEmptyChunks(t *testing.T) {
	var sink bytes.Buffer
	m := logmux.New(&sink)

	w, r := newPipe(t)
	m.Add("worker-0", r)

	done := make(chan struct{})
	go func() {
		m.Run()
		close(done)
	}()

	go func() {
		_, _ = w.Write([]byte("\n"))
		_, _ = w.Write([]byte("real line\n"))
		w.Close()
	}()

	m.Stop()
	<-done

	if sink.String() != "real line\n" {
		t.Errorf("sink = %q, want %q", sink.String(), "real line\n")
	}
}

func TestMultiplexerReturnsAfterStopOnceEndpointsDrain(t *testing.T) {
	var sink bytes.Buffer
	m := logmux.New(&sink)

	w, r := newPipe(t)
	m.Add("only", r)
	w.Close()

	done := make(chan struct{})
	go func() {
		m.Run()
		close(done)
	}()

	m.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return once its only endpoint closed after Stop")
	}
}

// TestMultiplexerPumpsEndpointAddedAfterRunStarts guards against the
// respawn case: spawnWorker calls Add with a fresh pipe long after the
// master's logmux goroutine is already blocked in Run, and that
// endpoint must still be drained rather than left to fill its pipe
// buffer and block the child's stdout/stderr writes.
func TestMultiplexerPumpsEndpointAddedAfterRunStarts(t *testing.T) {
	var sink bytes.Buffer
	m := logmux.New(&sink)

	done := make(chan struct{})
	go func() {
		m.Run()
		close(done)
	}()

	// Give Run a moment to reach its select loop with no endpoints at
	// all, mirroring the window between master startup and a respawn.
	time.Sleep(20 * time.Millisecond)

	w, r := newPipe(t)
	m.Add("worker-0-respawn", r)

	go func() {
		_, _ = w.Write([]byte("post-start line\n"))
		w.Close()
	}()

	m.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not drain an endpoint added after it started")
	}

	if sink.String() != "post-start line\n" {
		t.Errorf("sink = %q, want %q", sink.String(), "post-start line\n")
	}
}
