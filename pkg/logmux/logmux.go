package logmux

import (
	"bytes"
	"io"
	"strings"
	"sync"
)

// Multiplexer drains byte chunks from a set of pipe read endpoints and
// writes them to one sink, one goroutine per endpoint fanning into a
// single writer goroutine so the sink never sees interleaved, torn
// lines. It is meant to run in the foreground of the process that owns
// it, not as a background daemon, since a file sink must be flushed
// before the owner exits.
type Multiplexer struct {
	sink io.Writer

	mu    sync.Mutex
	added []endpoint

	notify   chan struct{}
	lines    chan string
	finished chan struct{}
	stopCh   chan struct{}
}

type endpoint struct {
	name   string
	reader io.ReadCloser
}

// New creates a Multiplexer writing formatted chunks to sink.
func New(sink io.Writer) *Multiplexer {
	return &Multiplexer{
		sink:     sink,
		lines:    make(chan string, 64),
		notify:   make(chan struct{}, 1),
		finished: make(chan struct{}, 64),
		stopCh:   make(chan struct{}),
	}
}

// Add registers an endpoint. Safe to call before Run or at any point
// concurrently with Run: an endpoint added after Run has started a
// respawned worker's pipe, for instance gets its own pump goroutine
// the next time Run's loop wakes on notify, rather than being silently
// dropped.
func (m *Multiplexer) Add(name string, r io.ReadCloser) {
	m.mu.Lock()
	m.added = append(m.added, endpoint{name: name, reader: r})
	m.mu.Unlock()
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Run drains every added endpoint, including ones registered after Run
// has already started, writing each non-empty chunk to the sink as it
// arrives. It blocks until Stop is called and every pump still running
// at that point has hit EOF, a broken pipe, or another I/O error.
func (m *Multiplexer) Run() {
	active := m.spawnPending()
	stopping := false
	for {
		if stopping && active == 0 {
			m.drain()
			return
		}
		select {
		case line := <-m.lines:
			_, _ = io.WriteString(m.sink, line)
		case <-m.notify:
			active += m.spawnPending()
		case <-m.finished:
			active--
		case <-m.stopCh:
			stopping = true
			active += m.spawnPending()
		}
	}
}

// Stop tells Run to return once every pump running at the time of the
// call has drained. Call only once no further Add calls are expected:
// an endpoint added after Stop is pumped only if Run has not returned.
func (m *Multiplexer) Stop() {
	close(m.stopCh)
}

func (m *Multiplexer) spawnPending() int {
	m.mu.Lock()
	endpoints := m.added
	m.added = nil
	m.mu.Unlock()

	for _, ep := range endpoints {
		go m.pump(ep)
	}
	return len(endpoints)
}

// drain flushes any chunks queued between the last select iteration and
// the pumps finishing, so a burst right before EOF is never dropped.
func (m *Multiplexer) drain() {
	for {
		select {
		case line := <-m.lines:
			_, _ = io.WriteString(m.sink, line)
		default:
			return
		}
	}
}

func (m *Multiplexer) pump(ep endpoint) {
	defer ep.reader.Close()

	buf := make([]byte, 4096)
	for {
		n, err := ep.reader.Read(buf)
		if n > 0 {
			if line := formatChunk(buf[:n]); line != "" {
				m.lines <- line
			}
		}
		if err != nil {
			m.finished <- struct{}{}
			return
		}
	}
}

// formatChunk decodes a raw chunk as UTF-8 with replacement for invalid
// bytes, trims trailing newlines, and appends a single "\n". An empty
// result after trimming is reported as "" so the caller can suppress it,
// collapsing writers that emit a message and its newline separately.
func formatChunk(raw []byte) string {
	valid := bytes.ToValidUTF8(raw, []byte("�"))
	trimmed := strings.TrimRight(string(valid), "\n")
	if trimmed == "" {
		return ""
	}
	return trimmed + "\n"
}
