package broker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/colony/pkg/results"
)

var errClosed = errors.New("broker: closed")

type memEnvelope struct {
	msg     results.Message
	payload []byte
}

// Memory is a process-local broker backed by Go channels, one per
// queue created on first use. It exists for tests and colonyctl's
// smoke-test mode.
type Memory struct {
	mu         sync.Mutex
	queues     map[string]chan memEnvelope
	middleware []MiddlewareSpec
	closed     bool
	closeOnce  sync.Once
	done       chan struct{}
}

// NewMemory constructs an empty in-memory broker. middleware is
// returned verbatim by Middleware, for canteen bootstrap in tests.
func NewMemory(middleware []MiddlewareSpec) *Memory {
	return &Memory{
		queues:     make(map[string]chan memEnvelope),
		middleware: middleware,
		done:       make(chan struct{}),
	}
}

func (m *Memory) Middleware() []MiddlewareSpec { return m.middleware }

func (m *Memory) EmitAfter(_ context.Context, _ string) error {
	return nil
}

func (m *Memory) queue(name string) chan memEnvelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[name]
	if !ok {
		q = make(chan memEnvelope, 1024)
		m.queues[name] = q
	}
	return q
}

func (m *Memory) Enqueue(ctx context.Context, queueName string, msg results.Message, payload []byte) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.Queue = queueName
	select {
	case m.queue(queueName) <- memEnvelope{msg: msg, payload: payload}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Memory) Fetch(ctx context.Context, queues []string) (results.Message, []byte, error) {
	cases := make([]chan memEnvelope, len(queues))
	for i, q := range queues {
		cases[i] = m.queue(q)
	}

	switch len(cases) {
	case 0:
		<-ctx.Done()
		return results.Message{}, nil, ctx.Err()
	case 1:
		select {
		case env := <-cases[0]:
			return env.msg, env.payload, nil
		case <-m.done:
			return results.Message{}, nil, errClosed
		case <-ctx.Done():
			return results.Message{}, nil, ctx.Err()
		}
	default:
		return m.fetchMany(ctx, cases)
	}
}

// fetchMany polls multiple channels round-robin since Go's select
// cannot range over a slice of channels directly.
func (m *Memory) fetchMany(ctx context.Context, cases []chan memEnvelope) (results.Message, []byte, error) {
	for {
		for _, c := range cases {
			select {
			case env := <-c:
				return env.msg, env.payload, nil
			default:
			}
		}
		select {
		case <-m.done:
			return results.Message{}, nil, errClosed
		case <-ctx.Done():
			return results.Message{}, nil, ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (m *Memory) Close() error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()
		close(m.done)
	})
	return nil
}
