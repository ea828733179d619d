package middleware

import (
	"os"
	"sync/atomic"

	"github.com/prometheus/procfs"
)

// Lifetime hooks the broker's after-process-message event.
// AfterProcessMessage reports whether the cap has been reached; true
// means the caller should request a worker restart.
//
// Caps are strict floors: the call that crosses the threshold still
// returns true for the message that crossed it, but the worker loop
// must not pull another message into the same process afterward.
type Lifetime interface {
	AfterProcessMessage() bool
}

// TaskCount restarts a worker once it has processed MaxTasks messages.
// The source's trigger condition compared max_tasks_per_child against
// the counter backwards ("cap >= processed", true from the very first
// task); the intended behavior, implemented here, is
// processed >= MaxTasks.
type TaskCount struct {
	max       int64
	processed atomic.Int64
}

// NewTaskCount constructs a counter middleware. max <= 0 disables it:
// AfterProcessMessage always returns false.
func NewTaskCount(max int64) *TaskCount {
	return &TaskCount{max: max}
}

func (t *TaskCount) AfterProcessMessage() bool {
	if t.max <= 0 {
		return false
	}
	n := t.processed.Add(1)
	return n >= t.max
}

// Processed returns the current count, for tests and metrics.
func (t *TaskCount) Processed() int64 { return t.processed.Load() }

// Memory restarts a worker once its resident set size reaches
// MaxBytes. The source compares against an undefined sibling field;
// the intended behavior, implemented here, is rss >= MaxBytes against
// the process's own max_memory_per_child cap.
type Memory struct {
	max int64
	pid int
	fs  procfs.FS
}

// NewMemory constructs a memory-cap middleware sampling the calling
// process's own RSS. max <= 0 disables it.
func NewMemory(max int64) (*Memory, error) {
	m := &Memory{max: max, pid: os.Getpid()}
	if max <= 0 {
		return m, nil
	}
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, err
	}
	m.fs = fs
	return m, nil
}

func (m *Memory) AfterProcessMessage() bool {
	if m.max <= 0 {
		return false
	}
	rss, err := m.sample()
	if err != nil {
		return false
	}
	return rss >= m.max
}

func (m *Memory) sample() (int64, error) {
	proc, err := m.fs.Proc(m.pid)
	if err != nil {
		return 0, err
	}
	stat, err := proc.Stat()
	if err != nil {
		return 0, err
	}
	return int64(stat.ResidentMemory()), nil
}
