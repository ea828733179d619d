package master

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

type exitEvent struct {
	worker   bool
	slot     int
	forkPath string
	code     int
}

type workerSlot struct {
	mu       sync.Mutex
	slot     int
	cmd      *exec.Cmd
	pid      int
	running  bool
	restarts int
	lastExit int
}

type forkSlot struct {
	mu   sync.Mutex
	path string
	cmd  *exec.Cmd
	pid  int
}

// spawnWorker re-execs the current binary in the worker role for the
// given slot, wiring its stdout/stderr to the log multiplexer and
// reporting its exit on events when it terminates.
func (m *Master) spawnWorker(slot int, events chan<- exitEvent) (*workerSlot, error) {
	cmd, pr, pw, err := m.reexecCommand(EnvRole+"="+RoleWorker, fmt.Sprintf("%s=%d", EnvWorkerSlot, slot))
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, fmt.Errorf("master: start worker %d: %w", slot, err)
	}
	pw.Close()

	ws := &workerSlot{slot: slot, cmd: cmd, pid: cmd.Process.Pid, running: true}
	m.logmux.Add(fmt.Sprintf("worker-%d", slot), pr)
	m.saveWorkerSnapshot(ws)

	go func() {
		waitErr := cmd.Wait()
		events <- exitEvent{worker: true, slot: slot, code: exitCodeOf(waitErr)}
	}()
	return ws, nil
}

// spawnFork re-execs the current binary in the fork role for path.
func (m *Master) spawnFork(path string, events chan<- exitEvent) (*forkSlot, error) {
	cmd, pr, pw, err := m.reexecCommand(EnvRole+"="+RoleFork, EnvForkPath+"="+path)
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, fmt.Errorf("master: start fork %s: %w", path, err)
	}
	pw.Close()

	fs := &forkSlot{path: path, cmd: cmd, pid: cmd.Process.Pid}
	m.logmux.Add("fork-"+path, pr)
	m.saveForkSnapshot(fs)

	go func() {
		waitErr := cmd.Wait()
		events <- exitEvent{worker: false, forkPath: path, code: exitCodeOf(waitErr)}
	}()
	return fs, nil
}

// reexecCommand builds the exec.Cmd every child shares: the current
// executable, the current argv unchanged (the child ignores it and reads
// its options from the environment instead), the current environment
// plus childEnv and the role overrides, and a pipe standing in for
// the dup2'd stdout/stderr fd the source process forks with. The
// returned pw must be closed by the caller once Start has handed its
// descriptor to the child, so the multiplexer sees EOF when the child
// (the pipe's only remaining writer) exits.
func (m *Master) reexecCommand(env ...string) (cmd *exec.Cmd, pr io.ReadCloser, pw io.WriteCloser, err error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("master: resolve self executable: %w", err)
	}

	r, w, err := os.Pipe()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("master: pipe: %w", err)
	}

	cmd = exec.Command(exe, m.origArgs...)
	cmd.Env = append(os.Environ(), m.childEnv()...)
	cmd.Env = append(cmd.Env, env...)
	cmd.Stdout = w
	cmd.Stderr = w
	return cmd, r, w, nil
}

func exitCodeOf(waitErr error) int {
	if waitErr == nil {
		return 0
	}
	if ee, ok := waitErr.(*exec.ExitError); ok {
		return ee.ExitCode()
	}
	return -1
}

// broadcastSignal sends sig to every live worker and fork process.
func (m *Master) broadcastSignal(sig func(*os.Process)) {
	m.workersMu.Lock()
	for _, ws := range m.workers {
		ws.mu.Lock()
		if ws.running && ws.cmd.Process != nil {
			sig(ws.cmd.Process)
		}
		ws.mu.Unlock()
	}
	m.workersMu.Unlock()

	m.forksMu.Lock()
	for _, fs := range m.forks {
		fs.mu.Lock()
		if fs.cmd.Process != nil {
			sig(fs.cmd.Process)
		}
		fs.mu.Unlock()
	}
	m.forksMu.Unlock()
}

func (m *Master) saveWorkerSnapshot(ws *workerSlot) {
	if m.store == nil {
		return
	}
	_ = m.store.SaveWorker(workerSnapshotOf(ws))
}

func (m *Master) saveForkSnapshot(fs *forkSlot) {
	if m.store == nil {
		return
	}
	_ = m.store.SaveFork(forkSnapshotOf(fs))
}

func (m *Master) liveChildCount() int {
	count := 0
	m.workersMu.Lock()
	for _, ws := range m.workers {
		ws.mu.Lock()
		if ws.running {
			count++
		}
		ws.mu.Unlock()
	}
	m.workersMu.Unlock()

	m.forksMu.Lock()
	count += len(m.forks)
	m.forksMu.Unlock()
	return count
}
