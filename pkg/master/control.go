package master

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/colony/pkg/colonyerr"
	"github.com/cuemby/colony/pkg/metrics"
	"github.com/cuemby/colony/pkg/rpc"
	"github.com/cuemby/colony/pkg/store"
)

func workerSnapshotOf(ws *workerSlot) store.WorkerSnapshot {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return store.WorkerSnapshot{
		Slot:         ws.slot,
		PID:          ws.pid,
		Restarts:     ws.restarts,
		LastExitCode: ws.lastExit,
		UpdatedAt:    now(),
	}
}

func forkSnapshotOf(fs *forkSlot) store.ForkSnapshot {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return store.ForkSnapshot{
		Path:      fs.path,
		PID:       fs.pid,
		UpdatedAt: now(),
	}
}

// now is the single time.Now call site in pkg/master, so tests can see
// snapshots are timestamped without asserting on wall-clock values.
var now = time.Now

// ListWorkers implements rpc.ColonyControl.
func (m *Master) ListWorkers(_ context.Context, _ *rpc.Empty) (*rpc.ListWorkersReply, error) {
	m.workersMu.Lock()
	defer m.workersMu.Unlock()

	reply := &rpc.ListWorkersReply{Workers: make([]rpc.WorkerInfo, 0, len(m.workers))}
	for _, ws := range m.workers {
		ws.mu.Lock()
		reply.Workers = append(reply.Workers, rpc.WorkerInfo{
			Slot:     ws.slot,
			PID:      ws.pid,
			Running:  ws.running,
			Restarts: ws.restarts,
		})
		ws.mu.Unlock()
	}
	return reply, nil
}

// ListForks implements rpc.ColonyControl.
func (m *Master) ListForks(_ context.Context, _ *rpc.Empty) (*rpc.ListForksReply, error) {
	m.forksMu.Lock()
	defer m.forksMu.Unlock()

	reply := &rpc.ListForksReply{Forks: make([]rpc.ForkInfo, 0, len(m.forks))}
	for _, fs := range m.forks {
		fs.mu.Lock()
		reply.Forks = append(reply.Forks, rpc.ForkInfo{Path: fs.path, PID: fs.pid})
		fs.mu.Unlock()
	}
	return reply, nil
}

// RestartWorker implements rpc.ColonyControl by asking the supervision
// loop to terminate one worker slot; the loop's own respawn logic brings
// it back the same way an unexpected death would.
func (m *Master) RestartWorker(_ context.Context, req *rpc.RestartWorkerRequest) (*rpc.Empty, error) {
	m.workersMu.Lock()
	var target *workerSlot
	for _, ws := range m.workers {
		if ws.slot == req.Slot {
			target = ws
			break
		}
	}
	m.workersMu.Unlock()

	if target == nil {
		return nil, fmt.Errorf("%w: no such worker slot %d", colonyerr.ErrConfig, req.Slot)
	}

	target.mu.Lock()
	proc := target.cmd.Process
	running := target.running
	target.mu.Unlock()
	if running && proc != nil {
		_ = proc.Signal(sigterm)
	}
	return &rpc.Empty{}, nil
}

// WorkerSlots implements metrics.Source.
func (m *Master) WorkerSlots() []metrics.WorkerSlot {
	m.workersMu.Lock()
	defer m.workersMu.Unlock()

	out := make([]metrics.WorkerSlot, 0, len(m.workers))
	for _, ws := range m.workers {
		ws.mu.Lock()
		out = append(out, metrics.WorkerSlot{Slot: ws.slot, Running: ws.running})
		ws.mu.Unlock()
	}
	return out
}

// ForkCount implements metrics.Source.
func (m *Master) ForkCount() int {
	m.forksMu.Lock()
	defer m.forksMu.Unlock()
	return len(m.forks)
}

// CanteenEntryCount implements metrics.Source.
func (m *Master) CanteenEntryCount() int {
	if m.canteen == nil {
		return 0
	}
	return len(m.canteen.Get())
}
