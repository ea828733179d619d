package master

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/colony/internal/config"
	"github.com/cuemby/colony/pkg/canteen"
	"github.com/cuemby/colony/pkg/clog"
	"github.com/cuemby/colony/pkg/colonyerr"
	"github.com/cuemby/colony/pkg/logmux"
	"github.com/cuemby/colony/pkg/metrics"
	"github.com/cuemby/colony/pkg/rpc"
	"github.com/cuemby/colony/pkg/store"
)

// Master owns one supervision run: the worker/fork subprocess table, the
// log multiplexer, and the optional control-plane and metrics servers.
// A Master is single-use; call New again for a reload re-exec rather
// than reusing one.
type Master struct {
	cfg      *config.Config
	origArgs []string
	log      zerolog.Logger

	canteen     *canteen.Canteen
	canteenPath string
	store       *store.Store
	logmux      *logmux.Multiplexer
	watcher     *fileWatcher

	workersMu sync.Mutex
	workers   []*workerSlot

	forksMu sync.Mutex
	forks   []*forkSlot

	rpcSrv        *rpc.Server
	collector     *metrics.Collector
	metricsHTTP   *http.Server
	resultsCloser io.Closer
}

// New prepares a Master from a validated configuration. origArgs is the
// argv (excluding argv[0]) used to re-exec this binary, both for worker
// and fork children and for an in-place reload.
func New(cfg *config.Config, origArgs []string) *Master {
	return &Master{
		cfg:      cfg,
		origArgs: origArgs,
		log:      clog.WithComponent("master"),
	}
}

// childEnv encodes the configuration a re-exec'd worker or fork child
// needs to reconstruct its own workerproc.Options/forkproc.Options,
// standing in for the source's in-process attribute inheritance across
// an os.fork().
func (m *Master) childEnv() []string {
	return []string{
		EnvBrokerRef + "=" + m.cfg.BrokerRef,
		EnvModules + "=" + strings.Join(m.cfg.Modules, ","),
		EnvQueues + "=" + strings.Join(m.cfg.Queues, ","),
		EnvThreads + "=" + strconv.Itoa(m.cfg.Threads),
		EnvTaskCap + "=" + strconv.FormatInt(m.cfg.MaxTasksPerChild, 10),
		EnvMemCap + "=" + strconv.FormatInt(m.cfg.MaxMemoryPerChild, 10),
		EnvCanteenPath + "=" + m.canteenPath,
	}
}

// Run executes the full startup, supervision, and shutdown sequence and
// returns the process exit code the caller should os.Exit with. It
// blocks until every worker has settled on a non-restart outcome or a
// terminate signal has propagated through the whole slot table, unless
// a reload was requested, in which case it never returns (syscall.Exec
// replaces the process image).
func (m *Master) Run(ctx context.Context) int {
	if err := writePIDFile(m.cfg.PIDFile); err != nil {
		m.log.Error().Err(err).Msg("pid file conflict")
		return colonyerr.ExitPIDFile
	}
	defer removePIDFile(m.cfg.PIDFile)

	m.canteenPath = filepath.Join(os.TempDir(), fmt.Sprintf("colony-canteen-%d", os.Getpid()))
	c, err := canteen.Open(m.canteenPath, canteen.DefaultCapacity)
	if err != nil {
		m.log.Error().Err(err).Msg("allocate canteen")
		m.registerCanteenHealth(err)
		return colonyerr.ExitConnect
	}
	m.canteen = c
	m.registerCanteenHealth(nil)
	defer c.Close()
	defer c.Unlink()

	m.registerBrokerHealth()
	_, resultsCloser := m.openResultsBackend(ctx)
	m.resultsCloser = resultsCloser
	if resultsCloser != nil {
		defer resultsCloser.Close()
	}

	if st, err := store.Open(storeDir(m.cfg.PIDFile)); err != nil {
		m.log.Warn().Err(err).Msg("supervisor snapshot store unavailable, continuing without it")
	} else {
		m.store = st
		defer st.Close()
	}

	sink := os.Stderr
	var logFile *os.File
	if m.cfg.LogFile != "" {
		f, err := os.OpenFile(m.cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			m.log.Error().Err(err).Msg("open log file")
			return colonyerr.ExitImport
		}
		logFile = f
	}
	var muxSink = io.Writer(sink)
	if logFile != nil {
		muxSink = logFile
	}
	m.logmux = logmux.New(muxSink)

	events := make(chan exitEvent, m.cfg.Processes+len(m.cfg.Forks)+1)

	for i := 0; i < m.cfg.Processes; i++ {
		ws, err := m.spawnWorker(i, events)
		if err != nil {
			m.log.Error().Err(err).Int("slot", i).Msg("spawn worker failed")
			m.broadcastSignal(sendSignal(sigterm))
			if logFile != nil {
				logFile.Close()
			}
			return colonyerr.ExitConnect
		}
		m.workersMu.Lock()
		m.workers = append(m.workers, ws)
		m.workersMu.Unlock()
	}

	forkPaths := append([]string{}, m.cfg.Forks...)
	forkPaths = append(forkPaths, m.canteen.Get()...)
	for _, path := range forkPaths {
		fs, err := m.spawnFork(path, events)
		if err != nil {
			m.log.Error().Err(err).Str("fork", path).Msg("spawn fork failed")
			continue
		}
		m.forksMu.Lock()
		m.forks = append(m.forks, fs)
		m.forksMu.Unlock()
	}

	blockStartupSignals()

	logmuxDone := make(chan struct{})
	go func() {
		m.logmux.Run()
		close(logmuxDone)
	}()

	if m.cfg.WatchDir != "" {
		w, err := newFileWatcher(m.cfg.WatchDir, m.cfg.WatchUsePolling)
		if err != nil {
			m.log.Warn().Err(err).Msg("file watcher unavailable, continuing without it")
		} else {
			m.watcher = w
		}
	}

	if m.cfg.RPCAddr != "" {
		srv, err := rpc.Listen(m.cfg.RPCAddr, m)
		if err != nil {
			m.log.Warn().Err(err).Msg("control-plane rpc server unavailable")
		} else {
			m.rpcSrv = srv
			go srv.Serve()
		}
	}

	m.collector = metrics.NewCollector(m)
	m.collector.Start()
	if m.cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.HandleFunc("/healthz", metrics.HealthHandler())
		mux.HandleFunc("/readyz", metrics.ReadyHandler())
		mux.HandleFunc("/livez", metrics.LivenessHandler())
		m.metricsHTTP = &http.Server{Addr: m.cfg.MetricsAddr, Handler: mux}
		go m.metricsHTTP.ListenAndServe()
	}

	sigCh := make(chan os.Signal, 4)
	unblockSignals(sigCh)

	exitCode, reload := m.supervise(ctx, events, sigCh)

	m.collector.Stop()
	if m.metricsHTTP != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = m.metricsHTTP.Shutdown(shutdownCtx)
		cancel()
	}
	if m.rpcSrv != nil {
		m.rpcSrv.Stop()
	}
	if m.watcher != nil {
		m.watcher.Stop()
	}

	// supervise only returns once every worker and fork has exited, so
	// no further respawn will call logmux.Add; safe to tell Run to
	// drain what's running and return.
	m.logmux.Stop()

	select {
	case <-logmuxDone:
	case <-time.After(5 * time.Second):
		m.log.Warn().Msg("log multiplexer did not drain before shutdown timeout")
	}
	if logFile != nil {
		logFile.Close()
	}

	if reload {
		removePIDFile(m.cfg.PIDFile)
		exe, err := os.Executable()
		if err != nil {
			m.log.Error().Err(err).Msg("reload: resolve self executable")
			return exitCode
		}
		argv := append([]string{exe}, m.origArgs...)
		if err := syscall.Exec(exe, argv, os.Environ()); err != nil {
			m.log.Error().Err(err).Msg("reload: exec failed")
			return exitCode
		}
	}
	return exitCode
}

// supervise is a channel-based join loop: one goroutine per spawned
// child already feeds exitEvent into events (see spawnWorker/spawnFork),
// so the loop simply selects between a child exiting and a signal
// arriving.
func (m *Master) supervise(ctx context.Context, events chan exitEvent, sigCh chan os.Signal) (exitCode int, reload bool) {
	running := true
	terminateDeliveries := 0

	var watchEvents <-chan struct{}
	if m.watcher != nil {
		watchEvents = m.watcher.Events()
	}

	for {
		if !running && m.liveChildCount() == 0 {
			return exitCode, reload
		}

		select {
		case <-ctx.Done():
			if running {
				running = false
				m.broadcastSignal(sendSignal(sigterm))
			}

		case sig := <-sigCh:
			terminateDeliveries++
			switch sig {
			case syscall.SIGHUP:
				reload = true
				fallthrough
			case syscall.SIGTERM, syscall.SIGINT:
				if running {
					m.log.Info().Str("signal", sig.String()).Msg("terminate received, stopping children")
					running = false
				}
				m.broadcastSignal(sendSignal(sigterm))
				if terminateDeliveries >= 2 {
					m.log.Warn().Msg("second terminate received, killing children")
					m.broadcastSignal(sendSignal(syscall.SIGKILL))
				}
			}

		case <-watchEvents:
			if running {
				m.log.Info().Msg("watched files changed, reloading")
				reload = true
				running = false
				m.broadcastSignal(sendSignal(sigterm))
			}

		case ev := <-events:
			if ev.worker {
				m.handleWorkerExit(ev, events, &exitCode, &running)
			} else {
				m.handleForkExit(ev)
			}
		}
	}
}

func (m *Master) handleWorkerExit(ev exitEvent, events chan exitEvent, exitCode *int, running *bool) {
	m.workersMu.Lock()
	var ws *workerSlot
	for _, w := range m.workers {
		if w.slot == ev.slot {
			ws = w
			break
		}
	}
	m.workersMu.Unlock()
	if ws == nil {
		return
	}

	ws.mu.Lock()
	ws.running = false
	ws.lastExit = ev.code
	ws.mu.Unlock()
	m.saveWorkerSnapshot(ws)

	if reason, ok := restartReason(ev.code); ok && *running {
		metrics.WorkerRestartsTotal.WithLabelValues(strconv.Itoa(ev.slot), reason).Inc()
		newWs, err := m.spawnWorker(ev.slot, events)
		if err != nil {
			m.log.Error().Err(err).Int("slot", ev.slot).Msg("respawn worker failed")
			*exitCode = colonyerr.ExitConnect
			*running = false
			m.broadcastSignal(sendSignal(sigterm))
			return
		}
		ws.mu.Lock()
		newWs.restarts = ws.restarts + 1
		ws.mu.Unlock()

		m.workersMu.Lock()
		for i, w := range m.workers {
			if w.slot == ev.slot {
				m.workers[i] = newWs
				break
			}
		}
		m.workersMu.Unlock()
		m.saveWorkerSnapshot(newWs)
		return
	}

	if *running {
		metrics.WorkerRestartsTotal.WithLabelValues(strconv.Itoa(ev.slot), "crash").Inc()
		m.log.Error().Int("slot", ev.slot).Int("exit_code", ev.code).Msg("worker exited unexpectedly, stopping all children")
		*exitCode = ev.code
		*running = false
		m.broadcastSignal(sendSignal(sigterm))
	}
}

// restartReason maps a worker's lifetime-cap exit code to the metrics
// label identifying which cap fired. ok is false for any other exit
// code, which handleWorkerExit treats as an unexpected death.
func restartReason(code int) (reason string, ok bool) {
	switch code {
	case colonyerr.ExitRestartTaskCap:
		return "cap", true
	case colonyerr.ExitRestartMemCap:
		return "memory", true
	default:
		return "", false
	}
}

func (m *Master) handleForkExit(ev exitEvent) {
	m.forksMu.Lock()
	for i, fs := range m.forks {
		if fs.path == ev.forkPath {
			m.forks = append(m.forks[:i], m.forks[i+1:]...)
			break
		}
	}
	m.forksMu.Unlock()
	m.log.Warn().Str("fork", ev.forkPath).Int("exit_code", ev.code).Msg("fork subprocess exited")
}

func storeDir(pidFile string) string {
	if pidFile == "" {
		return "."
	}
	return filepath.Dir(pidFile)
}
