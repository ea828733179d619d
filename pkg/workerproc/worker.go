package workerproc

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/cuemby/colony/pkg/broker"
	"github.com/cuemby/colony/pkg/canteen"
	"github.com/cuemby/colony/pkg/clog"
	"github.com/cuemby/colony/pkg/colonyerr"
	"github.com/cuemby/colony/pkg/middleware"
	"github.com/cuemby/colony/pkg/registry"
	"github.com/cuemby/colony/pkg/results"
)

// TaskHandler dispatches one fetched message. How a task function is
// actually invoked is out of scope; this is the seam a registered actor
// dispatcher plugs into.
type TaskHandler func(ctx context.Context, msg results.Message, payload []byte)

// Options configures one worker slot.
type Options struct {
	Slot      int
	BrokerRef string
	Modules   []string
	Threads   int
	Queues    []string
	Canteen   *canteen.Canteen
	Handler   TaskHandler
	TaskCap   int64 // lifetime middleware: max tasks per child, <= 0 disables
	MemCap    int64 // lifetime middleware: max RSS bytes per child, <= 0 disables
}

// Run executes the worker subprocess entrypoint and returns the
// process exit code the caller should os.Exit with.
func Run(ctx context.Context, opts Options) int {
	log := clog.WithWorker(opts.Slot)

	b, ok := registry.Lookup[broker.Broker](opts.BrokerRef)
	if !ok {
		log.Error().Str("broker_ref", opts.BrokerRef).Msg("broker reference not registered")
		return colonyerr.ExitImport
	}
	for _, m := range opts.Modules {
		if _, ok := registry.Lookup[any](m); !ok {
			log.Error().Str("module", m).Msg("module not registered")
			return colonyerr.ExitImport
		}
	}

	if err := b.EmitAfter(ctx, "process_boot"); err != nil {
		log.Error().Err(err).Msg("broker connect failed")
		return colonyerr.ExitConnect
	}

	publishForks(opts.Canteen, b)

	taskCount := middleware.NewTaskCount(opts.TaskCap)
	memCap, err := middleware.NewMemory(opts.MemCap)
	if err != nil {
		log.Warn().Err(err).Msg("memory middleware unavailable, disabling")
		memCap, _ = middleware.NewMemory(0)
	}

	var running atomic.Bool
	running.Store(true)
	var restart atomic.Bool
	var restartedOnMemCap atomic.Bool

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGHUP)
	signal.Ignore(os.Interrupt)
	go func() {
		delivered := 0
		for range sigCh {
			delivered++
			if delivered == 1 {
				log.Info().Msg("terminate received, stopping after in-flight tasks")
				running.Store(false)
				continue
			}
			log.Warn().Msg("second terminate received, killing")
			os.Exit(colonyerr.ExitKilled)
		}
	}()

	fetchCtx, stopFetching := context.WithCancel(ctx)
	defer stopFetching()

	var wg sync.WaitGroup
	for t := 0; t < opts.Threads; t++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for running.Load() && !restart.Load() {
				msg, payload, err := b.Fetch(fetchCtx, opts.Queues)
				if err != nil {
					time.Sleep(time.Second)
					continue
				}
				if opts.Handler != nil {
					opts.Handler(ctx, msg, payload)
				}
				switch {
				case taskCount.AfterProcessMessage():
					restart.Store(true)
				case memCap.AfterProcessMessage():
					restartedOnMemCap.Store(true)
					restart.Store(true)
				}
			}
		}()
	}

	for running.Load() && !restart.Load() {
		time.Sleep(time.Second)
	}
	running.Store(false)
	stopFetching()
	wg.Wait()

	if err := b.Close(); err != nil {
		log.Warn().Err(err).Msg("broker close failed")
	}

	if restart.Load() {
		if restartedOnMemCap.Load() {
			return colonyerr.ExitRestartMemCap
		}
		return colonyerr.ExitRestartTaskCap
	}
	return colonyerr.ExitOK
}

func publishForks(c *canteen.Canteen, b broker.Broker) {
	if c == nil || c.Initialized() {
		return
	}
	var forks []string
	for _, spec := range b.Middleware() {
		forks = append(forks, spec.Forks...)
	}
	_ = canteen.Publish(c, forks)
}
