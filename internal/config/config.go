package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/pflag"

	"github.com/cuemby/colony/pkg/colonyerr"
)

// Config is the validated result of parsing the command-line surface.
type Config struct {
	// BrokerRef is "module" or "module:dotted.attr", resolved against
	// pkg/registry rather than a dynamic import.
	BrokerRef string
	// Modules are additional user modules to register fork/task
	// targets from before the worker pool starts.
	Modules []string

	Processes int
	Threads   int
	Paths     []string
	Queues    []string

	PIDFile  string
	LogFile  string
	UseSpawn bool
	Forks    []string

	WatchDir        string
	WatchUsePolling bool

	Verbose int // 0 = warn, 1 = info (-v), 2 = debug (-vv)

	ResultsBackend   string // "memory://" or "redis://host:port/db"
	ResultsNamespace string
	MetricsAddr      string
	RPCAddr          string
	QueuePrefetch    int

	MaxTasksPerChild  int64
	MaxMemoryPerChild int64
}

// DefaultResultsNamespace is used when --results-namespace is unset.
const DefaultResultsNamespace = "colony-results"

// Flags registers the full CLI surface onto fs, returning a Config
// whose fields are populated once fs has been parsed (the caller parses
// fs itself, the same way cobra.Command.RunE receives already-parsed
// flags).
func Flags(fs *pflag.FlagSet) *Config {
	c := &Config{}

	fs.IntVarP(&c.Processes, "processes", "p", runtime.NumCPU(), "number of worker processes")
	fs.IntVarP(&c.Threads, "threads", "t", 8, "threads per worker process")
	fs.StringArrayVarP(&c.Paths, "path", "P", []string{"."}, "prepended to the module import path")
	fs.StringArrayVarP(&c.Queues, "queue", "Q", nil, "restrict workers to these queues")
	fs.StringVar(&c.PIDFile, "pid-file", "", "write the master PID to this file")
	fs.StringVar(&c.LogFile, "log-file", "", "append multiplexed logs to this file instead of stderr")
	fs.BoolVar(&c.UseSpawn, "use-spawn", false, "force the spawn start method instead of the platform default")
	fs.StringArrayVarP(&c.Forks, "fork", "f", nil, "extra long-lived fork subprocess, module:symbol")
	fs.StringVar(&c.WatchDir, "watch", "", "restart workers when files under this directory change")
	fs.BoolVar(&c.WatchUsePolling, "watch-use-polling", false, "use polling instead of inotify/kqueue for --watch")
	fs.CountVarP(&c.Verbose, "verbose", "v", "increase log verbosity (-v info, -vv debug)")

	fs.StringVar(&c.ResultsBackend, "results-backend", "memory://", "result backend DSN: memory:// or redis://host:port/db")
	fs.StringVar(&c.ResultsNamespace, "results-namespace", DefaultResultsNamespace, "result backend key namespace")
	fs.StringVar(&c.MetricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this HOST:PORT")
	fs.StringVar(&c.RPCAddr, "rpc-addr", "", "if set, serve the control-plane gRPC API on this unix socket path")
	fs.IntVar(&c.QueuePrefetch, "queue-prefetch", 0, "broker-internal prefetch hint, not interpreted by colony")

	fs.Int64Var(&c.MaxTasksPerChild, "max-tasks-per-child", 0, "restart a worker after this many processed tasks, 0 disables")
	fs.Int64Var(&c.MaxMemoryPerChild, "max-memory-per-child", 0, "restart a worker once its RSS reaches this many bytes, 0 disables")

	return c
}

// Bind fills in BrokerRef and Modules from cobra's positional args and
// validates the whole config. args[0] is the broker reference; any
// remaining entries are user modules.
func (c *Config) Bind(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: a broker reference is required", colonyerr.ErrConfig)
	}
	c.BrokerRef = args[0]
	c.Modules = args[1:]
	return c.Validate()
}

// Validate enforces a non-empty broker reference, positive
// process/thread counts, and a recognized results backend scheme.
func (c *Config) Validate() error {
	if c.BrokerRef == "" {
		return fmt.Errorf("%w: broker reference must not be empty", colonyerr.ErrConfig)
	}
	if c.Processes <= 0 {
		return fmt.Errorf("%w: processes must be positive, got %d", colonyerr.ErrConfig, c.Processes)
	}
	if c.Threads <= 0 {
		return fmt.Errorf("%w: threads must be positive, got %d", colonyerr.ErrConfig, c.Threads)
	}
	if c.ResultsNamespace == "" {
		c.ResultsNamespace = DefaultResultsNamespace
	}
	switch {
	case strings.HasPrefix(c.ResultsBackend, "memory://"):
	case strings.HasPrefix(c.ResultsBackend, "redis://"):
	default:
		return fmt.Errorf("%w: unrecognized results-backend scheme %q", colonyerr.ErrConfig, c.ResultsBackend)
	}
	return nil
}
