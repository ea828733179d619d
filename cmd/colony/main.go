// Command colony supervises a pool of worker processes and optional
// long-lived fork subprocesses consuming tasks from a broker.
//
// Before cobra ever sees argv, main checks COLONY_ROLE: a re-exec'd
// worker or fork child (spawned by pkg/master) sets it and is routed
// straight into workerproc.Run or forkproc.Run, bypassing the CLI
// surface entirely since a child reconstructs its options from the
// environment, not from reparsed flags.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/cuemby/colony/internal/config"
	"github.com/cuemby/colony/pkg/broker"
	"github.com/cuemby/colony/pkg/canteen"
	"github.com/cuemby/colony/pkg/clog"
	"github.com/cuemby/colony/pkg/colonyerr"
	"github.com/cuemby/colony/pkg/forkproc"
	"github.com/cuemby/colony/pkg/master"
	"github.com/cuemby/colony/pkg/metrics"
	"github.com/cuemby/colony/pkg/registry"
	"github.com/cuemby/colony/pkg/workerproc"
)

// Version is set via -ldflags at build time.
var Version = "dev"

func init() {
	// A bare in-memory broker so the binary is runnable out of the box
	// without a user module; a real deployment registers its own
	// broker.Broker under its own ref from an imported module's init().
	registry.Register("memory", broker.NewMemory(nil))
}

func main() {
	if role := os.Getenv(master.EnvRole); role != "" {
		os.Exit(runChild(role))
	}
	os.Exit(runCLI())
}

func runChild(role string) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var c *canteen.Canteen
	if path := os.Getenv(master.EnvCanteenPath); path != "" {
		opened, err := canteen.Open(path, canteen.DefaultCapacity)
		if err != nil {
			fmt.Fprintf(os.Stderr, "colony: open canteen: %v\n", err)
			return colonyerr.ExitConnect
		}
		defer opened.Close()
		c = opened
	}

	switch role {
	case master.RoleWorker:
		slot, _ := strconv.Atoi(os.Getenv(master.EnvWorkerSlot))
		clog.Init(clog.Config{Level: clog.InfoLevel})
		return workerproc.Run(ctx, workerproc.Options{
			Slot:      slot,
			BrokerRef: os.Getenv(master.EnvBrokerRef),
			Modules:   splitNonEmpty(os.Getenv(master.EnvModules)),
			Threads:   atoiOr(os.Getenv(master.EnvThreads), 1),
			Queues:    splitNonEmpty(os.Getenv(master.EnvQueues)),
			Canteen:   c,
			TaskCap:   atoi64Or(os.Getenv(master.EnvTaskCap), 0),
			MemCap:    atoi64Or(os.Getenv(master.EnvMemCap), 0),
		})
	case master.RoleFork:
		clog.Init(clog.Config{Level: clog.InfoLevel})
		return forkproc.Run(ctx, forkproc.Options{Path: os.Getenv(master.EnvForkPath)})
	default:
		fmt.Fprintf(os.Stderr, "colony: unrecognized %s=%q\n", master.EnvRole, role)
		return colonyerr.ExitImport
	}
}

func runCLI() int {
	fs := pflag.NewFlagSet("colony", pflag.ContinueOnError)
	cfg := config.Flags(fs)

	root := &cobra.Command{
		Use:     "colony BROKER [MODULE ...]",
		Short:   "Supervise worker and fork subprocesses consuming a task broker",
		Version: Version,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Bind(args); err != nil {
				return err
			}

			level := clog.WarnLevel
			switch {
			case cfg.Verbose >= 2:
				level = clog.DebugLevel
			case cfg.Verbose == 1:
				level = clog.InfoLevel
			}
			clog.Init(clog.Config{Level: level})
			metrics.SetVersion(Version)

			// Run owns the supervisor's own signal handling (blocked at
			// startup, then routed to its internal channel); ctx is only
			// the caller's outer cancellation knob, unused here since
			// the process has no other reason to stop the master early.
			m := master.New(cfg, os.Args[1:])
			os.Exit(m.Run(context.Background()))
			return nil
		},
	}
	root.Flags().AddFlagSet(fs)
	root.SilenceUsage = true
	root.SilenceErrors = true

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "colony: %v\n", err)
		return colonyerr.ExitCodeFor(err)
	}
	return colonyerr.ExitOK
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

func atoi64Or(s string, fallback int64) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
