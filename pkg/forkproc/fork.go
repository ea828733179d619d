package forkproc

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/colony/pkg/clog"
	"github.com/cuemby/colony/pkg/colonyerr"
	"github.com/cuemby/colony/pkg/registry"
)

// Func is a fork target: a long-lived function that runs until ctx is
// canceled (the soft-stop signal) and returns the process exit code.
type Func func(ctx context.Context) int

// Options configures one fork slot.
type Options struct {
	Path string // "module:symbol" registry ref, also used for logging
}

// Run executes the fork subprocess entrypoint and returns the process
// exit code the caller should os.Exit with.
func Run(parent context.Context, opts Options) int {
	log := clog.WithFork(opts.Path)

	fn, ok := registry.Lookup[Func](opts.Path)
	if !ok {
		log.Error().Str("fork_path", opts.Path).Msg("fork target not registered")
		return colonyerr.ExitImport
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGHUP)
	signal.Ignore(os.Interrupt)
	go func() {
		delivered := 0
		for range sigCh {
			delivered++
			if delivered == 1 {
				log.Info().Msg("terminate received, canceling fork function")
				cancel()
				continue
			}
			log.Warn().Msg("second terminate received, killing")
			os.Exit(colonyerr.ExitKilled)
		}
	}()

	return fn(ctx)
}
