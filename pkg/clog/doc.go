/*
Package clog provides structured logging for the master, workers, and
fork subprocesses using zerolog.

# Usage

	import "github.com/cuemby/colony/pkg/clog"

	clog.Init(clog.Config{
		Level:      clog.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	clog.Info("master starting")

	workerLog := clog.WithWorker(3)
	workerLog.Info().Msg("worker booted")

	forkLog := clog.WithFork("myapp.forks:watch_filesystem")
	forkLog.Error().Err(err).Msg("fork subprocess exited unexpectedly")

# Console format

The non-JSON console writer uses zerolog's ConsoleWriter layout
(timestamp, level, message) and prefixes each message with
`[PID <pid>] [main]`; the timestamp and level are not bracketed and
there is no logger-name field. Worker and fork children use the same
writer, so interleaved master and subprocess logs read consistently in
a terminal.

Do not log secrets, broker credentials, or full task payloads; use
.Str/.Int fields rather than string interpolation so downstream log
aggregation can filter and redact safely.
*/
package clog
