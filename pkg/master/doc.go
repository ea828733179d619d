// Package master is the supervisor process: it spawns one worker
// subprocess per configured process slot plus one subprocess per fork
// target, multiplexes their log output, and supervises their lifetimes
// (restarting a worker that exits asking for a restart, tearing
// everything down on an unexpected death or a terminate signal).
//
// Workers and forks are not goroutines: each gets its own address
// space by re-executing the current binary (os.Args[0]) with an
// environment variable selecting the child's role, the same self-reexec
// pattern container init systems use when Go has no native
// fork+exec-into-same-image primitive. workerproc.Run and forkproc.Run
// are the entrypoints those re-exec'd children call into; see
// cmd/colony/main.go.
package master
