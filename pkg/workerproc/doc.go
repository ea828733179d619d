// Package workerproc is the worker subprocess entrypoint: it brings up
// a broker reference, publishes the canteen fork list on first boot,
// runs a fixed-size goroutine pool pulling messages off the broker, and
// honors termination and lifetime-middleware restart requests.
//
// The master spawns this by re-executing its own binary with
// environment variables selecting the worker role and slot; the child
// process's stdout/stderr are wired directly to the log pipe by the
// exec.Cmd the master constructs, standing in for the self-dup2 a
// forked process would otherwise need to perform.
package workerproc
