// Package logmux collects log chunks from a set of subprocess pipe
// endpoints and serializes them to one sink: one capture goroutine per
// pipe, generalized to an arbitrary, changing set of endpoints rather
// than one process's fixed stdout/stderr pair.
package logmux
