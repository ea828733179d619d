// Package colonyerr defines the closed error taxonomy shared by the
// master, the worker and fork subprocess entrypoints, and the result
// backends, plus the process exit codes each maps to.
package colonyerr
