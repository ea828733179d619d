// Package middleware implements the lifetime policies that decide when
// a worker should be retired: a task-count cap and a resident-memory
// cap. Each translates into a request that the worker exit with its own
// colonyerr.ExitRestartTaskCap or ExitRestartMemCap code, so the master
// can label the respawn it triggers with the cap that actually fired.
package middleware
