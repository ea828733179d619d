// Package store persists a diagnostic snapshot of the master's
// supervision state (worker slots, restart counters, fork paths) to a
// BoltDB file, one bucket per entity. It is not used to resume
// supervision after an unclean master crash: children are never
// re-adopted, only the snapshot is available for inspection after the
// fact, through Store.ListWorkers and Store.ListForks. pkg/rpc reports
// the master's live state, not this snapshot.
package store
