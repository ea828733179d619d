// Package results stores task results (values or serialized exceptions)
// keyed by a message fingerprint, with TTL, blocking/non-blocking
// retrieval, and "any-of" harvesting over a set of outstanding messages.
//
// Two implementations are provided: Redis, a durable backend built on
// github.com/redis/go-redis/v9 issuing a DELETE+LPUSH+PEXPIRE /
// BRPOPLPUSH / LINDEX sequence; and Memory, a process-local stub used
// by tests, colonyctl's smoke command, and the memory:// backend.
package results
