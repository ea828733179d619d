// Package broker provides the two concrete collaborators a worker binds
// to: a process-local, channel-backed queue for tests and smoke runs,
// and a thin Redis list wrapper for exercising the same surface against
// a real store. Ack/nack, retry, and rate limiting are out of scope;
// only enough surface exists to drive a worker loop and publish the
// fork-function paths middleware declares.
package broker
