// Package forkproc is the fork subprocess entrypoint: a long-lived
// auxiliary child that runs one registered function to completion,
// supervised by the master but never restarted on its own initiative.
// It shares the worker entrypoint's signal discipline but has no thread
// pool and no broker of its own.
package forkproc
