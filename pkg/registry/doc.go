// Package registry is colony's static replacement for the source's
// dynamic module import. Go has no importlib equivalent, so a broker
// factory, a fork target, or a task target is instead a Go function
// value registered at init() time under a "package:symbol" string key,
// mirroring the CLI's module:attr reference syntax.
package registry
