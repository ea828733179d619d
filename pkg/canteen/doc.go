// Package canteen implements the cross-process bulletin board workers
// use, once, during first-worker boot, to publish fork-function paths
// back to the master. Both constructors wrap golang.org/x/sys/unix.Mmap,
// since the standard library has no shared-memory primitive: New maps
// an anonymous MAP_SHARED region for process-local and test use, and
// Open maps a file-backed region at a path the master hands its
// re-exec'd children through COLONY_CANTEEN_PATH, because an anonymous
// mapping is only inherited across fork() and does not survive the
// exec() half of exec.Command starting a child.
package canteen
