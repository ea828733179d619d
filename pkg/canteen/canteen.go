//go:build unix

package canteen

import (
	"encoding/binary"
	"fmt"
	"os"
	"runtime"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DefaultCapacity is the default size of the shared region.
const DefaultCapacity = 64 * 1024

const (
	headerSize = 16 // initialized(4) + lock(4) + count(4) + used(4)
	maxItemLen = 4096
)

// Canteen is a fixed-capacity, cross-process bulletin board of short
// UTF-8 strings, backed by a shared memory mapping so that a worker
// process and its siblings all see the same region.
type Canteen struct {
	data []byte
	path string // non-empty for a file-backed mapping; owns unlinking it
}

// New creates an anonymous, process-local Canteen (DefaultCapacity if
// capacity is too small to hold the header). Useful for in-process
// tests; an anonymous MAP_ANON region does not survive exec() and so
// cannot be shared with a re-exec'd child the way Open's file-backed
// mapping can.
func New(capacity int) (*Canteen, error) {
	if capacity <= headerSize {
		capacity = DefaultCapacity
	}
	data, err := unix.Mmap(-1, 0, capacity, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("canteen: mmap: %w", err)
	}
	return &Canteen{data: data}, nil
}

// Open maps a file at path as the shared region, creating and sizing it
// if necessary. Unlike New, the mapping survives exec(): the master and
// every re-exec'd worker/fork child independently call Open on the same
// path and end up mapping the same pages, which is how this package
// stands in for the fork-inherited anonymous mapping the source process
// gets for free.
func Open(path string, capacity int) (*Canteen, error) {
	if capacity <= headerSize {
		capacity = DefaultCapacity
	}
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT, 0600)
	if err != nil {
		return nil, fmt.Errorf("canteen: open %s: %w", path, err)
	}
	defer unix.Close(fd)

	if err := unix.Ftruncate(fd, int64(capacity)); err != nil {
		return nil, fmt.Errorf("canteen: truncate %s: %w", path, err)
	}

	data, err := unix.Mmap(fd, 0, capacity, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("canteen: mmap %s: %w", path, err)
	}
	return &Canteen{data: data, path: path}, nil
}

// Close unmaps this process's view of the shared region; the master and
// each child close their own mapping. Call it once per Canteen.
func (c *Canteen) Close() error {
	return unix.Munmap(c.data)
}

// Unlink removes the backing file of a file-backed Canteen. A no-op for
// an anonymous (New'd) Canteen. Only the master should call this, after
// Close, once every child has exited.
func (c *Canteen) Unlink() error {
	if c.path == "" {
		return nil
	}
	return os.Remove(c.path)
}

func (c *Canteen) initFlag() *uint32 { return (*uint32)(unsafe.Pointer(&c.data[0])) }
func (c *Canteen) lockWord() *uint32 { return (*uint32)(unsafe.Pointer(&c.data[4])) }
func (c *Canteen) countWord() *uint32 { return (*uint32)(unsafe.Pointer(&c.data[8])) }
func (c *Canteen) usedWord() *uint32 { return (*uint32)(unsafe.Pointer(&c.data[12])) }

// Lock acquires the process-wide mutex. Contention only ever happens
// once, during the first-writer election at boot, so a busy-wait spin
// over the mapped lock word is acceptable; there is no futex wake.
func (c *Canteen) Lock() {
	w := c.lockWord()
	for !atomic.CompareAndSwapUint32(w, 0, 1) {
		runtime.Gosched()
	}
}

// Unlock releases the process-wide mutex.
func (c *Canteen) Unlock() {
	atomic.StoreUint32(c.lockWord(), 0)
}

// Initialized reports whether some worker has already published the
// fork list. Safe to call without holding Lock.
func (c *Canteen) Initialized() bool {
	return atomic.LoadUint32(c.initFlag()) == 1
}

// Add appends path if it is not already present. Callers must hold
// Lock. Returns an error if path would overflow the region.
func (c *Canteen) Add(path string) error {
	if len(path) > maxItemLen {
		return fmt.Errorf("canteen: entry %q exceeds max length %d", path, maxItemLen)
	}
	for _, existing := range c.items() {
		if existing == path {
			return nil
		}
	}

	used := atomic.LoadUint32(c.usedWord())
	need := 4 + len(path)
	if headerSize+int(used)+need > len(c.data) {
		return fmt.Errorf("canteen: capacity exceeded adding %q", path)
	}

	off := headerSize + int(used)
	binary.LittleEndian.PutUint32(c.data[off:], uint32(len(path)))
	copy(c.data[off+4:], path)

	atomic.StoreUint32(c.usedWord(), used+uint32(need))
	atomic.AddUint32(c.countWord(), 1)
	atomic.StoreUint32(c.initFlag(), 1)
	return nil
}

// Get returns the current item list in insertion order.
func (c *Canteen) Get() []string {
	return c.items()
}

// Publish performs a first-writer election: the first caller to observe
// the canteen uninitialized fills it from paths and marks it
// initialized; every other caller is a no-op.
func Publish(c *Canteen, paths []string) error {
	if c.Initialized() {
		return nil
	}
	c.Lock()
	defer c.Unlock()
	if c.Initialized() {
		return nil
	}
	for _, p := range paths {
		if err := c.Add(p); err != nil {
			return err
		}
	}
	atomic.StoreUint32(c.initFlag(), 1)
	return nil
}

func (c *Canteen) items() []string {
	count := atomic.LoadUint32(c.countWord())
	out := make([]string, 0, count)
	off := headerSize
	for i := uint32(0); i < count; i++ {
		if off+4 > len(c.data) {
			break
		}
		n := int(binary.LittleEndian.Uint32(c.data[off:]))
		off += 4
		if n < 0 || off+n > len(c.data) {
			break
		}
		out = append(out, string(c.data[off:off+n]))
		off += n
	}
	return out
}
