package master

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/cuemby/colony/pkg/colonyerr"
)

// writePIDFile enforces the PID file contract: if the file exists and
// names a different live process, fail; if it names this process (a
// reload re-exec), proceed; garbage content also fails.
func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	if existing, err := os.ReadFile(path); err == nil {
		pid, perr := strconv.Atoi(strings.TrimSpace(string(existing)))
		if perr != nil {
			return fmt.Errorf("%w: pid file %s contains garbage", colonyerr.ErrConfig, path)
		}
		if pid != os.Getpid() && processAlive(pid) {
			return fmt.Errorf("%w: pid file %s names live process %d", colonyerr.ErrConfig, path, pid)
		}
	}
	data := []byte(strconv.Itoa(os.Getpid()))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%w: write pid file: %v", colonyerr.ErrConfig, err)
	}
	return nil
}

func removePIDFile(path string) {
	if path == "" {
		return
	}
	_ = os.Remove(path)
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
