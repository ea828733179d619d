package master

import (
	"os"
	"os/signal"
	"syscall"
)

var sigterm = syscall.SIGTERM

// blockStartupSignals ignores the signals the master eventually handles
// so that one delivered mid-spawn (before the handling goroutine exists)
// is simply dropped rather than taking the default terminate action.
// Go has no direct pthread_sigmask equivalent for the main goroutine;
// signal.Ignore followed later by signal.Notify for the same signal is
// the documented way to get the same "unblock once ready" effect.
func blockStartupSignals() {
	signal.Ignore(syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
}

// unblockSignals re-enables delivery of the signals blocked at startup,
// routing them to ch from this point on.
func unblockSignals(ch chan<- os.Signal) {
	signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
}

func sendSignal(sig os.Signal) func(*os.Process) {
	return func(p *os.Process) {
		_ = p.Signal(sig)
	}
}
