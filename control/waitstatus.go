package control

import "golang.org/x/sys/unix"

// isGroupStopSignal reports whether status is the kernel's encoding of
// "stopped by the thread-stop signal", the condition spec.md §9's Open
// Questions calls out as a magic constant (4991, i.e.
// 0x7f | (unix.SIGSTOP << 8)) in the reference source. Decoding it through
// unix.WaitStatus's own methods instead of the literal keeps the check
// portable across encodings.
func isGroupStopSignal(status unix.WaitStatus) bool {
	return status.Stopped() && status.StopSignal() == unix.SIGSTOP
}
