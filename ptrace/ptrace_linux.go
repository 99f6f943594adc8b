//go:build linux
// +build linux

package ptrace

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/tracecore-go/tracecore"
)

// WaitStatus is the raw kernel wait status for one (tid, event) pair.
type WaitStatus = unix.WaitStatus

// traceOptions is the set of PTRACE_O_TRACE* flags SetOptions installs so
// the control loop learns of every thread lifecycle event: fork, vfork,
// clone, exec and exit (spec minimum, see SPEC_FULL.md §7).
const traceOptions = unix.PTRACE_O_TRACECLONE |
	unix.PTRACE_O_TRACEFORK |
	unix.PTRACE_O_TRACEVFORK |
	unix.PTRACE_O_TRACEEXEC |
	unix.PTRACE_O_TRACEEXIT

// raw PTRACE_PEEKUSR/PTRACE_POKEUSR request numbers. golang.org/x/sys/unix
// does not wrap these two (they address the architecture-defined "user
// area", not the register-block or plain-memory requests it does wrap), so
// they are issued directly, the same way the pack's delve-family forks do
// (see 5d45cfe1_aarzilli-delve__proc-breakpoints_linux_amd64.go).
const (
	ptracePeekUser = 3
	ptracePokeUser = 6
)

// TraceMe requests that the kernel trace the calling process. It must be
// called from the thread that will become the tracee, before exec; the
// child/exec plumbing that would call it is outside the core's scope
// (spec.md §1), but the primitive is part of the TP surface regardless.
func TraceMe() error {
	if err := unix.PtraceTraceme(); err != nil {
		return tracecore.Error(err)
	}
	return nil
}

// Attach starts tracing tid.
func Attach(tid Tid) error {
	if err := unix.PtraceAttach(int(tid)); err != nil {
		return tracecore.Error(err)
	}
	return nil
}

// Detach stops tracing tid.
func Detach(tid Tid) error {
	if err := unix.PtraceDetach(int(tid)); err != nil {
		return tracecore.Error(err)
	}
	return nil
}

// SetOptions installs the trace options the control loop relies on to learn
// of thread lifecycle events.
func SetOptions(tid Tid) error {
	if err := unix.PtraceSetOptions(int(tid), traceOptions); err != nil {
		return tracecore.Error(err)
	}
	return nil
}

// PeekData reads one memory word from tid's address space at addr. The
// returned word may legitimately equal the all-ones sentinel; callers must
// inspect err, not word, to detect failure.
func PeekData(tid Tid, addr uintptr) (word uint64, err error) {
	buf := make([]byte, tracecore.SizeofWord)
	n, perr := unix.PtracePeekData(int(tid), addr, buf)
	if perr != nil {
		return ^uint64(0), tracecore.Error(perr)
	}
	if n != len(buf) {
		return ^uint64(0), tracecore.Errorf("short peek at %#x: got %d of %d bytes", addr, n, len(buf))
	}
	return tracecore.ReadWord(buf), nil
}

// PokeData writes one memory word into tid's address space at addr.
func PokeData(tid Tid, addr uintptr, word uint64) error {
	n, err := unix.PtracePokeData(int(tid), addr, tracecore.WriteWord(word))
	if err != nil {
		return tracecore.Error(err)
	}
	if n != tracecore.SizeofWord {
		return tracecore.Errorf("short poke at %#x: wrote %d of %d bytes", addr, n, tracecore.SizeofWord)
	}
	return nil
}

// PeekUser reads one word from tid's architecture-defined user area at the
// given byte offset. Used for debug registers by hardware breakpoint
// support, which lives outside the core (spec.md §1); TP exposes the
// primitive for completeness of the external surface (spec.md §6).
func PeekUser(tid Tid, offset uintptr) (uintptr, error) {
	// At the syscall level the kernel stores the peeked word at the address
	// passed as data, not in the return value.
	var word uintptr
	_, _, errno := syscall.Syscall6(syscall.SYS_PTRACE, ptracePeekUser, uintptr(tid), offset, uintptr(unsafe.Pointer(&word)), 0, 0)
	if errno != 0 {
		return 0, tracecore.Error(errno)
	}
	return word, nil
}

// PokeUser writes one word into tid's architecture-defined user area at the
// given byte offset.
func PokeUser(tid Tid, offset, word uintptr) error {
	_, _, errno := syscall.Syscall6(syscall.SYS_PTRACE, ptracePokeUser, uintptr(tid), offset, word, 0, 0)
	if errno != 0 {
		return tracecore.Error(errno)
	}
	return nil
}

// GetRegs reads tid's register bank from the kernel.
func GetRegs(tid Tid) (RegisterBank, error) {
	var regs RegisterBank
	if err := unix.PtraceGetRegs(int(tid), &regs); err != nil {
		return regs, tracecore.Error(err)
	}
	return regs, nil
}

// SetRegs writes a register bank to the kernel for tid.
func SetRegs(tid Tid, regs RegisterBank) error {
	if err := unix.PtraceSetRegs(int(tid), &regs); err != nil {
		return tracecore.Error(err)
	}
	return nil
}

// SingleStep makes tid execute exactly one instruction and stop again. The
// caller is responsible for waiting for the resulting stop.
func SingleStep(tid Tid) error {
	if err := unix.PtraceSingleStep(int(tid)); err != nil {
		return tracecore.Error(err)
	}
	return nil
}

// Cont resumes tid, optionally delivering sig (0 for no signal).
func Cont(tid Tid, sig int) error {
	if err := unix.PtraceCont(int(tid), sig); err != nil {
		return tracecore.Error(err)
	}
	return nil
}

// GetEventMsg reads the auxiliary data associated with the most recent
// PTRACE_EVENT_* stop on tid (e.g. the tid of a just-cloned thread).
func GetEventMsg(tid Tid) (uint, error) {
	msg, err := unix.PtraceGetEventMsg(int(tid))
	if err != nil {
		return 0, tracecore.Error(err)
	}
	return msg, nil
}

// WaitAny blocks until any thread belonging to pgid's process group
// changes state, and reports it. It is the seed wait of wait_all step 1.
func WaitAny(pgid Tid) (Tid, WaitStatus, error) {
	return wait4(-int(pgid), unix.WALL|unix.WUNTRACED)
}

// WaitAnyNonBlocking polls, without blocking, for any already-stopped
// thread belonging to pgid's process group. It returns tid == 0 if none is
// ready, used by wait_all step 3 to drain pending stops.
func WaitAnyNonBlocking(pgid Tid) (Tid, WaitStatus, error) {
	return wait4(-int(pgid), unix.WALL|unix.WUNTRACED|unix.WNOHANG)
}

// WaitTid blocks until the specific thread tid changes state. Used by
// wait_all step 2 to freeze a sibling thread after delivering it a stop
// signal, and by step_until/continue_all's step-over loop.
func WaitTid(tid Tid) (WaitStatus, error) {
	_, status, err := wait4(int(tid), unix.WALL)
	return status, err
}

// Interrupt delivers a thread-directed SIGSTOP to tid, a member of the
// thread group led by tgid. wait_all's freeze step (spec.md §4.4 step 2)
// uses it to force a still-running sibling thread to stop so its registers
// become readable. This must be tgkill(2), not kill(2): kill enqueues a
// thread-group-wide signal the kernel may deliver to any thread in the
// group, not necessarily tid, which in a 3+ thread tracee can freeze the
// wrong sibling.
func Interrupt(tgid, tid Tid) error {
	if err := unix.Tgkill(int(tgid), int(tid), unix.SIGSTOP); err != nil {
		return tracecore.Error(err)
	}
	return nil
}

func wait4(pid int, options int) (Tid, WaitStatus, error) {
	var status unix.WaitStatus
	wpid, err := unix.Wait4(pid, &status, options, nil)
	if err != nil {
		return 0, status, tracecore.Error(err)
	}
	return Tid(wpid), status, nil
}
