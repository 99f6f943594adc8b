// Package ptrace is the Trace Primitives (TP) component: a thin, typed
// façade over the kernel's process-tracing syscalls. Every exported
// trace primitive corresponds to exactly one trace syscall (or, for the
// Wait functions, one wait syscall; for Interrupt, one tgkill) and returns
// a result plus a distinct error indicator. The package also exports
// /proc-based discovery helpers (discover.go) that issue no trace syscall. TP never touches the thread table or breakpoint table; it is
// the sole collaborator the control loop uses to reach the kernel.
package ptrace

import (
	"github.com/tracecore-go/tracecore/arch"
)

// Tid is an opaque thread/process id as reported by the kernel. A tracee
// process's id and the id of its main thread are the same Tid.
type Tid int

// RegisterBank is the architecture-defined register bank for one thread,
// treated opaquely except for the instruction pointer (see package arch).
type RegisterBank = arch.RegisterBank
