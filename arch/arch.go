// Package arch isolates the two architecture-coupled operations the
// control loop needs: reading/writing a thread's instruction pointer out of
// its opaque register bank, and patching a machine word with the
// architecture's software breakpoint trap. Every build-tagged file in this
// package must define the same set of symbols; only amd64 is implemented,
// matching the teacher this module is built from.
package arch

import "golang.org/x/sys/unix"

// RegisterBank is the opaque, architecture-defined register bank for one
// thread. The core never interprets its fields beyond the instruction
// pointer.
type RegisterBank = unix.PtraceRegs

// TrapByteSize is the size, in bytes, of the leading trap sequence
// InstallPatch substitutes into a memory word.
const TrapByteSize = len(trapInstruction)
