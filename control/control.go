// Package control is the Control Loop (CL) component: the orchestration
// layer exposing the debugger's externally visible verbs. CL is the only
// component permitted to call package ptrace directly; it uses
// threadtable and breakpoint to preserve the illusion of a single
// consistent tracee out of many independently schedulable threads.
//
// Every verb runs on one dedicated, runtime.LockOSThread'd goroutine owned
// by the Session, because Linux delivers ptrace replies to the specific
// thread that issued the request. This mirrors the pack's other
// multi-threaded tracers: the teacher's TraceManager serializes all trace
// calls through a single manager goroutine, ks888/tgo's debugapi.Client
// dispatches through a locked goroutine reached over a request channel,
// and Dparker1990/dbg's proc.execPtraceFunc hops onto a dedicated OS
// thread for every ptrace call.
package control

import (
	"runtime"

	"github.com/tracecore-go/tracecore"
	"github.com/tracecore-go/tracecore/arch"
	"github.com/tracecore-go/tracecore/breakpoint"
	"github.com/tracecore-go/tracecore/internal/tlog"
	"github.com/tracecore-go/tracecore/ptrace"
	"github.com/tracecore-go/tracecore/threadtable"
)

// StatusEntry is one (tid, raw wait status) pair in a thread status report,
// as produced by WaitAll.
type StatusEntry struct {
	Tid    ptrace.Tid
	Status ptrace.WaitStatus
}

// Session binds a thread table and a breakpoint table to one debug session
// (spec.md §9: "global mutable state → session object"), so that multiple
// independent sessions can coexist and teardown is deterministic.
type Session struct {
	pgid ptrace.Tid
	tt   *threadtable.Table
	bt   *breakpoint.Table

	reqCh  chan func()
	doneCh chan struct{}
}

// NewSession creates an empty session for the process group led by pgid.
// Callers attach the tracee's initial thread(s) with Attach before issuing
// any other verb.
func NewSession(pgid ptrace.Tid) *Session {
	s := &Session{
		pgid:   pgid,
		tt:     threadtable.New(),
		bt:     breakpoint.New(),
		reqCh:  make(chan func()),
		doneCh: make(chan struct{}),
	}
	go s.dispatch()
	return s
}

// dispatch is the session's dedicated OS thread. Every ptrace syscall this
// session ever issues runs here, because the kernel associates a tracer
// with the calling thread, not the calling process.
func (s *Session) dispatch() {
	runtime.LockOSThread()
	for fn := range s.reqCh {
		fn()
		s.doneCh <- struct{}{}
	}
}

func (s *Session) exec(fn func()) {
	s.reqCh <- fn
	<-s.doneCh
}

// Close stops the session's dispatch goroutine. It does not detach or kill
// the tracee; callers that want a clean teardown should Detach every
// thread first.
func (s *Session) Close() {
	close(s.reqCh)
}

// ThreadTable returns the session's live thread table, for read access by
// a front-end between verb invocations.
func (s *Session) ThreadTable() *threadtable.Table {
	return s.tt
}

// BreakpointTable returns the session's breakpoint table, for read access
// by a front-end between verb invocations.
func (s *Session) BreakpointTable() *breakpoint.Table {
	return s.bt
}

// Attach starts tracing every tid in tids, blocks for each one's initial
// attach-stop, installs trace options, and registers it in TT
// (Unknown → Stopped). All of this external process/thread discovery is
// the caller's responsibility (spec.md §1: launching the child is out of
// scope); Attach only wires already-existing tids into the session.
func (s *Session) Attach(tids ...ptrace.Tid) (err error) {
	s.exec(func() {
		for _, tid := range tids {
			if err = ptrace.Attach(tid); err != nil {
				return
			}
			if _, err = ptrace.WaitTid(tid); err != nil {
				return
			}
			if err = ptrace.SetOptions(tid); err != nil {
				return
			}
			if _, err = s.tt.Register(tid); err != nil {
				return
			}
			tlog.Debugf("attached tid %d", tid)
		}
	})
	return
}

// Detach stops tracing tid and removes it from TT (→ Gone).
func (s *Session) Detach(tid ptrace.Tid) (err error) {
	s.exec(func() {
		err = ptrace.Detach(tid)
		s.tt.Unregister(tid)
	})
	return
}

// anyTid returns an arbitrary tid currently in TT. Breakpoint memory
// writes are address-space-wide, so any live thread of the process can
// carry them.
func (s *Session) anyTid() (ptrace.Tid, bool) {
	var tid ptrace.Tid
	found := false
	s.tt.Range(func(t ptrace.Tid, _ *threadtable.Record) bool {
		tid, found = t, true
		return false
	})
	return tid, found
}

func (s *Session) flushRegisters() {
	s.tt.Range(func(tid ptrace.Tid, rec *threadtable.Record) bool {
		if err := ptrace.SetRegs(tid, rec.Registers()); err != nil {
			tlog.Errorf("flush registers for tid %d: %v", tid, err)
		}
		return true
	})
}

// Step flushes registers (as continue_all phase 1 does) and issues a
// single-step to tid. It does not restore or re-patch breakpoints:
// callers are expected to have already cleaned the instrumentation with a
// preceding WaitAll.
func (s *Session) Step(tid ptrace.Tid) (err error) {
	s.exec(func() {
		if _, ok := s.tt.Lookup(tid); !ok {
			err = tracecore.Errorf("missing thread: %d", tid)
			return
		}
		s.flushRegisters()
		if err = ptrace.SingleStep(tid); err != nil {
			return
		}
		s.tt.SetRunning(tid, true)
	})
	return
}

// StepUntil flushes registers, then repeatedly single-steps tid until its
// instruction pointer reaches target, the step budget maxSteps is
// exhausted, or an error occurs. A negative maxSteps means unbounded.
// Steps that do not advance the instruction pointer (typically a hardware
// breakpoint holding the PC) do not count against the budget.
func (s *Session) StepUntil(tid ptrace.Tid, target uintptr, maxSteps int) (err error) {
	s.exec(func() {
		rec, ok := s.tt.Lookup(tid)
		if !ok {
			err = tracecore.Errorf("missing thread: %d", tid)
			return
		}
		s.flushRegisters()

		steps := 0
		for {
			if err = ptrace.SingleStep(tid); err != nil {
				return
			}
			if _, err = ptrace.WaitTid(tid); err != nil {
				return
			}

			prevRegs := rec.Registers()
			prevPC := arch.InstructionPointer(&prevRegs)

			var regs ptrace.RegisterBank
			if regs, err = ptrace.GetRegs(tid); err != nil {
				return
			}
			rec.SetRegisters(regs)
			pc := arch.InstructionPointer(&regs)

			if pc == target {
				return
			}
			if pc == prevPC {
				continue // absorbed step: doesn't count toward the budget
			}

			steps++
			if maxSteps >= 0 && steps >= maxSteps {
				return
			}
		}
	})
	return
}

// stepOverBreakpoints is continue_all phase 2. It is fatal to ContinueAll
// on failure, per spec.md §7.
func (s *Session) stepOverBreakpoints() error {
	var stepErr error
	s.tt.Range(func(tid ptrace.Tid, rec *threadtable.Record) bool {
		regs := rec.Registers()
		pc := arch.InstructionPointer(&regs)

		bp, ok := s.bt.Lookup(pc)
		if !ok || !bp.Enabled {
			return true
		}

		for {
			if err := ptrace.SingleStep(tid); err != nil {
				stepErr = err
				return false
			}
			status, err := ptrace.WaitTid(tid)
			if err != nil {
				stepErr = err
				return false
			}
			if isGroupStopSignal(status) {
				// The step was consumed by signal delivery racing with a
				// sibling's stop signal; re-issue it.
				continue
			}
			break
		}

		newRegs, err := ptrace.GetRegs(tid)
		if err != nil {
			stepErr = err
			return false
		}
		rec.SetRegisters(newRegs)
		return true
	})
	return stepErr
}

func (s *Session) rearmBreakpoints() {
	tid, ok := s.anyTid()
	if !ok {
		return
	}
	s.bt.Range(func(address uintptr, bp *breakpoint.Record) bool {
		if !bp.Enabled {
			return true
		}
		if err := ptrace.PokeData(tid, address, bp.Patched); err != nil {
			tlog.Errorf("re-arm breakpoint at %#x: %v", address, err)
		}
		return true
	})
}

func (s *Session) resumeAll() {
	s.tt.Range(func(tid ptrace.Tid, _ *threadtable.Record) bool {
		if err := ptrace.Cont(tid, 0); err != nil {
			tlog.Errorf("resume tid %d: %v", tid, err)
			return true
		}
		s.tt.SetRunning(tid, true)
		return true
	})
}

// ContinueAll runs the four phases spec.md §4.4 describes: flush
// registers, step every thread sitting on a breakpoint off it, re-arm
// every enabled breakpoint, then resume every thread. Phase 1 and phase 4
// failures are logged per-thread and do not abort the call; a phase 2
// failure is fatal and aborts before any breakpoint is re-armed or any
// thread resumed.
func (s *Session) ContinueAll() (err error) {
	s.exec(func() {
		s.flushRegisters()

		if err = s.stepOverBreakpoints(); err != nil {
			return
		}

		s.rearmBreakpoints()
		s.resumeAll()
	})
	return
}

// WaitAll blocks until at least one tracee thread stops, gathers every
// currently-stopped thread, and re-establishes coherence: every thread in
// TT ends up Stopped with a fresh register bank, and every enabled
// breakpoint's original instruction is restored in tracee memory. It
// returns the full status report for this wait cycle.
func (s *Session) WaitAll() (report []StatusEntry, err error) {
	s.exec(func() {
		report, err = s.waitAllLocked()
	})
	return
}

func (s *Session) waitAllLocked() ([]StatusEntry, error) {
	var report []StatusEntry

	// 1. Block-wait for the seed stop.
	tid, status, err := ptrace.WaitAny(s.pgid)
	if err != nil {
		return nil, err
	}
	report = append(report, StatusEntry{Tid: tid, Status: status})

	// 2. Freeze siblings: a successful register read proves a thread is
	// already stopped; otherwise force it to stop and wait for it.
	s.tt.Range(func(sibling ptrace.Tid, _ *threadtable.Record) bool {
		if sibling == tid {
			return true
		}
		if _, err := ptrace.GetRegs(sibling); err == nil {
			return true
		}
		if err := ptrace.Interrupt(s.pgid, sibling); err != nil {
			tlog.Errorf("interrupt tid %d: %v", sibling, err)
			return true
		}
		sibStatus, err := ptrace.WaitTid(sibling)
		if err != nil {
			tlog.Errorf("wait for tid %d: %v", sibling, err)
			return true
		}
		report = append(report, StatusEntry{Tid: sibling, Status: sibStatus})
		return true
	})

	// 3. Drain any additional already-stopped threads.
	for {
		extraTid, extraStatus, err := ptrace.WaitAnyNonBlocking(s.pgid)
		if err != nil || extraTid == 0 {
			break
		}
		report = append(report, StatusEntry{Tid: extraTid, Status: extraStatus})
	}

	// 4. Refresh registers for every thread in TT; every thread is now
	// Stopped regardless of which path above observed it.
	s.tt.Range(func(t ptrace.Tid, rec *threadtable.Record) bool {
		regs, err := ptrace.GetRegs(t)
		if err != nil {
			tlog.Errorf("refresh registers for tid %d: %v", t, err)
			return true
		}
		rec.SetRegisters(regs)
		s.tt.SetRunning(t, false)
		return true
	})

	// 5. Restore original instructions for every enabled breakpoint.
	if anyTid, ok := s.anyTid(); ok {
		s.bt.Range(func(address uintptr, bp *breakpoint.Record) bool {
			if !bp.Enabled {
				return true
			}
			if err := ptrace.PokeData(anyTid, address, bp.Original); err != nil {
				tlog.Errorf("restore original at %#x: %v", address, err)
			}
			return true
		})
	}

	return report, nil
}

// SetBreakpoint installs (or re-enables) a software breakpoint at address.
func (s *Session) SetBreakpoint(address uintptr) (err error) {
	s.exec(func() {
		tid, ok := s.anyTid()
		if !ok {
			err = tracecore.Errorf("no live thread to install a breakpoint through")
			return
		}
		err = s.bt.Install(tid, address)
	})
	return
}

// DisableBreakpoint disables the breakpoint at address without forgetting
// it. See breakpoint.Table.Disable for the documented patched-word
// behavior this preserves.
func (s *Session) DisableBreakpoint(address uintptr) (err error) {
	s.exec(func() {
		tid, ok := s.anyTid()
		if !ok {
			err = tracecore.Errorf("no live thread to disable a breakpoint through")
			return
		}
		err = s.bt.Disable(tid, address)
	})
	return
}

// RemoveBreakpoint discards the breakpoint record at address without
// touching tracee memory.
func (s *Session) RemoveBreakpoint(address uintptr) {
	s.exec(func() {
		s.bt.Remove(address)
	})
}
