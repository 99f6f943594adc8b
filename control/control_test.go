package control

import (
	"testing"

	"golang.org/x/sys/unix"

	"github.com/tracecore-go/tracecore/ptrace"
)

// These tests exercise the paths that do not require a live, ptrace-able
// child process: argument validation ahead of any kernel call, bulk
// operations over empty tables, and wait-status decoding built from
// synthetic unix.WaitStatus values. Scenarios that need a real tracee
// executing real instructions (S1/S2/S3/S5/S6 in spec.md §8 — a
// breakpoint actually being hit, a thread actually stepping over one) are
// outside what this suite can assert deterministically without running a
// child under ptrace permissions this environment may not grant, so they
// are left to a human running the monitor against a real tracee.

func stoppedBy(sig unix.Signal) unix.WaitStatus {
	return unix.WaitStatus(0x7f | (uint32(sig) << 8))
}

func stoppedByTrapEvent(event int) unix.WaitStatus {
	return unix.WaitStatus(0x7f | (uint32(unix.SIGTRAP) << 8) | (uint32(event) << 16))
}

func exited() unix.WaitStatus {
	return unix.WaitStatus(0)
}

func TestIsGroupStopSignal(t *testing.T) {
	cases := []struct {
		name   string
		status unix.WaitStatus
		want   bool
	}{
		{"sigstop", stoppedBy(unix.SIGSTOP), true},
		{"sigtrap", stoppedBy(unix.SIGTRAP), false},
		{"sigint", stoppedBy(unix.SIGINT), false},
		{"exited", exited(), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := isGroupStopSignal(c.status); got != c.want {
				t.Errorf("isGroupStopSignal(%v) = %v, want %v", c.status, got, c.want)
			}
		})
	}
}

func TestStepOnMissingThreadIsFatalWithoutTouchingTheKernel(t *testing.T) {
	s := NewSession(0)
	defer s.Close()

	if err := s.Step(12345); err == nil {
		t.Fatal("expected an error for a tid never registered in TT")
	}
}

func TestStepUntilOnMissingThreadIsFatal(t *testing.T) {
	s := NewSession(0)
	defer s.Close()

	if err := s.StepUntil(12345, 0x1000, -1); err == nil {
		t.Fatal("expected an error for a tid never registered in TT")
	}
}

func TestContinueAllOnEmptySessionIsANoop(t *testing.T) {
	s := NewSession(0)
	defer s.Close()

	if err := s.ContinueAll(); err != nil {
		t.Fatalf("ContinueAll on an empty session should succeed, got %v", err)
	}
}

func TestWaitAllWithNoChildrenFailsRatherThanBlocking(t *testing.T) {
	// WaitAny(1) issues wait4(-1, ...), which waits for any child; this
	// test binary has spawned none, so the kernel reports ECHILD
	// immediately instead of blocking forever.
	s := NewSession(ptrace.Tid(1))
	defer s.Close()

	if _, err := s.WaitAll(); err == nil {
		t.Fatal("expected an error waiting on a process group with no such children")
	}
}

func TestSetBreakpointWithNoLiveThreadFails(t *testing.T) {
	s := NewSession(0)
	defer s.Close()

	if err := s.SetBreakpoint(0x1000); err == nil {
		t.Fatal("expected an error installing a breakpoint with an empty thread table")
	}
}

func TestDisableBreakpointWithNoLiveThreadFails(t *testing.T) {
	s := NewSession(0)
	defer s.Close()

	if err := s.DisableBreakpoint(0x1000); err == nil {
		t.Fatal("expected an error disabling a breakpoint with an empty thread table")
	}
}

func TestRemoveBreakpointIsSafeOnAnEmptyTable(t *testing.T) {
	s := NewSession(0)
	defer s.Close()

	s.RemoveBreakpoint(0x1000) // must not panic
	if s.BreakpointTable().Len() != 0 {
		t.Fatalf("expected an empty breakpoint table, got %d", s.BreakpointTable().Len())
	}
}

func TestHandleLifecycleEventIgnoresNonTrapStops(t *testing.T) {
	s := NewSession(0)
	defer s.Close()

	if err := s.HandleLifecycleEvent(StatusEntry{Tid: 1, Status: stoppedBy(unix.SIGSTOP)}); err != nil {
		t.Fatalf("a non-trap stop must be ignored, got %v", err)
	}
	if err := s.HandleLifecycleEvent(StatusEntry{Tid: 1, Status: exited()}); err != nil {
		t.Fatalf("an exit-by-status-0 entry is not a trap stop and must be ignored here, got %v", err)
	}
}

func TestHandleLifecycleEventExitUnregistersTheTid(t *testing.T) {
	s := NewSession(0)
	defer s.Close()

	// A PTRACE_EVENT_EXIT stop unregisters the tid; unregistering a tid
	// that was never registered is a documented TT no-op, so this is safe
	// to assert without a live thread.
	if err := s.HandleLifecycleEvent(StatusEntry{Tid: 42, Status: stoppedByTrapEvent(unix.PTRACE_EVENT_EXIT)}); err != nil {
		t.Fatalf("exit event handling should not fail, got %v", err)
	}
	if _, ok := s.ThreadTable().Lookup(42); ok {
		t.Fatal("expected tid 42 to be absent from TT after an exit event")
	}
}

func TestHandleLifecycleEventCloneOnUntracedTidFails(t *testing.T) {
	s := NewSession(0)
	defer s.Close()

	// get_event_msg on a tid this process never attached to fails with
	// ESRCH; this asserts the clone path actually reaches the kernel
	// rather than silently succeeding.
	err := s.HandleLifecycleEvent(StatusEntry{Tid: 99999999, Status: stoppedByTrapEvent(unix.PTRACE_EVENT_CLONE)})
	if err == nil {
		t.Fatal("expected an error from get_event_msg on an untraced tid")
	}
}
