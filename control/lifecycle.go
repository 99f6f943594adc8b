package control

import (
	"golang.org/x/sys/unix"

	"github.com/tracecore-go/tracecore/ptrace"
)

// HandleLifecycleEvent consumes a clone/fork/vfork/exit trace event
// reported by a recent WaitAll status entry and updates TT accordingly:
// a clone/fork/vfork registers the new thread, an exit unregisters tid.
// spec.md §9 leaves this consumption to an external front-end ("the
// front-end is assumed to consume them via get_event_msg and update TT
// accordingly"); this is that consumption, offered as an explicitly
// invoked helper rather than something WaitAll calls implicitly — the CL
// surface spec.md names is unchanged by its existence.
func (s *Session) HandleLifecycleEvent(entry StatusEntry) (err error) {
	s.exec(func() {
		err = s.handleLifecycleEventLocked(entry)
	})
	return
}

func (s *Session) handleLifecycleEventLocked(entry StatusEntry) error {
	status := entry.Status
	if !status.Stopped() || status.StopSignal() != unix.SIGTRAP {
		return nil
	}

	switch status.TrapCause() {
	case unix.PTRACE_EVENT_CLONE, unix.PTRACE_EVENT_FORK, unix.PTRACE_EVENT_VFORK:
		msg, err := ptrace.GetEventMsg(entry.Tid)
		if err != nil {
			return err
		}
		newTid := ptrace.Tid(msg)
		if _, err := ptrace.WaitTid(newTid); err != nil {
			return err
		}
		if err := ptrace.SetOptions(newTid); err != nil {
			return err
		}
		if _, err := s.tt.Register(newTid); err != nil {
			return err
		}

	case unix.PTRACE_EVENT_EXIT:
		s.tt.Unregister(entry.Tid)
	}

	return nil
}
