// Package threadtable is the Thread Table (TT) component: an unordered
// collection, keyed by thread id, recording each live tracee thread's
// last-observed register bank. Only the control loop mutates a Table.
package threadtable

import (
	"github.com/tracecore-go/tracecore/ptrace"
)

// Record is the live state tracecore keeps for one tracee thread.
type Record struct {
	Tid     ptrace.Tid
	regs    ptrace.RegisterBank
	running bool
}

// Registers returns the thread's last-observed register bank.
func (r *Record) Registers() ptrace.RegisterBank {
	return r.regs
}

// SetRegisters overwrites the thread's cached register bank. The write is
// not flushed to the kernel until the control loop does so (continue_all
// phase 1, step, step_until).
func (r *Record) SetRegisters(regs ptrace.RegisterBank) {
	r.regs = regs
}

// Running reports whether the control loop believes the kernel is
// currently executing this thread (Running state) as opposed to it being
// stopped with coherent registers (Stopped state).
func (r *Record) Running() bool {
	return r.running
}

// Handle is a stable reference to a thread's Record, returned by Register.
// It remains valid until Unregister(tid) or Clear() is called for the
// underlying record; the front-end (via the control loop) may read and
// write the register bank through it between control loop invocations.
type Handle = *Record

// Table is the keyed collection of live thread records. The zero value is
// not usable; construct with New.
type Table struct {
	records map[ptrace.Tid]*Record
}

// New returns an empty thread table.
func New() *Table {
	return &Table{records: make(map[ptrace.Tid]*Record)}
}

// Register returns a handle to tid's record, creating it first if
// necessary. A freshly created record's register bank is populated by
// reading the kernel via ptrace.GetRegs, so the handle is always coherent
// the moment it is returned (Unknown → Stopped transition, spec.md §4.4).
func (t *Table) Register(tid ptrace.Tid) (Handle, error) {
	if rec, ok := t.records[tid]; ok {
		return rec, nil
	}

	regs, err := ptrace.GetRegs(tid)
	if err != nil {
		return nil, err
	}

	rec := &Record{Tid: tid, regs: regs}
	t.records[tid] = rec
	return rec, nil
}

// Unregister removes and discards tid's record, if any (Stopped → Gone).
func (t *Table) Unregister(tid ptrace.Tid) {
	delete(t.records, tid)
}

// Clear removes every record from the table.
func (t *Table) Clear() {
	t.records = make(map[ptrace.Tid]*Record)
}

// Len returns the number of live thread records.
func (t *Table) Len() int {
	return len(t.records)
}

// Lookup returns the handle for tid, if it is registered.
func (t *Table) Lookup(tid ptrace.Tid) (Handle, bool) {
	rec, ok := t.records[tid]
	return rec, ok
}

// Range calls fn once for every record in the table, in an unspecified but
// stable-within-this-call order, stopping early if fn returns false.
func (t *Table) Range(fn func(tid ptrace.Tid, rec *Record) bool) {
	for tid, rec := range t.records {
		if !fn(tid, rec) {
			return
		}
	}
}

// SetRunning flips a record's Running flag as part of the Stopped⇄Running
// state machine (spec.md §4.4). It is not part of the public TT operation
// set spec.md §4.2 names; only the control loop, TT's sole mutator per
// spec.md §5, calls it.
func (t *Table) SetRunning(tid ptrace.Tid, running bool) {
	if rec, ok := t.records[tid]; ok {
		rec.running = running
	}
}
