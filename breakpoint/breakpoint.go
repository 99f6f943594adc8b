// Package breakpoint is the Breakpoint Table (BT) component: an unordered
// collection, keyed by tracee virtual address, recording for each software
// breakpoint the original instruction word, the patched instruction word,
// and an enabled flag.
package breakpoint

import (
	"github.com/tracecore-go/tracecore"
	"github.com/tracecore-go/tracecore/arch"
	"github.com/tracecore-go/tracecore/ptrace"
)

// Record is one software breakpoint. Original is captured exactly once,
// the first time the address is installed; subsequent Install/Disable
// cycles never re-read it from (possibly patched) tracee memory.
type Record struct {
	Address  uintptr
	Original uint64
	Patched  uint64
	Enabled  bool
}

// Table is the keyed collection of breakpoint records. The zero value is
// not usable; construct with New.
type Table struct {
	records map[uintptr]*Record
}

// New returns an empty breakpoint table.
func New() *Table {
	return &Table{records: make(map[uintptr]*Record)}
}

// Install patches address in tid's address space with the architecture's
// breakpoint trap and records (or re-enables) the breakpoint. tid must name
// a thread of the traced process that is currently stopped; ptrace memory
// writes are address-space-wide, so any stopped thread of the process will
// do.
//
// If a record for address already exists, Install only sets Enabled back to
// true and re-arms the trap; it never re-reads Original.
func (t *Table) Install(tid ptrace.Tid, address uintptr) error {
	if rec, ok := t.records[address]; ok {
		if err := ptrace.PokeData(tid, address, rec.Patched); err != nil {
			return err
		}
		rec.Enabled = true
		return nil
	}

	original, err := ptrace.PeekData(tid, address)
	if err != nil {
		return err
	}

	patched := arch.InstallPatch(original)
	if err := ptrace.PokeData(tid, address, patched); err != nil {
		return err
	}

	t.records[address] = &Record{
		Address:  address,
		Original: original,
		Patched:  patched,
		Enabled:  true,
	}
	return nil
}

// Disable clears address's enabled flag and writes the patched word back to
// tid's address space.
//
// This re-writes the trap rather than restoring the original instruction,
// preserved from the reference behavior this module was built from. The
// enabled flag alone gates the control loop's step-over logic (it never
// single-steps a disabled breakpoint's address) and the restore-originals
// phase of wait_all (it only restores addresses that are still enabled).
// A disabled breakpoint's trap byte therefore stays in tracee memory: a
// thread that executes it still stops with SIGTRAP, and the control loop
// neither steps it over nor restores the original word there. See
// SPEC_FULL.md §7.
func (t *Table) Disable(tid ptrace.Tid, address uintptr) error {
	rec, ok := t.records[address]
	if !ok {
		return tracecore.Errorf("no breakpoint at %#x", address)
	}

	if err := ptrace.PokeData(tid, address, rec.Patched); err != nil {
		return err
	}
	rec.Enabled = false
	return nil
}

// Remove unlinks and discards address's record. It does not touch tracee
// memory; callers that want the original instruction bytes restored first
// should call Disable — which, per the behavior documented above, does
// not restore them either, so a caller that needs clean memory at address
// must instead rely on a subsequent wait_all's restore-originals phase
// happening before Remove, or accept the trap stays resident.
func (t *Table) Remove(address uintptr) {
	delete(t.records, address)
}

// Clear discards every breakpoint record without touching tracee memory.
func (t *Table) Clear() {
	t.records = make(map[uintptr]*Record)
}

// Len returns the number of breakpoint records.
func (t *Table) Len() int {
	return len(t.records)
}

// Lookup returns the record at address, if any.
func (t *Table) Lookup(address uintptr) (*Record, bool) {
	rec, ok := t.records[address]
	return rec, ok
}

// Range calls fn once for every breakpoint record, in an unspecified but
// stable-within-this-call order, stopping early if fn returns false.
func (t *Table) Range(fn func(address uintptr, rec *Record) bool) {
	for address, rec := range t.records {
		if !fn(address, rec) {
			return
		}
	}
}

// Snapshot returns a read-only copy of every breakpoint record, for
// displaying or testing without holding a reference into the live table.
func (t *Table) Snapshot() []Record {
	out := make([]Record, 0, len(t.records))
	t.Range(func(_ uintptr, rec *Record) bool {
		out = append(out, *rec)
		return true
	})
	return out
}
