package threadtable

import (
	"testing"

	"github.com/tracecore-go/tracecore/ptrace"
)

func TestLookupMissing(t *testing.T) {
	tt := New()
	if _, ok := tt.Lookup(42); ok {
		t.Fatal("expected no record for an unregistered tid")
	}
}

func TestUnregisterIsNoopForMissingTid(t *testing.T) {
	tt := New()
	tt.Unregister(42) // must not panic
	if tt.Len() != 0 {
		t.Fatalf("expected empty table, got %d records", tt.Len())
	}
}

func TestClearRemovesEverything(t *testing.T) {
	tt := New()
	tt.records[1] = &Record{Tid: 1}
	tt.records[2] = &Record{Tid: 2}

	tt.Clear()

	if tt.Len() != 0 {
		t.Fatalf("expected 0 records after Clear, got %d", tt.Len())
	}
}

func TestRangeVisitsEveryRecordExactlyOnce(t *testing.T) {
	tt := New()
	want := map[ptrace.Tid]bool{1: true, 2: true, 3: true}
	for tid := range want {
		tt.records[tid] = &Record{Tid: tid}
	}

	seen := map[ptrace.Tid]int{}
	tt.Range(func(tid ptrace.Tid, rec *Record) bool {
		seen[tid]++
		return true
	})

	if len(seen) != len(want) {
		t.Fatalf("expected %d records visited, got %d", len(want), len(seen))
	}
	for tid, count := range seen {
		if count != 1 {
			t.Errorf("tid %d visited %d times, want exactly once", tid, count)
		}
		if !want[tid] {
			t.Errorf("unexpected tid %d visited", tid)
		}
	}
}

func TestRangeStopsEarly(t *testing.T) {
	tt := New()
	tt.records[1] = &Record{Tid: 1}
	tt.records[2] = &Record{Tid: 2}
	tt.records[3] = &Record{Tid: 3}

	visited := 0
	tt.Range(func(tid ptrace.Tid, rec *Record) bool {
		visited++
		return false
	})

	if visited != 1 {
		t.Fatalf("expected Range to stop after the first record, visited %d", visited)
	}
}

func TestSetRegistersIsVisibleThroughTheHandle(t *testing.T) {
	tt := New()
	rec := &Record{Tid: 7}
	tt.records[7] = rec

	var regs ptrace.RegisterBank
	regs.Rip = 0xdeadbeef
	rec.SetRegisters(regs)

	handle, ok := tt.Lookup(7)
	if !ok {
		t.Fatal("expected handle for tid 7")
	}
	if got := handle.Registers().Rip; got != 0xdeadbeef {
		t.Fatalf("Rip = %#x, want %#x", got, 0xdeadbeef)
	}
}

func TestSetRunningOnMissingTidIsNoop(t *testing.T) {
	tt := New()
	tt.SetRunning(99, true) // must not panic
}

func TestSetRunningFlipsState(t *testing.T) {
	tt := New()
	rec := &Record{Tid: 1}
	tt.records[1] = rec

	if rec.Running() {
		t.Fatal("new record should not be Running")
	}

	tt.SetRunning(1, true)
	if !rec.Running() {
		t.Fatal("expected Running after SetRunning(tid, true)")
	}

	tt.SetRunning(1, false)
	if rec.Running() {
		t.Fatal("expected not Running after SetRunning(tid, false)")
	}
}
