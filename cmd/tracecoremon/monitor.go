package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gdamore/tcell"
	"github.com/rivo/tview"

	"github.com/tracecore-go/tracecore/arch"
	"github.com/tracecore-go/tracecore/control"
	"github.com/tracecore-go/tracecore/internal/tlog"
	"github.com/tracecore-go/tracecore/ptrace"
	"github.com/tracecore-go/tracecore/threadtable"
)

// Monitor is the root UI element: two live tables (threads, breakpoints),
// a status line, and a command input line. It is a thin viewer/driver over
// a control.Session, deliberately not a symbolic debugger front-end —
// addresses and tids are typed as bare numbers, there is no expression
// evaluator and no symbol lookup, matching the Non-goals the core it
// drives still excludes.
type Monitor struct {
	*tview.Flex

	session *control.Session
	pid     ptrace.Tid

	threads     *tview.Table
	breakpoints *tview.Table
	status      *tview.TextView
	input       *tview.InputField

	// Quit is closed when the operator issues the "q" command, the same
	// signaling shape as the teacher's ui.PageHandler.Quit channel.
	Quit chan struct{}
}

// NewMonitor builds a Monitor driving session, whose tracee is the process
// group led by pid.
func NewMonitor(session *control.Session, pid ptrace.Tid) *Monitor {
	m := &Monitor{
		session:     session,
		pid:         pid,
		threads:     tview.NewTable().SetBorders(false).SetFixed(1, 0),
		breakpoints: tview.NewTable().SetBorders(false).SetFixed(1, 0),
		status:      tview.NewTextView().SetDynamicColors(true),
		input:       tview.NewInputField().SetLabel("> "),
		Quit:        make(chan struct{}),
	}

	m.threads.SetBorder(true).SetTitle(" threads ")
	m.breakpoints.SetBorder(true).SetTitle(" breakpoints ")
	m.status.SetBorder(true).SetTitle(" status ")
	m.input.SetBorder(true).SetTitle(" command (b/d/r <addr>, s/u <tid>, c, w, q) ")
	m.input.SetDoneFunc(m.handleCommand)

	tables := tview.NewFlex().
		AddItem(m.threads, 0, 1, false).
		AddItem(m.breakpoints, 0, 1, false)

	m.Flex = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(tables, 0, 3, false).
		AddItem(m.status, 3, 0, false).
		AddItem(m.input, 3, 0, true)

	m.refresh()
	return m
}

// InputCapture returns the key handler the teacher's root elements expose
// for wiring into tview.Application.SetInputCapture.
func (m *Monitor) InputCapture() func(event *tcell.EventKey) *tcell.EventKey {
	return func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEsc {
			close(m.Quit)
			return nil
		}
		return event
	}
}

func (m *Monitor) setStatus(format string, args ...interface{}) {
	m.status.Clear()
	fmt.Fprintf(m.status, format, args...)
}

func (m *Monitor) refresh() {
	m.threads.Clear()
	m.threads.SetCell(0, 0, tview.NewTableCell("TID").SetSelectable(false))
	m.threads.SetCell(0, 1, tview.NewTableCell("IP").SetSelectable(false))
	m.threads.SetCell(0, 2, tview.NewTableCell("RUNNING").SetSelectable(false))

	row := 1
	m.session.ThreadTable().Range(func(tid ptrace.Tid, rec *threadtable.Record) bool {
		regs := rec.Registers()
		ip := arch.InstructionPointer(&regs)
		m.threads.SetCell(row, 0, tview.NewTableCell(strconv.Itoa(int(tid))))
		m.threads.SetCell(row, 1, tview.NewTableCell(fmt.Sprintf("%#016x", ip)))
		m.threads.SetCell(row, 2, tview.NewTableCell(strconv.FormatBool(rec.Running())))
		row++
		return true
	})

	m.breakpoints.Clear()
	m.breakpoints.SetCell(0, 0, tview.NewTableCell("ADDRESS").SetSelectable(false))
	m.breakpoints.SetCell(0, 1, tview.NewTableCell("ENABLED").SetSelectable(false))

	row = 1
	for _, bp := range m.session.BreakpointTable().Snapshot() {
		m.breakpoints.SetCell(row, 0, tview.NewTableCell(fmt.Sprintf("%#016x", bp.Address)))
		m.breakpoints.SetCell(row, 1, tview.NewTableCell(strconv.FormatBool(bp.Enabled)))
		row++
	}
}

func (m *Monitor) handleCommand(key tcell.Key) {
	if key != tcell.KeyEnter {
		return
	}
	defer m.input.SetText("")
	defer m.refresh()

	fields := strings.Fields(m.input.GetText())
	if len(fields) == 0 {
		return
	}

	switch fields[0] {
	case "q":
		close(m.Quit)

	case "c":
		if err := m.session.ContinueAll(); err != nil {
			m.setStatus("continue_all: %v", err)
			return
		}
		m.setStatus("continue_all: ok")

	case "w":
		report, err := m.session.WaitAll()
		if err != nil {
			m.setStatus("wait_all: %v", err)
			return
		}
		for _, entry := range report {
			if err := m.session.HandleLifecycleEvent(entry); err != nil {
				tlog.Errorf("lifecycle event for tid %d: %v", entry.Tid, err)
			}
		}
		m.setStatus("wait_all: %d status entries", len(report))

	case "b", "d", "r":
		if len(fields) != 2 {
			m.setStatus("usage: %s <hex address>", fields[0])
			return
		}
		addr, err := parseHex(fields[1])
		if err != nil {
			m.setStatus("%v", err)
			return
		}
		m.runBreakpointCommand(fields[0], addr)

	case "s", "u":
		m.runStepCommand(fields)

	default:
		m.setStatus("unknown command: %s", fields[0])
	}
}

func (m *Monitor) runBreakpointCommand(verb string, addr uintptr) {
	var warn string
	if verb == "b" {
		warn = m.executableWarning(addr)
	}

	var err error
	switch verb {
	case "b":
		err = m.session.SetBreakpoint(addr)
	case "d":
		err = m.session.DisableBreakpoint(addr)
	case "r":
		m.session.RemoveBreakpoint(addr)
	}
	if err != nil {
		m.setStatus("%s %#x: %v", verb, addr, err)
		return
	}
	if warn != "" {
		m.setStatus("%s %#x: ok (%s)", verb, addr, warn)
		return
	}
	m.setStatus("%s %#x: ok", verb, addr)
}

// executableWarning sanity-checks addr against the tracee's mapped memory
// before a breakpoint is installed there. It is purely informational: the
// install proceeds either way, but the operator is warned if addr (and the
// full trap sequence InstallPatch writes, arch.TrapByteSize bytes wide)
// doesn't fall inside a mapped, executable region.
func (m *Monitor) executableWarning(addr uintptr) string {
	regions, err := ptrace.MemRegions(m.pid)
	if err != nil {
		return fmt.Sprintf("could not read memory map: %v", err)
	}

	end := addr + uintptr(arch.TrapByteSize) - 1
	for _, r := range regions {
		if addr >= r.Address[0] && end < r.Address[1] {
			if !strings.Contains(r.Permissions, "x") {
				return fmt.Sprintf("warning: mapped %s, not executable", r.Permissions)
			}
			return ""
		}
	}
	return "warning: address not in any mapped region"
}

func (m *Monitor) runStepCommand(fields []string) {
	if len(fields) < 2 {
		m.setStatus("usage: %s <tid> [target-hex]", fields[0])
		return
	}
	tid, err := strconv.Atoi(fields[1])
	if err != nil {
		m.setStatus("bad tid: %v", err)
		return
	}

	if fields[0] == "s" {
		if err := m.session.Step(ptrace.Tid(tid)); err != nil {
			m.setStatus("step %d: %v", tid, err)
			return
		}
		m.setStatus("step %d: ok", tid)
		return
	}

	if len(fields) != 3 {
		m.setStatus("usage: u <tid> <target-hex>")
		return
	}
	target, err := parseHex(fields[2])
	if err != nil {
		m.setStatus("%v", err)
		return
	}
	if err := m.session.StepUntil(ptrace.Tid(tid), target, -1); err != nil {
		m.setStatus("step_until %d: %v", tid, err)
		return
	}
	m.setStatus("step_until %d: ok", tid)
}

func parseHex(s string) (uintptr, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("bad hex address %q: %w", s, err)
	}
	return uintptr(v), nil
}
