package main

import (
	"github.com/rivo/tview"

	"github.com/tracecore-go/tracecore"
	"github.com/tracecore-go/tracecore/control"
	"github.com/tracecore-go/tracecore/internal/tlog"
	"github.com/tracecore-go/tracecore/ptrace"
	"github.com/tracecore-go/tracecore/threadtable"
)

// App wires a Monitor into a tview.Application, mirroring the shape of
// the teacher's cmd/raztracer App (a *tview.Application plus a Quit
// channel watched by a goroutine that calls app.Stop()).
type App struct {
	*Monitor
	app *tview.Application
}

// NewApp resolves the target process (directly via pid, or by name when
// pid is 0), attaches to its full thread set, and returns an App ready to
// Run. It does not launch a child process (spec.md §1: fork/exec plumbing
// is out of scope); the process must already exist and be attachable.
func NewApp(pid ptrace.Tid, name string, theme string) (*App, error) {
	if t, ok := themes[theme]; ok {
		t.Apply()
	}

	if name != "" {
		resolved, err := ptrace.ProcessByName(name)
		if err != nil {
			return nil, err
		}
		pid = resolved
	}

	tids, err := ptrace.Threads(pid)
	if err != nil {
		return nil, err
	}

	session := control.NewSession(pid)
	if err := session.Attach(tids...); err != nil {
		return nil, err
	}

	monitor := NewMonitor(session, pid)
	app := tview.NewApplication().
		SetInputCapture(monitor.InputCapture()).
		SetRoot(monitor, true)

	return &App{
		Monitor: monitor,
		app:     app,
	}, nil
}

// Run drives the terminal UI until the operator quits, then detaches every
// still-live thread before returning.
func (a *App) Run() error {
	go func() {
		<-a.Quit
		a.app.Stop()
	}()

	runErr := a.app.SetFocus(a.input).Run()
	a.detachAll()
	return runErr
}

// detachAll detaches every thread still registered in the session's thread
// table on the way out, logging a single merged error rather than one line
// per thread.
func (a *App) detachAll() {
	var tids []ptrace.Tid
	a.session.ThreadTable().Range(func(tid ptrace.Tid, _ *threadtable.Record) bool {
		tids = append(tids, tid)
		return true
	})

	var errs []error
	for _, tid := range tids {
		if err := a.session.Detach(tid); err != nil {
			errs = append(errs, err)
		}
	}
	if merged := tracecore.MergeErrors(errs); merged != nil {
		tlog.Errorf("detach on exit: %v", merged)
	}
}
