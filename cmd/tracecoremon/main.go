// Command tracecoremon is a minimal terminal monitor for a tracecore
// debug session. It is not a symbolic debugger front-end: breakpoints and
// thread ids are entered as bare numbers, there is no expression
// evaluator and no DWARF/symbol lookup. It exists to exercise the control
// package end-to-end and to give the ambient tview/tcell stack a home.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/tracecore-go/tracecore/internal/tlog"
	"github.com/tracecore-go/tracecore/ptrace"
)

func main() {
	fmt.Printf("\033]0;tracecoremon\007")

	pid := flag.Int("pid", 0, "pid of the already-running process to attach to")
	name := flag.String("name", "", "name of the already-running process to attach to (alternative to -pid)")
	theme := flag.String("theme", "light", "color theme: light or dark")
	logFile := flag.String("log-file", "tracecoremon.log", "file to send tracer log output to (the terminal is owned by the UI)")
	flag.Parse()

	if *pid <= 0 && *name == "" {
		fmt.Fprintln(os.Stderr, "tracecoremon: one of -pid or -name is required")
		os.Exit(2)
	}
	if *pid > 0 && *name != "" {
		fmt.Fprintln(os.Stderr, "tracecoremon: -pid and -name are mutually exclusive")
		os.Exit(2)
	}

	if f, err := os.Create(*logFile); err == nil {
		tlog.SetOutput(log.New(f, "tracecore: ", log.LstdFlags))
	} else {
		fmt.Fprintf(os.Stderr, "tracecoremon: %v (logging to stderr)\n", err)
	}

	app, err := NewApp(ptrace.Tid(*pid), *name, *theme)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tracecoremon: %v\n", err)
		os.Exit(1)
	}

	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "tracecoremon: %v\n", err)
		os.Exit(1)
	}
}
