// Package tlog is a minimal leveled logger over the standard log package,
// in the shape of the small internal logging helpers (Debugf/Infof/Errorf
// over log.Logger) used by ptrace-adjacent code across the retrieval pack
// (e.g. ks888/tgo/log, gvisor-ligolo/pkg/log). No file in the pack wires a
// structured third-party logging library into code at this level, so this
// package stays on the standard library rather than reaching for one.
package tlog

import (
	"log"
	"os"
)

var std = log.New(os.Stderr, "tracecore: ", log.LstdFlags)

// SetOutput redirects the package logger; cmd/tracecoremon uses it to send
// log output to its -log-file.
func SetOutput(l *log.Logger) {
	std = l
}

// Errorf logs a non-fatal per-thread failure during a bulk operation
// (spec.md §7: "logged per-thread and the bulk operation continues").
func Errorf(format string, args ...interface{}) {
	std.Printf("ERROR "+format, args...)
}

// Debugf logs low-volume diagnostic detail not required by any invariant.
func Debugf(format string, args ...interface{}) {
	std.Printf("DEBUG "+format, args...)
}
