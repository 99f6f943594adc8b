package ptrace

import (
	"fmt"
	"io/ioutil"
	"strconv"
	"strings"

	"github.com/tracecore-go/tracecore"
)

// RunningProcesses returns the pids of every process currently visible in
// /proc. Discovery helper, not part of the TP syscall surface proper.
func RunningProcesses() []Tid {
	entries, _ := ioutil.ReadDir("/proc")
	pids := make([]Tid, 0, len(entries))

	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		pids = append(pids, Tid(pid))
	}

	return pids
}

// ProcessesByName returns the pids of every running process whose
// /proc/<pid>/comm matches name exactly.
func ProcessesByName(name string) (matches []Tid) {
	for _, pid := range RunningProcesses() {
		comm, _ := ioutil.ReadFile(fmt.Sprintf("/proc/%d/comm", pid))
		if strings.TrimSuffix(string(comm), "\n") == name {
			matches = append(matches, pid)
		}
	}
	return matches
}

// ProcessByName returns the single running process named name, or an error
// if it is ambiguous or not found.
func ProcessByName(name string) (Tid, error) {
	matches := ProcessesByName(name)
	switch len(matches) {
	case 0:
		return 0, tracecore.Errorf("process not found: %s", name)
	case 1:
		return matches[0], nil
	default:
		return 0, tracecore.Errorf("multiple processes named %q", name)
	}
}

// Threads returns the thread ids belonging to pid, read from
// /proc/<pid>/task.
func Threads(pid Tid) ([]Tid, error) {
	tasks, err := ioutil.ReadDir(fmt.Sprintf("/proc/%d/task", pid))
	if err != nil {
		return nil, tracecore.Errorf("process not found: %d", pid)
	}

	threads := make([]Tid, 0, len(tasks))
	for _, task := range tasks {
		tid, err := strconv.Atoi(task.Name())
		if err != nil {
			continue
		}
		threads = append(threads, Tid(tid))
	}

	return threads, nil
}

// MemRegion describes one mapped region of a process's address space, as
// reported by /proc/<pid>/maps.
type MemRegion struct {
	Address     [2]uintptr
	Permissions string
	Offset      uint64
	Device      string
	Inode       uint64
	Pathname    string
}

// MemRegions returns the mapped memory regions of pid. Used outside the
// core by callers (e.g. cmd/tracecoremon) that want to sanity-check a
// breakpoint address against the tracee's executable mappings before
// calling control.Session.SetBreakpoint.
func MemRegions(pid Tid) ([]MemRegion, error) {
	data, err := ioutil.ReadFile(fmt.Sprintf("/proc/%d/maps", pid))
	if err != nil {
		return nil, tracecore.Error(err)
	}

	var regions []MemRegion
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) != 6 {
			continue
		}

		var region MemRegion
		fmt.Sscanf(line, "%x-%x %s %x %s %d %s",
			&region.Address[0], &region.Address[1],
			&region.Permissions,
			&region.Offset,
			&region.Device,
			&region.Inode,
			&region.Pathname)

		regions = append(regions, region)
	}

	return regions, nil
}
