package supervisor

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/process"

	"llmcascade/internal/pkgerrors"
)

// ErrNoSuchProcess is returned by KillByClient when none of its three
// reclaim steps located a matching process.
var ErrNoSuchProcess = fmt.Errorf("%w: no matching process", pkgerrors.ErrSupervisor)

// KillByClient implements the three-step stale-process fallback: a PID-file
// fast path, an argv scan for `--host <host>`/`-h <host>`, then failure.
// A stale or malformed PID file is deleted on first visit regardless of
// whether it yields a live process.
func KillByClient(pidFilePath, host string, gracePeriod func(pid int) error) error {
	if pid, ok := readAndClearPIDFile(pidFilePath); ok {
		if proc, err := process.NewProcess(int32(pid)); err == nil {
			if alive, _ := proc.IsRunning(); alive {
				return gracePeriod(pid)
			}
		}
	}

	procs, err := process.Processes()
	if err != nil {
		return fmt.Errorf("%w: list processes: %v", pkgerrors.ErrSupervisor, err)
	}
	for _, p := range procs {
		args, err := p.CmdlineSlice()
		if err != nil {
			continue
		}
		if argvHasHost(args, host) {
			return gracePeriod(int(p.Pid))
		}
	}

	return ErrNoSuchProcess
}

// KillAll enumerates every process whose executable name matches and
// applies the same kill escalation to each.
func KillAll(executableName string, gracePeriod func(pid int) error) error {
	procs, err := process.Processes()
	if err != nil {
		return fmt.Errorf("%w: list processes: %v", pkgerrors.ErrSupervisor, err)
	}

	var matched bool
	var leftover []int
	for _, p := range procs {
		name, err := p.Name()
		if err != nil || name != executableName {
			continue
		}
		matched = true
		if err := gracePeriod(int(p.Pid)); err != nil {
			leftover = append(leftover, int(p.Pid))
		}
	}

	if !matched {
		return ErrNoSuchProcess
	}
	if len(leftover) > 0 {
		return &pkgerrors.TerminationTimeout{Leftovers: leftover}
	}
	return nil
}

func argvHasHost(args []string, host string) bool {
	for i, a := range args {
		if (a == "--host" || a == "-h") && i+1 < len(args) && args[i+1] == host {
			return true
		}
		if strings.HasPrefix(a, "--host=") && strings.TrimPrefix(a, "--host=") == host {
			return true
		}
	}
	return false
}

// readAndClearPIDFile reads the PID recorded at path and always removes the
// file afterward: malformed or unreadable contents count as stale.
func readAndClearPIDFile(path string) (int, bool) {
	defer os.Remove(path)

	b, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}
