//go:build windows

package supervisor

import (
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"llmcascade/internal/pkgerrors"
)

var (
	kernel32               = syscall.NewLazyDLL("kernel32.dll")
	procCreateJobObjectW   = kernel32.NewProc("CreateJobObjectW")
	procAssignProcessToJob = kernel32.NewProc("AssignProcessToJobObject")
	procTerminateJobObject = kernel32.NewProc("TerminateJobObject")
	procCloseHandle        = kernel32.NewProc("CloseHandle")
)

// setupProcessGroup does nothing on Windows. The Job Object is created by
// terminateGracefully at teardown, which assigns only the server process
// itself to it before terminating the job.
func setupProcessGroup(cmd *exec.Cmd) {
	// Job assignment happens after Start, once a process handle exists;
	// record nothing here, terminateGracefully creates the job lazily.
}

func terminateGracefully(cmd *exec.Cmd, gracePeriod time.Duration) error {
	pid := cmd.Process.Pid

	handleRaw, _, _ := procCreateJobObjectW.Call(0, 0)
	jobHandle := syscall.Handle(handleRaw)
	if jobHandle != 0 {
		defer procCloseHandle.Call(uintptr(jobHandle))

		procHandle, err := syscall.OpenProcess(syscall.PROCESS_ALL_ACCESS, false, uint32(pid))
		if err == nil {
			procAssignProcessToJob.Call(uintptr(jobHandle), uintptr(procHandle))
			syscall.CloseHandle(procHandle)
		}
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	// No graceful-stop signal equivalent to SIGTERM is sent to a Win32
	// console process here; the server is expected to serve a shutdown
	// endpoint. Absent that, escalate straight to a forced kill once the
	// grace period elapses.
	select {
	case <-done:
		return nil
	case <-time.After(gracePeriod):
	}

	if jobHandle != 0 {
		procTerminateJobObject.Call(uintptr(jobHandle), 1)
	} else if err := taskkillFallback(pid); err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-time.After(5 * time.Second):
		return &pkgerrors.TerminationTimeout{Leftovers: []int{pid}}
	}
}

// taskkillFallback shells out when the Job Object handle could not be
// created, mirroring the teacher's killProcessGroup fallback.
func taskkillFallback(pid int) error {
	cmd := exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(pid))
	if err := cmd.Run(); err != nil {
		return &pkgerrors.TerminationTimeout{Leftovers: []int{pid}}
	}
	return nil
}
