//go:build !windows

package supervisor

import (
	"os/exec"
	"syscall"
	"time"

	"llmcascade/internal/pkgerrors"
)

// setupProcessGroup puts the child in its own process group so a kill
// signal can be delivered to the whole group (server plus any helper
// processes it spawns), not just the direct child, mirroring the
// teacher's tactile.setupProcessGroup.
func setupProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// terminateGracefully sends SIGTERM to the process group, waits up to
// gracePeriod for the child to exit, then escalates to SIGKILL. Falls
// back to a direct kill of the lone process if the group lookup fails,
// same escalation shape as the teacher's killProcessGroup.
func terminateGracefully(cmd *exec.Cmd, gracePeriod time.Duration) error {
	pid := cmd.Process.Pid

	pgid, err := syscall.Getpgid(pid)
	if err != nil {
		return directKill(cmd)
	}

	if err := syscall.Kill(-pgid, syscall.SIGTERM); err != nil {
		return directKill(cmd)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-done:
		return nil
	case <-time.After(gracePeriod):
	}

	if err := syscall.Kill(-pgid, syscall.SIGKILL); err != nil {
		return directKill(cmd)
	}

	select {
	case <-done:
		return nil
	case <-time.After(5 * time.Second):
		return &pkgerrors.TerminationTimeout{Leftovers: []int{pid}}
	}
}

func directKill(cmd *exec.Cmd) error {
	if err := cmd.Process.Kill(); err != nil && err.Error() != "os: process already finished" {
		return &pkgerrors.TerminationTimeout{Leftovers: []int{cmd.Process.Pid}}
	}
	cmd.Wait()
	return nil
}
