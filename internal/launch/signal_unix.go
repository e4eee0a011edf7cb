//go:build !windows

package launch

import (
	"errors"
	"os"
	"syscall"
)

// Terminate sends SIGTERM for graceful teardown of a child. Returns nil
// if the process had already exited.
func Terminate(c *Child) error {
	return signalProcess(c.Cmd.Process, syscall.SIGTERM)
}

// Kill forcibly terminates the process (escalation after GracePeriod).
func Kill(c *Child) error {
	return signalProcess(c.Cmd.Process, os.Kill)
}

func signalProcess(proc *os.Process, sig os.Signal) error {
	if proc == nil {
		return nil
	}
	err := proc.Signal(sig)
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}
