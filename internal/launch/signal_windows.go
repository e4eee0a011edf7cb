//go:build windows

package launch

import (
	"errors"
	"os"
)

// Terminate kills the process. Windows' os.Process.Signal only supports
// os.Kill (there is no SIGTERM equivalent exposed by the Go runtime), so
// the graceful/forceful distinction collapses to a single Kill on this
// platform — the adapter's GracePeriod wait still applies, it just has
// nothing softer to wait out.
func Terminate(c *Child) error {
	return killProcess(c)
}

// Kill forcibly terminates the process.
func Kill(c *Child) error {
	return killProcess(c)
}

func killProcess(c *Child) error {
	if c.Cmd.Process == nil {
		return nil
	}
	err := c.Cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}
