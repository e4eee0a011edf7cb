package acpadapter

import (
	"fmt"

	"github.com/openclaw/acpadapter/internal/launch"
)

// DoctorResult is the host-facing health report: {ok, code, message}.
type DoctorResult struct {
	OK      bool
	Code    string
	Message string
}

// ProbeAvailability runs the configured agent binary with --help, records
// whether it started and exited cleanly as the stored healthy flag
// IsHealthy reports, and returns that same result. Cheap enough to call
// on a health-check cadence.
func (a *Adapter) ProbeAvailability() bool {
	ok := launchProbe(a.cfg.resolve(a.cfg.defaultCWD()))
	a.healthy.Store(ok)
	return ok
}

// launchProbe is a package-level indirection point so tests can stub
// process probing without spawning a real binary.
var launchProbe = launch.Probe

// IsHealthy reports the result of the most recent ProbeAvailability call.
// False until a probe has actually run.
func (a *Adapter) IsHealthy() bool {
	return a.healthy.Load()
}

// Doctor composes ProbeAvailability into the host's {ok, code, message}
// health-check shape, used when a host wants a single call that both
// probes and formats the result for display.
func (a *Adapter) Doctor() DoctorResult {
	if a.ProbeAvailability() {
		return DoctorResult{OK: true, Message: fmt.Sprintf("%s available", a.cfg.resolve(a.cfg.defaultCWD()).Command)}
	}
	return DoctorResult{
		OK:      false,
		Code:    CodeBackendUnavailable,
		Message: "acp agent binary did not respond to --help",
	}
}
