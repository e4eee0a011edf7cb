package acpadapter

import (
	"fmt"
	"os"

	"github.com/openclaw/acpadapter/internal/launch"
)

// Config is the adapter's resolved configuration shape: command, args,
// cwd, env. Parsing configuration into this shape is the host gateway's
// plugin shell's job — Config is only validated here.
type Config struct {
	// Command is the ACP agent executable; defaults to "kiro-cli".
	Command string
	// Args are passed to Command; defaults to ["acp"].
	Args []string
	// CWD is the default working directory used when a session omits one;
	// defaults to the process's current working directory.
	CWD string
	// Env is merged over the inherited process environment.
	Env map[string]string
}

const (
	defaultCommand = "kiro-cli"
)

var defaultArgs = []string{"acp"}

// ValidationError reports a single path-qualified configuration issue, the
// way a config loader would: field names the offending path
// ("command", "args[2]", "env"), not just a bare message.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("acpadapter: config %s: %s", e.Field, e.Msg)
}

// Validate checks Config's resolved shape for value-level issues a
// misconfigured host plugin might produce: an empty command, an empty args
// entry, or an empty env key. It does not check types — the fields are
// already typed, so type errors surface when unmarshaling into Config.
func (c Config) Validate() error {
	if c.Command == "" {
		return &ValidationError{Field: "command", Msg: "must not be empty"}
	}
	for i, a := range c.Args {
		if a == "" {
			return &ValidationError{Field: fmt.Sprintf("args[%d]", i), Msg: "must not be empty"}
		}
	}
	for k, v := range c.Env {
		if k == "" {
			return &ValidationError{Field: "env", Msg: "key must not be empty"}
		}
		_ = v // any string value is valid
	}
	return nil
}

// resolve applies defaults and returns the launch.Spec for a given
// effective cwd (the value already merged from session input vs. Config.CWD
// by the caller).
func (c Config) resolve(effectiveCWD string) launch.Spec {
	command := c.Command
	if command == "" {
		command = defaultCommand
	}
	args := c.Args
	if args == nil {
		args = defaultArgs
	}
	return launch.Spec{
		Command: command,
		Args:    args,
		CWD:     effectiveCWD,
		Env:     c.Env,
	}
}

// defaultCWD resolves Config.CWD, falling back to the process's own cwd.
// The workspace-dir half of that fallback is the host gateway's
// responsibility — Config.CWD is expected to already carry it; this only
// supplies the final fallback.
func (c Config) defaultCWD() string {
	if c.CWD != "" {
		return c.CWD
	}
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return wd
}
