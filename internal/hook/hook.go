package hook

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// EnvModified names the variable holding the modified paths, one per line
const EnvModified = "CACHEBUST_MODIFIED"

// ShellRunner defines the interface for shell command execution
type ShellRunner interface {
	Run(command string, env []string) (string, error)
}

// systemShell runs commands through shell -c
type systemShell struct {
	shell string
}

// Run executes command with env appended to the process environment
func (s *systemShell) Run(command string, env []string) (string, error) {
	cmd := exec.Command(s.shell, "-c", command)
	cmd.Env = append(os.Environ(), env...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.String(), err
}

// Hook runs a command after a run that modified files
type Hook struct {
	command string
	runner  ShellRunner
	logger  *zap.Logger
}

// New creates a hook running command through shell
func New(command, shell string, logger *zap.Logger) *Hook {
	return NewWithRunner(command, &systemShell{shell: shell}, logger)
}

// NewWithRunner creates a hook with a custom runner
func NewWithRunner(command string, runner ShellRunner, logger *zap.Logger) *Hook {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hook{command: command, runner: runner, logger: logger}
}

// Run executes the hook. Nothing runs when no command is configured or no
// files were modified.
func (h *Hook) Run(modified []string) (string, error) {
	if h.command == "" || len(modified) == 0 {
		return "", nil
	}

	h.logger.Debug("Running post hook",
		zap.String("command", h.command),
		zap.Int("files", len(modified)))

	env := []string{EnvModified + "=" + strings.Join(modified, "\n")}
	out, err := h.runner.Run(h.command, env)
	if err != nil {
		return out, fmt.Errorf("post hook %q: %w", h.command, err)
	}
	return out, nil
}
