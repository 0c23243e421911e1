package hook

import (
	"errors"
	"os/exec"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	calls []string
	env   []string
	err   error
}

func (f *fakeRunner) Run(command string, env []string) (string, error) {
	f.calls = append(f.calls, command)
	f.env = env
	return "ok", f.err
}

func TestHookRun(t *testing.T) {
	tests := []struct {
		name     string
		command  string
		modified []string
		calls    int
	}{
		{"no command", "", []string{"a.js"}, 0},
		{"no modified files", "prettier --write", nil, 0},
		{"runs", "prettier --write", []string{"api/a.js", "api/b.js"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRunner{}
			_, err := NewWithRunner(tt.command, r, nil).Run(tt.modified)
			require.NoError(t, err)
			assert.Len(t, r.calls, tt.calls)
			if tt.calls > 0 {
				assert.Equal(t, []string{EnvModified + "=api/a.js\napi/b.js"}, r.env)
			}
		})
	}
}

func TestHookRunError(t *testing.T) {
	boom := errors.New("exit status 1")
	r := &fakeRunner{err: boom}

	out, err := NewWithRunner("false", r, nil).Run([]string{"a.js"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "ok", out)
}

func TestSystemShell(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}

	out, err := New(`printf '%s' "$CACHEBUST_MODIFIED"`, sh, nil).Run([]string{"x.js", "y.js"})
	require.NoError(t, err)
	assert.Equal(t, "x.js\ny.js", out)
}
