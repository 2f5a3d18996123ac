package creds

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/mcpland/gitlab-mcp-sub000/pkg/logging"
)

// maxScriptOutput caps how much a secret script may print. Exceeding the
// ceiling aborts the command rather than buffering unbounded output.
const maxScriptOutput = 1 << 20 // 1 MiB

var errOutputCeiling = errors.New("output exceeds ceiling")

// ScriptSource retrieves a credential by running a configured external
// command and parsing its stdout.
type ScriptSource struct {
	command string
	timeout time.Duration
}

// NewScriptSource creates a script source for the given shell command.
func NewScriptSource(command string, timeout time.Duration) *ScriptSource {
	return &ScriptSource{command: command, timeout: timeout}
}

// Resolve runs the command with a bounded deadline and returns the parsed
// secret. The command runs through the shell so configured values may use
// pipes and substitutions.
func (s *ScriptSource) Resolve(ctx context.Context) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", s.command)

	var stdout boundedBuffer
	stdout.limit = maxScriptOutput
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		if stdout.overflowed {
			return "", &ScriptError{Command: s.command, Err: errOutputCeiling}
		}
		if runCtx.Err() != nil {
			return "", &ScriptError{Command: s.command, Err: runCtx.Err()}
		}
		return "", &ScriptError{Command: s.command, Err: err}
	}

	secret, err := ParseSecretOutput(stdout.buf.Bytes())
	if err != nil {
		return "", &ScriptError{Command: s.command, Err: err}
	}

	logging.Debug("CredentialResolver", "Secret script resolved a credential (%d bytes of output)", stdout.buf.Len())
	return secret, nil
}

// boundedBuffer is an io.Writer that rejects writes past a fixed limit,
// which makes exec kill the child instead of letting it stream forever.
type boundedBuffer struct {
	buf        bytes.Buffer
	limit      int
	overflowed bool
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	if b.buf.Len()+len(p) > b.limit {
		b.overflowed = true
		return 0, errOutputCeiling
	}
	return b.buf.Write(p)
}
