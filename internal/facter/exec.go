package facter

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"

	"puppetcheckin/internal/logging"
)

const (
	// Maximum stderr kept for logging.
	maxStderrSize = 10 * 1024
	// Maximum log output length for readability.
	maxLogLength = 200
	// How long to wait for output pipes after the process is killed.
	waitDelay = time.Second
)

// Runner runs an external program and returns its stdout.
type Runner interface {
	Run(ctx context.Context, bin string, args, env []string) ([]byte, error)
}

// ExecRunner runs programs with os/exec.
type ExecRunner struct {
	Log logging.Logger
}

// Run executes bin with an explicit environment and captures stdout/stderr separately.
func (r *ExecRunner) Run(ctx context.Context, bin string, args, env []string) ([]byte, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Env = env
	cmd.WaitDelay = waitDelay

	var stdoutBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	err := cmd.Run()
	duration := time.Since(start)

	stderr := limitOutput(stderrBuf.Bytes(), maxStderrSize)
	if trimmed := strings.TrimSpace(stderr); trimmed != "" && r.Log != nil {
		if len(trimmed) > maxLogLength {
			trimmed = trimmed[:maxLogLength] + "..."
		}
		r.Log.WithField("bytes", len(stderr)).Infof("stderr: %s", trimmed)
	}

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.Errorf("%s timed out after %v", bin, duration)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, errors.Errorf("%s exited with code %d", bin, exitErr.ExitCode())
		}
		return nil, errors.Wrapf(err, "run %s", bin)
	}

	if r.Log != nil {
		r.Log.WithField("duration", duration).
			WithField("bytes", stdoutBuf.Len()).
			Debugf("Command completed: %s %s", bin, strings.Join(args, " "))
	}
	return stdoutBuf.Bytes(), nil
}

// limitOutput truncates output if it exceeds maxSize.
func limitOutput(data []byte, maxSize int) string {
	if len(data) > maxSize {
		return string(data[:maxSize]) + "\n[Output truncated to 10KB]..."
	}
	return string(data)
}
