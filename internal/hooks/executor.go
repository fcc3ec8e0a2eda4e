// Package hooks runs operator-configured shell commands after dependency
// changes commit.
package hooks

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"
)

const (
	DefaultTimeout = 30 * time.Second
	MaxTimeout     = 300 * time.Second

	// maxOutput bounds the output kept from a hook; the tail is dropped.
	maxOutput = 4 << 10
)

// Result describes one finished hook command.
type Result struct {
	Output   string // stdout, or stderr when stdout is empty; trimmed and capped
	ExitCode int    // -1 when the command did not exit normally (timeout, not started)
	Duration time.Duration
	Err      error
}

// Execute runs command through "sh -c" in cwd with env layered over the
// process environment. A missing cwd falls back to the server's directory.
func Execute(ctx context.Context, command string, timeout time.Duration, cwd string, env map[string]string) Result {
	timeout = min(max(timeout, 0), MaxTimeout)
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command) //nolint:gosec // hook commands come from server config
	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	// Grandchildren holding the pipes open must not outlive the timeout.
	cmd.WaitDelay = time.Second
	if cwd != "" {
		if info, err := os.Stat(cwd); err == nil && info.IsDir() {
			cmd.Dir = cwd
		}
	}
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	start := time.Now()
	err := cmd.Run()
	res := Result{Duration: time.Since(start), Err: err, ExitCode: -1}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.ExitCode = 0
	case errors.As(err, &exitErr) && ctx.Err() == nil:
		res.ExitCode = exitErr.ExitCode()
	case ctx.Err() != nil:
		res.Err = errors.Join(err, ctx.Err())
	}

	out := stdout.String()
	if strings.TrimSpace(out) == "" {
		out = stderr.String()
	}
	res.Output = capOutput(strings.TrimSpace(out))
	return res
}

func capOutput(s string) string {
	if len(s) <= maxOutput {
		return s
	}
	return s[:maxOutput] + "...(truncated)"
}
