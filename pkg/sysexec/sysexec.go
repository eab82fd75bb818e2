// Package sysexec runs external system commands for the providers and
// reports their output without raising process failures as Go errors.
//
// Providers treat a non-zero exit as data (a failed probe, an action that
// did not converge), so Run returns a Result carrying the exit code and
// captured streams alongside any start-up error.
package sysexec

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
)

// Result holds the outcome of one command invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

// Success reports whether the command started and exited zero.
func (r *Result) Success() bool {
	return r.Err == nil && r.ExitCode == 0
}

// Message returns a short human-readable failure description, preferring
// stderr over the raw error.
func (r *Result) Message() string {
	if stderr := strings.TrimSpace(r.Stderr); stderr != "" {
		return stderr
	}
	if r.Err != nil {
		return r.Err.Error()
	}
	return strings.TrimSpace(r.Stdout)
}

// Option modifies the command before it runs.
type Option func(*exec.Cmd)

// WithDir sets the working directory.
func WithDir(dir string) Option {
	return func(cmd *exec.Cmd) {
		cmd.Dir = dir
	}
}

// WithEnv appends KEY=VALUE pairs to the inherited environment.
func WithEnv(env ...string) Option {
	return func(cmd *exec.Cmd) {
		if cmd.Env == nil {
			cmd.Env = os.Environ()
		}
		cmd.Env = append(cmd.Env, env...)
	}
}

// WithStdin feeds input to the command's standard input.
func WithStdin(input string) Option {
	return func(cmd *exec.Cmd) {
		cmd.Stdin = strings.NewReader(input)
	}
}

// Run executes name with args and captures stdout and stderr.
// A non-zero exit is reported through Result.ExitCode, not as an error;
// Result.Err is set only when the command could not be started at all.
func Run(ctx context.Context, name string, args []string, opts ...Option) *Result {
	cmd := exec.CommandContext(ctx, name, args...)
	for _, opt := range opts {
		opt(cmd)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -1
			result.Err = err
		}
	}
	return result
}

// Output runs the command and returns trimmed stdout, discarding failures.
// Used for probes whose absence of output already means "not present".
func Output(ctx context.Context, name string, args ...string) string {
	res := Run(ctx, name, args)
	return strings.TrimSpace(res.Stdout)
}

// CommandExists reports whether name resolves on PATH.
func CommandExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// Hostname returns the kernel hostname, falling back to "unknown".
func Hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "unknown"
	}
	return name
}
