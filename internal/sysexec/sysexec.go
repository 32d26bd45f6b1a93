// Package sysexec runs shell commands with stdout and stderr merged into a
// single stream that is both forwarded live and captured.
package sysexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	osexec "os/exec"
	"time"
)

// Result is the outcome of a command that was started.
type Result struct {
	// Output holds everything written to stdout and stderr, in order.
	Output []byte
	// ExitCode is the process exit status, or -1 if it was killed by a signal.
	ExitCode int
}

// Shell runs commands via "<Path> -c <command>".
type Shell struct {
	// Path is the shell binary. Empty means "sh".
	Path string
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Env is the process environment. Nil means inherit.
	Env []string
	// Stdin is connected to the command. Nil means the null device.
	Stdin io.Reader
	// WaitDelay bounds how long Run waits for output after ctx is done.
	WaitDelay time.Duration
	// Logger receives a debug record per finished command. Nil means
	// slog.Default().
	Logger *slog.Logger
}

// Run executes command, copying its merged output to live (if non-nil) as it
// arrives. A non-zero exit status is reported through [Result.ExitCode], not
// as an error; errors are reserved for failures to start or wait for the
// process, including cancellation of ctx.
func (s *Shell) Run(ctx context.Context, command string, live io.Writer) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	shell := s.Path
	if shell == "" {
		shell = "sh"
	}

	var captured bytes.Buffer
	var out io.Writer = &captured
	if live != nil {
		out = io.MultiWriter(&captured, live)
	}

	c := osexec.CommandContext(ctx, shell, "-c", command)
	c.Dir = s.Dir
	c.Env = s.Env
	c.Stdin = s.Stdin
	// same writer for both, so os/exec serializes writes to it
	c.Stdout = out
	c.Stderr = out
	c.WaitDelay = s.WaitDelay

	start := time.Now()
	err := c.Run()
	res := &Result{Output: captured.Bytes()}

	var exitErr *osexec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr) && ctx.Err() == nil:
		res.ExitCode = exitErr.ExitCode()
	default:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, fmt.Errorf("command %q: %w", command, ctxErr)
		}
		return res, fmt.Errorf("command %q: %w", command, err)
	}

	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("sysexec: command finished",
		"command", command,
		"exitCode", res.ExitCode,
		"bytes", len(res.Output),
		"elapsed", time.Since(start))
	return res, nil
}
