// Package proc runs external commands with their output captured and their
// process group bound to a context.
package proc

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// waitDelay bounds how long Wait blocks on output pipes after the process
// group has been killed.
const waitDelay = 2 * time.Second

// Result captures the combined output and exit status of a finished command.
// ExitCode is -1 when the command never started or was killed.
type Result struct {
	Output   string
	ExitCode int
}

// Command describes an external invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
	// Env, when non-nil, replaces the inherited environment.
	Env []string
}

// Run starts cmd and waits for it to exit or for ctx to end. Stdout and stderr
// are captured into a single buffer.
//
// The returned error is one of:
//   - nil when the command exited with status 0
//   - an *exec.ExitError when the command ran and exited non-zero
//   - ctx.Err() when the context ended first
//   - the start error when the command could not be launched
func Run(ctx context.Context, c Command) (Result, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if c.Env != nil {
		cmd.Env = c.Env
	}
	setProcessGroup(cmd)
	cmd.Cancel = func() error {
		terminateProcessGroup(cmd)
		return nil
	}
	cmd.WaitDelay = waitDelay

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Start(); err != nil {
		return Result{Output: output.String(), ExitCode: -1}, err
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		terminateProcessGroup(cmd)
		<-done
		return Result{Output: output.String(), ExitCode: -1}, ctx.Err()
	case err := <-done:
		if err == nil {
			return Result{Output: output.String(), ExitCode: 0}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{Output: output.String(), ExitCode: -1}, ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{Output: output.String(), ExitCode: exitErr.ExitCode()}, err
		}
		return Result{Output: output.String(), ExitCode: -1}, err
	}
}

// IsExitError reports whether err came from a command that ran to completion
// with a non-zero status.
func IsExitError(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}
