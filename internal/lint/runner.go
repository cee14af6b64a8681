// Package lint runs the external lint tool against a working copy.
package lint

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rancher/delint-action/internal/proc"
)

// Mode selects how lint and autofix are invoked.
type Mode string

const (
	// ModeSinglePass runs one command that lints and fixes in place.
	ModeSinglePass Mode = "single-pass"
	// ModeTwoPhase runs a check command and, when it fails, a separate fix command.
	ModeTwoPhase Mode = "two-phase"
)

const (
	defaultShell   = "sh"
	defaultTimeout = 10 * time.Minute
)

// ParseMode normalizes a configured mode name.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeSinglePass:
		return ModeSinglePass, nil
	case ModeTwoPhase:
		return ModeTwoPhase, nil
	default:
		return "", fmt.Errorf("unsupported lint mode %q", raw)
	}
}

// Outcome is the result of a lint run. ExitCode 0 means lint passed with no
// remaining issues; Output holds stdout and stderr interleaved.
type Outcome struct {
	ExitCode int
	Output   string
}

// Passed reports whether the lint run found no remaining issues.
func (o Outcome) Passed() bool {
	return o.ExitCode == 0
}

// Runner executes a lint policy in dir.
type Runner interface {
	Run(ctx context.Context, dir string) (Outcome, error)
}

// Options configures a Runner built by New.
type Options struct {
	Mode Mode
	// Command is the single-pass lint-and-fix command.
	Command string
	// CheckCommand and FixCommand drive the two-phase policy.
	CheckCommand string
	FixCommand   string
	// Timeout bounds each command. Defaults to 10 minutes.
	Timeout time.Duration
	// Shell interprets the commands. Defaults to "sh".
	Shell string
	Log   *slog.Logger
}

// New returns the Runner for opts.Mode.
func New(opts Options) (Runner, error) {
	exec := executor{shell: opts.Shell, timeout: opts.Timeout}

	switch opts.Mode {
	case "", ModeSinglePass:
		if strings.TrimSpace(opts.Command) == "" {
			return nil, fmt.Errorf("single-pass lint requires a command")
		}
		return &SinglePass{Command: opts.Command, exec: exec, log: opts.Log}, nil
	case ModeTwoPhase:
		if strings.TrimSpace(opts.CheckCommand) == "" || strings.TrimSpace(opts.FixCommand) == "" {
			return nil, fmt.Errorf("two-phase lint requires check and fix commands")
		}
		return &TwoPhase{Check: opts.CheckCommand, Fix: opts.FixCommand, exec: exec, log: opts.Log}, nil
	default:
		return nil, fmt.Errorf("unsupported lint mode %q", opts.Mode)
	}
}

// SinglePass runs one command that both lints and autofixes. The outcome
// reflects that run; its fixes are already applied to the working copy.
type SinglePass struct {
	Command string
	exec    executor
	log     *slog.Logger
}

func (r *SinglePass) Run(ctx context.Context, dir string) (Outcome, error) {
	outcome, err := r.exec.run(ctx, dir, r.Command)
	if err != nil {
		return Outcome{}, err
	}
	if r.log != nil {
		r.log.Info("lint finished", "mode", ModeSinglePass, "exit_code", outcome.ExitCode)
	}
	return outcome, nil
}

// TwoPhase runs Check and, only if it fails, Fix. The outcome carries the
// check phase; the fix phase's result, including a fix that cannot run, is
// logged and otherwise dropped.
type TwoPhase struct {
	Check string
	Fix   string
	exec  executor
	log   *slog.Logger
}

func (r *TwoPhase) Run(ctx context.Context, dir string) (Outcome, error) {
	outcome, err := r.exec.run(ctx, dir, r.Check)
	if err != nil {
		return Outcome{}, err
	}
	if r.log != nil {
		r.log.Info("lint check finished", "mode", ModeTwoPhase, "exit_code", outcome.ExitCode)
	}
	if outcome.Passed() {
		return outcome, nil
	}

	fixed, err := r.exec.run(ctx, dir, r.Fix)
	if err != nil {
		if r.log != nil {
			r.log.Warn("lint fix could not run", "mode", ModeTwoPhase, "error", err)
		}
		return outcome, nil
	}
	if r.log != nil {
		r.log.Info("lint fix finished", "mode", ModeTwoPhase, "exit_code", fixed.ExitCode)
	}
	return outcome, nil
}

type executor struct {
	shell   string
	timeout time.Duration
}

func (e executor) run(ctx context.Context, dir, command string) (Outcome, error) {
	shell := e.shell
	if shell == "" {
		shell = defaultShell
	}
	timeout := e.timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := proc.Run(ctx, proc.Command{Name: shell, Args: []string{"-c", command}, Dir: dir})
	switch {
	case err == nil:
		return Outcome{ExitCode: 0, Output: res.Output}, nil
	case proc.IsExitError(err):
		return Outcome{ExitCode: res.ExitCode, Output: res.Output}, nil
	default:
		return Outcome{}, &ProcessError{Command: command, Output: res.Output, Err: err}
	}
}
