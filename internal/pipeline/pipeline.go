// Package pipeline reacts to a push by linting the pushed branch, committing
// any autofixes, notifying the author and reporting a commit status.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/rancher/delint-action/internal/git"
	gh "github.com/rancher/delint-action/internal/github"
	"github.com/rancher/delint-action/internal/lint"
)

// Stage names a step of the pipeline.
type Stage string

const (
	StageCloning         Stage = "cloning"
	StageCapabilityCheck Stage = "capability_check"
	StageLinting         Stage = "linting"
	StageReconciling     Stage = "reconciling"
	StageNotifying       Stage = "notifying"
	StageReportingStatus Stage = "reporting_status"
	StageDone            Stage = "done"
	StageFailed          Stage = "failed"
	StageSkipped         Stage = "skipped"
)

const (
	stateFailure = "failure"

	descriptionLintProcessFailed = "Linting of TypeScript sources could not be run"
	descriptionRemediationFailed = "Linting of TypeScript sources failed; fixes could not be pushed"
)

// Notifier tells the pushing author about lint failures. It reports whether a
// message was delivered and never fails the pipeline.
type Notifier interface {
	Notify(ctx context.Context, push PushEvent, outcome lint.Outcome, baseDir string) bool
}

// StatusReporter posts the commit status for a push.
type StatusReporter interface {
	Report(ctx context.Context, owner, repo, sha string, exitCode int) error
	Post(ctx context.Context, owner, repo, sha, state, description string) error
}

// Observer receives stage and run measurements.
type Observer interface {
	ObserveStage(stage string, duration time.Duration, err error)
	ObserveRun(stage string, code int, duration time.Duration)
}

// Result captures the outcome of a single pipeline run. Code 0 means the run
// completed, whether or not lint passed.
type Result struct {
	Code    int
	Message string

	// Stage is StageDone, StageSkipped or StageFailed; FailedAt names the
	// step that failed.
	Stage    Stage
	FailedAt Stage

	Lint          *lint.Outcome
	Branch        string
	Committed     bool
	Notified      bool
	StatusState   string
	StatusPosted  bool
	Skipped       bool
	SkippedReason string
	Err           error
}

// Pipeline coordinates the workspace, lint runner, notifier and status
// reporter for one push at a time.
type Pipeline struct {
	cfg       Config
	git       git.Executor
	lint      lint.Runner
	notifier  Notifier
	status    StatusReporter
	committer Committer
	observer  Observer
	log       *slog.Logger
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithNotifier sets the author notifier. Without one no notifications are sent.
func WithNotifier(n Notifier) Option {
	return func(p *Pipeline) { p.notifier = n }
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// WithLogger sets the pipeline logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// New returns a configured Pipeline.
func New(cfg Config, executor git.Executor, runner lint.Runner, reporter StatusReporter, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:    cfg.withDefaults(),
		git:    executor,
		lint:   runner,
		status: reporter,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.committer = Committer{Marker: p.cfg.CommitMarker, Log: p.log}
	return p
}

// Run processes push through every stage and returns the outcome. Failures are
// reported through Result rather than an error.
func (p *Pipeline) Run(ctx context.Context, push PushEvent) Result {
	start := time.Now()
	res := p.run(ctx, push)
	if p.observer != nil {
		p.observer.ObserveRun(string(res.Stage), res.Code, time.Since(start))
	}
	return res
}

func (p *Pipeline) run(ctx context.Context, push PushEvent) Result {
	log := p.logger().With("owner", push.Owner, "repo", push.Repo, "branch", push.Branch, "sha", push.After.SHA)

	if p.cfg.SkipRemediationCommits && HasMarker(push.After.Message, p.cfg.CommitMarker) {
		log.Info("skipping push: head commit was created by lint remediation")
		return Result{
			Stage:         StageSkipped,
			Message:       "Push contains a lint remediation commit",
			Skipped:       true,
			SkippedReason: "remediation commit",
		}
	}

	if p.git == nil || p.lint == nil {
		return Result{Code: 1, Stage: StageFailed, FailedAt: StageCloning, Message: "pipeline is not configured", Err: errors.New("git executor and lint runner are required")}
	}

	res := Result{}

	ws, err := timed(p, StageCloning, func() (git.Workspace, error) {
		return p.git.Prepare(ctx, push.Owner, push.Repo, push.Branch)
	})
	if err != nil {
		err = fmt.Errorf("%w: %s@%s: %w", ErrClone, push.FullName(), push.Branch, err)
		log.Error("clone failed", "error", err)
		return p.fail(res, StageCloning, fmt.Sprintf("Failed to clone %s at %s", push.FullName(), push.Branch), err)
	}
	defer func() {
		if err := ws.Cleanup(context.WithoutCancel(ctx)); err != nil {
			log.Warn("failed to cleanup workspace", "error", err)
		}
	}()

	found, _ := timed(p, StageCapabilityCheck, func() (bool, error) {
		if ws.FileExists(p.cfg.ConfigFile) {
			return true, nil
		}
		return false, ErrMissingConfiguration
	})
	if !found {
		log.Info("lint configuration missing", "file", p.cfg.ConfigFile)
		return p.fail(res, StageCapabilityCheck, fmt.Sprintf("No '%s' found in project root", p.cfg.ConfigFile), ErrMissingConfiguration)
	}

	outcome, err := timed(p, StageLinting, func() (lint.Outcome, error) {
		return p.lint.Run(ctx, ws.Dir())
	})
	if err != nil {
		log.Error("lint process failed", "error", err)
		p.postStatus(ctx, log, push, &res, stateFailure, descriptionLintProcessFailed)
		return p.fail(res, StageLinting, "Failed to run lint", err)
	}
	res.Lint = &outcome
	log.Info("lint completed", "exit_code", outcome.ExitCode)

	res.Branch = p.remediationBranch(push.Branch)
	committed, err := timed(p, StageReconciling, func() (bool, error) {
		return p.committer.Reconcile(ctx, ws, res.Branch, p.cfg.CommitMessage)
	})
	if err != nil {
		log.Error("failed to persist lint fixes", "error", err, "target_branch", res.Branch)
		p.postStatus(ctx, log, push, &res, stateFailure, descriptionRemediationFailed)
		return p.fail(res, StageReconciling, fmt.Sprintf("Failed to push lint fixes to %s", res.Branch), err)
	}
	res.Committed = committed

	if p.notifier != nil {
		res.Notified, _ = timed(p, StageNotifying, func() (bool, error) {
			return p.notifier.Notify(ctx, push, outcome, ws.Dir()), nil
		})
	}

	p.reportStatus(ctx, log, push, &res, outcome.ExitCode)

	res.Stage = StageDone
	if outcome.Passed() {
		res.Message = "Linting succeeded"
	} else {
		res.Message = "Linting failed"
	}
	return res
}

func (p *Pipeline) fail(res Result, stage Stage, message string, err error) Result {
	res.Code = 1
	res.Stage = StageFailed
	res.FailedAt = stage
	res.Message = message
	res.Err = err
	return res
}

func (p *Pipeline) reportStatus(ctx context.Context, log *slog.Logger, push PushEvent, res *Result, exitCode int) {
	if p.status == nil {
		return
	}
	state := gh.StateSuccess
	if exitCode != 0 {
		state = gh.StateFailure
	}
	_, err := timed(p, StageReportingStatus, func() (struct{}, error) {
		return struct{}{}, p.status.Report(ctx, push.Owner, push.Repo, push.After.SHA, exitCode)
	})
	p.recordStatus(log, res, state, err)
}

func (p *Pipeline) postStatus(ctx context.Context, log *slog.Logger, push PushEvent, res *Result, state, description string) {
	if p.status == nil {
		return
	}
	_, err := timed(p, StageReportingStatus, func() (struct{}, error) {
		return struct{}{}, p.status.Post(ctx, push.Owner, push.Repo, push.After.SHA, state, description)
	})
	p.recordStatus(log, res, state, err)
}

func (p *Pipeline) recordStatus(log *slog.Logger, res *Result, state string, err error) {
	res.StatusState = state
	if err != nil {
		log.Warn("failed to report commit status", "state", state, "error", fmt.Errorf("%w: %w", ErrStatusReport, err))
		return
	}
	res.StatusPosted = true
}

func (p *Pipeline) remediationBranch(pushed string) string {
	return gh.RemediationBranch(pushed, gh.BranchNamingOptions{Prefix: p.cfg.BranchPrefix})
}

func (p *Pipeline) observe(stage Stage, d time.Duration, err error) {
	if p.observer != nil {
		p.observer.ObserveStage(string(stage), d, err)
	}
}

func (p *Pipeline) logger() *slog.Logger {
	if p.log != nil {
		return p.log
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func timed[T any](p *Pipeline, stage Stage, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := fn()
	p.observe(stage, time.Since(start), err)
	return v, err
}
