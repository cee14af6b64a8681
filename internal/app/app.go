package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"

	"github.com/rancher/delint-action/internal/event"
	"github.com/rancher/delint-action/internal/git"
	gh "github.com/rancher/delint-action/internal/github"
	"github.com/rancher/delint-action/internal/lint"
	"github.com/rancher/delint-action/internal/metrics"
	"github.com/rancher/delint-action/internal/notify"
	"github.com/rancher/delint-action/internal/pipeline"
	"github.com/rancher/delint-action/internal/status"
)

const (
	pushEventName  = "push"
	metricsJob     = "delint-action"
	metricsTimeout = 10 * time.Second
)

// Runner glues together the pipeline and supporting services to lint a single push.
type Runner struct {
	cfg       Config
	log       *slog.Logger
	ghFactory gh.Factory
	gitExec   git.Executor     // only set for testing via NewRunnerWithDeps
	messenger notify.Messenger // only set for testing via NewRunnerWithDeps
	metrics   *metrics.Recorder
}

// Deps carries injected collaborators for NewRunnerWithDeps.
type Deps struct {
	GitHub    gh.Factory
	Git       git.Executor
	Messenger notify.Messenger
}

// NewRunner constructs a Runner with the supplied configuration.
func NewRunner(cfg Config) (*Runner, error) {
	logger, err := NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	factory := gh.NewRESTFactory(cfg.GitHubBaseURL, cfg.GitHubUploadURL)
	if cfg.DryRun {
		factory = gh.NewNoopFactory(logger)
	}

	return &Runner{
		cfg:       cfg,
		log:       logger,
		ghFactory: factory,
		metrics:   metrics.New(),
	}, nil
}

// NewRunnerWithDeps constructs a Runner with injected dependencies for testing.
func NewRunnerWithDeps(cfg Config, log *slog.Logger, deps Deps) *Runner {
	return &Runner{
		cfg:       cfg,
		log:       log,
		ghFactory: deps.GitHub,
		gitExec:   deps.Git,
		messenger: deps.Messenger,
		metrics:   metrics.New(),
	}
}

// Run executes the application using the provided context. The returned error
// is non-nil whenever the pipeline finished with a non-zero code.
func (r *Runner) Run(ctx context.Context) (pipeline.Result, error) {
	log := r.logger()
	ctx = clog.WithLogger(ctx, clog.NewLogger(log))

	log.Info("starting delint action run", "dry_run", r.cfg.DryRun, "lint_mode", r.cfg.LintMode, "git_backend", r.cfg.GitBackend)

	eventName := strings.TrimSpace(r.cfg.Action.EventName)
	if eventName != pushEventName {
		log.Info("ignoring unsupported event", "event_name", eventName)
		res := skipped(fmt.Sprintf("unsupported event %q", eventName))
		r.writeReports(res)
		return res, nil
	}

	eventPath := strings.TrimSpace(r.cfg.Action.EventPath)
	if eventPath == "" {
		return pipeline.Result{}, fmt.Errorf("GITHUB_EVENT_PATH is required for push events")
	}

	payload, err := event.ParsePushEventFile(eventPath)
	if err != nil {
		return pipeline.Result{}, fmt.Errorf("parse push event: %w", err)
	}

	if reason := payload.SkipReason(); reason != "" {
		log.Info("skipping push", "reason", reason, "ref", payload.Ref)
		res := skipped(reason)
		r.writeReports(res)
		return res, nil
	}

	if payload.Repository.Owner == "" || payload.Repository.Name == "" {
		return pipeline.Result{}, fmt.Errorf("event payload missing repository owner/name")
	}

	p, err := r.buildPipeline(ctx)
	if err != nil {
		return pipeline.Result{}, err
	}

	res := p.Run(ctx, r.pushEvent(payload))
	log.Info("delint pipeline finished", "code", res.Code, "stage", res.Stage, "message", res.Message, "committed", res.Committed, "notified", res.Notified, "status", res.StatusState)

	r.writeReports(res)
	r.pushMetrics(ctx, payload.Repository)

	if res.Code != 0 {
		if res.Err != nil {
			return res, fmt.Errorf("%s: %w", res.Message, res.Err)
		}
		return res, fmt.Errorf("%s", res.Message)
	}
	return res, nil
}

func (r *Runner) buildPipeline(ctx context.Context) (*pipeline.Pipeline, error) {
	if r.ghFactory == nil {
		return nil, fmt.Errorf("github client factory is required")
	}
	ghClient, err := r.ghFactory.New(ctx, r.cfg.GitHubToken)
	if err != nil {
		return nil, fmt.Errorf("initialize github client: %w", err)
	}

	gitExec := r.gitExec
	if gitExec == nil {
		gitExec, err = r.buildGitExecutor()
		if err != nil {
			return nil, fmt.Errorf("configure git executor: %w", err)
		}
	}
	if r.cfg.DryRun {
		gitExec = git.NewDryRunExecutor(gitExec, r.log)
	}

	runner, err := lint.New(lint.Options{
		Mode:         lint.Mode(r.cfg.LintMode),
		Command:      r.cfg.LintCommand,
		CheckCommand: r.cfg.LintCheckCommand,
		FixCommand:   r.cfg.LintFixCommand,
		Timeout:      r.cfg.LintTimeout,
		Log:          r.log,
	})
	if err != nil {
		return nil, fmt.Errorf("configure lint runner: %w", err)
	}

	reporter := status.New(ghClient, status.Options{
		Context:   r.cfg.StatusContext,
		TargetURL: r.runURL(),
		Log:       r.log,
	})

	opts := []pipeline.Option{pipeline.WithLogger(r.log)}
	if r.metrics != nil {
		opts = append(opts, pipeline.WithObserver(r.metrics))
	}

	messenger, err := r.buildMessenger()
	if err != nil {
		return nil, fmt.Errorf("configure notifications: %w", err)
	}
	if messenger != nil {
		opts = append(opts, pipeline.WithNotifier(notify.NewDispatcher(messenger, notify.WithLogger(r.log))))
	} else if r.log != nil {
		r.log.Debug("chat notifications disabled: no slack token configured")
	}

	cfg := pipeline.Config{
		ConfigFile:    r.cfg.LintConfigFile,
		CommitMessage: r.cfg.CommitMessage,
		CommitMarker:  r.cfg.CommitMarker,
		BranchPrefix:  r.cfg.BranchPrefix,

		SkipRemediationCommits: r.cfg.SkipRemediationCommits,
	}
	return pipeline.New(cfg, gitExec, runner, reporter, opts...), nil
}

func (r *Runner) buildGitExecutor() (git.Executor, error) {
	remote := remoteURLBuilder(r.cfg)

	switch r.cfg.GitBackend {
	case "", gitBackendShell:
		exec := git.NewShellExecutor()
		exec.Token = r.cfg.GitHubToken
		exec.UserName = r.cfg.GitUserName
		exec.UserEmail = r.cfg.GitUserEmail
		exec.SigningKey = r.cfg.GitSigningKey
		exec.SigningPassphrase = r.cfg.GitSigningPass
		exec.NetworkTimeout = r.cfg.GitNetworkTimeout
		if remote != nil {
			exec.RemoteURL = remote
		}
		return exec, nil
	case gitBackendGoGit:
		return &git.GoGitExecutor{
			RemoteURL:      remote,
			Token:          r.cfg.GitHubToken,
			UserName:       r.cfg.GitUserName,
			UserEmail:      r.cfg.GitUserEmail,
			NetworkTimeout: r.cfg.GitNetworkTimeout,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported git backend %q", r.cfg.GitBackend)
	}
}

func (r *Runner) buildMessenger() (notify.Messenger, error) {
	switch {
	case r.messenger != nil:
		return r.messenger, nil
	case r.cfg.SlackToken == "":
		return nil, nil
	case r.cfg.DryRun:
		return notify.NewDryRunMessenger(r.log), nil
	default:
		slack, err := notify.NewSlackMessenger(r.cfg.SlackToken, r.cfg.SlackAPIURL)
		if err != nil {
			return nil, err
		}
		return slack, nil
	}
}

// pushEvent converts the payload into the pipeline's view of the push,
// resolving the author's chat identity from the configured directory.
func (r *Runner) pushEvent(payload event.PushPayload) pipeline.PushEvent {
	push := pipeline.PushEvent{
		Owner:     payload.Repository.Owner,
		Repo:      payload.Repository.Name,
		Branch:    payload.Branch,
		BeforeSHA: payload.Before,
		After: pipeline.Commit{
			SHA:         payload.HeadCommit.SHA,
			Message:     payload.HeadCommit.Message,
			AuthorLogin: payload.AuthorLogin(),
			AuthorEmail: payload.HeadCommit.AuthorEmail,
		},
	}

	if r.cfg.ChatIdentitiesFile == "" {
		return push
	}
	dir, err := notify.LoadDirectory(r.cfg.ChatIdentitiesFile)
	if err != nil {
		r.logger().Warn("failed to load chat identities", "path", r.cfg.ChatIdentitiesFile, "error", err)
		return push
	}
	if id, ok := dir.Lookup(push.After.AuthorLogin, push.After.AuthorEmail); ok {
		push.After.AuthorChatIdentity = &id
	}
	return push
}

func (r *Runner) pushMetrics(ctx context.Context, repo event.Repository) {
	if r.metrics == nil || r.cfg.PushgatewayURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, metricsTimeout)
	defer cancel()

	grouping := map[string]string{"repository": repo.Owner + "/" + repo.Name}
	if err := r.metrics.Push(ctx, r.cfg.PushgatewayURL, metricsJob, grouping); err != nil {
		r.logger().Warn("failed to push metrics", "error", err)
	}
}

func (r *Runner) writeReports(res pipeline.Result) {
	if err := r.writeStepSummary(res); err != nil {
		r.logger().Warn("failed to write step summary", "error", err)
	}
	if err := r.writeGitHubOutputs(res); err != nil {
		r.logger().Warn("failed to write action outputs", "error", err)
	}
}

// runURL links commit statuses back to the workflow run.
func (r *Runner) runURL() string {
	a := r.cfg.Action
	if a.ServerURL == "" || a.Repository == "" || a.RunID == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/actions/runs/%s", strings.TrimRight(a.ServerURL, "/"), a.Repository, a.RunID)
}

func (r *Runner) logger() *slog.Logger {
	if r.log != nil {
		return r.log
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func skipped(reason string) pipeline.Result {
	return pipeline.Result{
		Stage:         pipeline.StageSkipped,
		Message:       "Skipped: " + reason,
		Skipped:       true,
		SkippedReason: reason,
	}
}

func remoteURLBuilder(cfg Config) func(owner, repo string) string {
	base := strings.TrimSpace(cfg.GitHubBaseURL)
	if base == "" {
		return nil
	}

	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil
	}

	root := (&url.URL{Scheme: parsed.Scheme, Host: parsed.Host}).String()
	root = strings.TrimRight(root, "/")

	return func(owner, repo string) string {
		return fmt.Sprintf("%s/%s/%s.git", root, owner, repo)
	}
}
