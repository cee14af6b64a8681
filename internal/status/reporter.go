// Package status reports lint results as GitHub commit statuses.
package status

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gh "github.com/rancher/delint-action/internal/github"
)

const (
	// DefaultContext is the status context lint results are posted under.
	DefaultContext = "linting/atomist"

	DescriptionSuccess = "Linting of TypeScript sources was successful"
	DescriptionFailure = "Linting of TypeScript sources failed"

	defaultAttempts    = 3
	defaultBackoff     = time.Second
	defaultCallTimeout = 30 * time.Second
)

// Options configures a Reporter.
type Options struct {
	Context   string
	TargetURL string
	// Attempts bounds how often a retryable API failure is retried.
	Attempts    int
	Backoff     time.Duration
	CallTimeout time.Duration
	Log         *slog.Logger
}

// Reporter posts commit statuses through a GitHub client.
type Reporter struct {
	client gh.Client
	opts   Options
}

// New returns a Reporter using client.
func New(client gh.Client, opts Options) *Reporter {
	if opts.Context == "" {
		opts.Context = DefaultContext
	}
	if opts.Attempts <= 0 {
		opts.Attempts = defaultAttempts
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	return &Reporter{client: client, opts: opts}
}

// State maps a lint exit code to a commit status state.
func State(exitCode int) string {
	if exitCode == 0 {
		return gh.StateSuccess
	}
	return gh.StateFailure
}

// Description maps a lint exit code to a status description.
func Description(exitCode int) string {
	if exitCode == 0 {
		return DescriptionSuccess
	}
	return DescriptionFailure
}

// Report posts the status for a finished lint run.
func (r *Reporter) Report(ctx context.Context, owner, repo, sha string, exitCode int) error {
	return r.Post(ctx, owner, repo, sha, State(exitCode), Description(exitCode))
}

// Post posts an explicit state and description for sha. Retryable API errors
// are retried with exponential backoff.
func (r *Reporter) Post(ctx context.Context, owner, repo, sha, state, description string) error {
	if r.client == nil {
		return fmt.Errorf("github client is required")
	}

	status := gh.CommitStatus{
		State:       state,
		Context:     r.opts.Context,
		Description: description,
		TargetURL:   r.opts.TargetURL,
	}

	delay := r.opts.Backoff
	var err error
	for attempt := 1; attempt <= r.opts.Attempts; attempt++ {
		err = r.post(ctx, owner, repo, sha, status)
		if err == nil {
			if r.opts.Log != nil {
				r.opts.Log.Info("posted commit status", "owner", owner, "repo", repo, "sha", sha, "state", state, "context", status.Context)
			}
			return nil
		}
		if !gh.IsRetryable(err) || attempt == r.opts.Attempts {
			break
		}

		if r.opts.Log != nil {
			r.opts.Log.Warn("retrying commit status", "attempt", attempt, "max_attempts", r.opts.Attempts, "delay", delay, "error", err)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("post status %s for %s/%s@%s: %w", state, owner, repo, sha, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}

	return fmt.Errorf("post status %s for %s/%s@%s: %w", state, owner, repo, sha, err)
}

func (r *Reporter) post(ctx context.Context, owner, repo, sha string, status gh.CommitStatus) error {
	ctx, cancel := context.WithTimeout(ctx, r.opts.CallTimeout)
	defer cancel()
	return r.client.CreateStatus(ctx, owner, repo, sha, status)
}
