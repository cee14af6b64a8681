package git

import (
	"context"
	"log/slog"
)

// NewDryRunExecutor returns an Executor whose workspaces are real clones from
// inner but whose branch, commit and push operations only log what they would
// have done. Lint still runs and mutates the working copy.
func NewDryRunExecutor(inner Executor, log *slog.Logger) Executor {
	return &dryRunExecutor{inner: inner, log: log}
}

type dryRunExecutor struct {
	inner Executor
	log   *slog.Logger
}

func (e *dryRunExecutor) Prepare(ctx context.Context, owner, repo, branch string) (Workspace, error) {
	ws, err := e.inner.Prepare(ctx, owner, repo, branch)
	if err != nil {
		return nil, err
	}
	return &dryRunWorkspace{Workspace: ws, log: e.log}, nil
}

type dryRunWorkspace struct {
	Workspace
	log *slog.Logger
}

func (w *dryRunWorkspace) CreateBranch(ctx context.Context, name string) error {
	if w.log != nil {
		w.log.Info("dry run: skipping branch creation", "branch", name)
	}
	return nil
}

func (w *dryRunWorkspace) Commit(ctx context.Context, message string) error {
	if w.log != nil {
		w.log.Info("dry run: skipping commit", "message", message)
	}
	return nil
}

func (w *dryRunWorkspace) Push(ctx context.Context) error {
	if w.log != nil {
		w.log.Info("dry run: skipping push")
	}
	return nil
}
