package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rancher/delint-action/internal/git"
)

// DefaultMarker tags commits created by the remediation step.
const DefaultMarker = "[auto-delint]"

// Committer persists lint fixes left in a workspace.
type Committer struct {
	Marker string
	Log    *slog.Logger
}

// Reconcile commits and pushes any changes in ws onto branch. It reports
// whether a commit was pushed. A clean workspace is left untouched, so calling
// Reconcile again after a successful push is a no-op.
func (c Committer) Reconcile(ctx context.Context, ws git.Workspace, branch, message string) (bool, error) {
	clean, err := ws.IsClean(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: check workspace status: %w", ErrGitOperation, err)
	}
	if clean {
		if c.Log != nil {
			c.Log.Debug("workspace clean after lint, nothing to commit")
		}
		return false, nil
	}

	if err := ws.CreateBranch(ctx, branch); err != nil {
		return false, fmt.Errorf("%w: create branch %s: %w", ErrGitOperation, branch, err)
	}
	if err := ws.Commit(ctx, WithMarker(message, c.marker())); err != nil {
		return false, fmt.Errorf("%w: commit lint fixes: %w", ErrGitOperation, err)
	}
	if err := ws.Push(ctx); err != nil {
		return false, fmt.Errorf("%w: push %s: %w", ErrGitOperation, branch, err)
	}

	if c.Log != nil {
		c.Log.Info("pushed lint fixes", "branch", branch)
	}
	return true, nil
}

func (c Committer) marker() string {
	if strings.TrimSpace(c.Marker) == "" {
		return DefaultMarker
	}
	return c.Marker
}

// WithMarker appends marker to message on its own line unless already present.
func WithMarker(message, marker string) string {
	if marker == "" || strings.Contains(message, marker) {
		return message
	}
	message = strings.TrimRight(message, "\n")
	if message == "" {
		return marker
	}
	return message + "\n" + marker
}

// HasMarker reports whether message was produced by the remediation step.
func HasMarker(message, marker string) bool {
	return marker != "" && strings.Contains(message, marker)
}
