package gh

import (
	"context"
	"log/slog"
)

// NewNoopFactory returns a Factory that builds clients which log status
// updates instead of posting them. Used for dry runs.
func NewNoopFactory(logger *slog.Logger) Factory {
	return noopFactory{log: logger}
}

type noopFactory struct {
	log *slog.Logger
}

func (f noopFactory) New(ctx context.Context, token string) (Client, error) {
	return noopClient{log: f.log}, nil
}

type noopClient struct {
	log *slog.Logger
}

func (c noopClient) CreateStatus(ctx context.Context, owner, repo, sha string, status CommitStatus) error {
	if c.log != nil {
		c.log.Info("dry run: skipping commit status", "owner", owner, "repo", repo, "sha", sha, "state", status.State, "context", status.Context, "description", status.Description)
	}
	return nil
}
