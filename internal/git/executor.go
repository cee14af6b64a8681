package git

import "context"

// Executor materializes repository working copies for a single pipeline run.
type Executor interface {
	// Prepare clones branch of owner/repo into a fresh directory owned by the
	// returned Workspace. Callers must invoke Cleanup when done.
	Prepare(ctx context.Context, owner, repo, branch string) (Workspace, error)
}

// Workspace exposes the git primitives required by the remediation pipeline.
// Implementations may shell out to git or use a pure Go library.
type Workspace interface {
	// Dir returns the absolute base directory of the working copy.
	Dir() string
	FileExists(relativePath string) bool
	IsClean(ctx context.Context) (bool, error)
	CurrentBranch(ctx context.Context) (string, error)
	CreateBranch(ctx context.Context, name string) error
	Commit(ctx context.Context, message string) error
	Push(ctx context.Context) error
	Cleanup(ctx context.Context) error
}
