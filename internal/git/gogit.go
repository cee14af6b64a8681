package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	gogit "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// GoGitExecutor prepares workspaces with go-git, for runners that do not ship
// a git binary.
type GoGitExecutor struct {
	// BaseDir is the directory under which temporary workspaces are created.
	BaseDir string

	// RemoteURL constructs the clone URL. Defaults to https://github.com/<owner>/<repo>.git.
	RemoteURL func(owner, repo string) string

	// Token authenticates HTTPS remotes as the x-access-token user.
	Token string

	UserName  string
	UserEmail string

	// RemoteName defaults to "origin".
	RemoteName string

	// NetworkTimeout bounds clone and push when the caller supplied no deadline.
	// Defaults to 2 minutes.
	NetworkTimeout time.Duration
}

func (e *GoGitExecutor) remoteName() string {
	if e.RemoteName == "" {
		return "origin"
	}
	return e.RemoteName
}

func (e *GoGitExecutor) remoteURL(owner, repo string) string {
	if e.RemoteURL != nil {
		return e.RemoteURL(owner, repo)
	}
	return fmt.Sprintf("https://github.com/%s/%s.git", owner, repo)
}

// auth returns nil for non-HTTP remotes; go-git rejects basic auth on the
// file transport.
func (e *GoGitExecutor) auth(remote string) transport.AuthMethod {
	if e.Token == "" || !strings.HasPrefix(remote, "http") {
		return nil
	}
	return &githttp.BasicAuth{Username: "x-access-token", Password: e.Token}
}

func (e *GoGitExecutor) withNetworkTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	timeout := e.NetworkTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return context.WithTimeout(ctx, timeout)
}

// Prepare clones a single branch of owner/repo into a new temporary directory.
func (e *GoGitExecutor) Prepare(ctx context.Context, owner, repo, branch string) (Workspace, error) {
	if owner == "" || repo == "" {
		return nil, fmt.Errorf("owner and repo are required")
	}
	if branch == "" {
		return nil, fmt.Errorf("branch is required")
	}

	dir, err := workspaceDir(e.BaseDir, repo)
	if err != nil {
		return nil, err
	}

	remote := e.remoteURL(owner, repo)
	clog.FromContext(ctx).Infof("Cloning %s/%s@%s into %s", owner, repo, branch, dir)

	cloneCtx, cancel := e.withNetworkTimeout(ctx)
	defer cancel()

	r, err := gogit.PlainCloneContext(cloneCtx, dir, false, &gogit.CloneOptions{
		URL:           remote,
		RemoteName:    e.remoteName(),
		ReferenceName: plumbing.NewBranchReferenceName(branch),
		SingleBranch:  true,
		Auth:          e.auth(remote),
	})
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("cloning %s/%s@%s: %w", owner, repo, branch, err)
	}

	return &goGitWorkspace{executor: e, path: dir, repo: r, remote: remote}, nil
}

type goGitWorkspace struct {
	executor *GoGitExecutor
	path     string
	remote   string
	repo     *gogit.Repository
}

func (w *goGitWorkspace) Dir() string {
	return w.path
}

func (w *goGitWorkspace) FileExists(relativePath string) bool {
	return fileExists(w.path, relativePath)
}

func (w *goGitWorkspace) IsClean(ctx context.Context) (bool, error) {
	wt, err := w.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("getting worktree: %w", err)
	}
	st, err := wt.Status()
	if err != nil {
		return false, fmt.Errorf("computing status: %w", err)
	}
	return st.IsClean(), nil
}

func (w *goGitWorkspace) CurrentBranch(ctx context.Context) (string, error) {
	head, err := w.repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolving HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return "", fmt.Errorf("HEAD is detached at %s", head.Hash())
	}
	return head.Name().Short(), nil
}

// CreateBranch points name at HEAD and switches to it, keeping local changes.
func (w *goGitWorkspace) CreateBranch(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("branch name is required")
	}
	current, err := w.CurrentBranch(ctx)
	if err != nil {
		return err
	}
	if current == name {
		return nil
	}

	head, err := w.repo.Head()
	if err != nil {
		return fmt.Errorf("resolving HEAD: %w", err)
	}
	refName := plumbing.NewBranchReferenceName(name)
	if err := w.repo.Storer.SetReference(plumbing.NewHashReference(refName, head.Hash())); err != nil {
		return fmt.Errorf("creating branch %s: %w", name, err)
	}

	wt, err := w.repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}
	if err := wt.Checkout(&gogit.CheckoutOptions{Branch: refName, Keep: true}); err != nil {
		return fmt.Errorf("checking out %s: %w", name, err)
	}
	return nil
}

func (w *goGitWorkspace) Commit(ctx context.Context, message string) error {
	msg := strings.TrimSpace(message)
	if msg == "" {
		return fmt.Errorf("commit message is required")
	}

	wt, err := w.repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}
	if err := wt.AddWithOptions(&gogit.AddOptions{All: true}); err != nil {
		return fmt.Errorf("staging changes: %w", err)
	}

	sig := &object.Signature{
		Name:  w.executor.UserName,
		Email: w.executor.UserEmail,
		When:  time.Now(),
	}
	hash, err := wt.Commit(msg, &gogit.CommitOptions{All: true, Author: sig, Committer: sig})
	if err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	clog.FromContext(ctx).Infof("Created commit %s", hash)
	return nil
}

func (w *goGitWorkspace) Push(ctx context.Context) error {
	branch, err := w.CurrentBranch(ctx)
	if err != nil {
		return err
	}

	pushCtx, cancel := w.executor.withNetworkTimeout(ctx)
	defer cancel()

	spec := gitconfig.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch))
	err = w.repo.PushContext(pushCtx, &gogit.PushOptions{
		RemoteName: w.executor.remoteName(),
		RefSpecs:   []gitconfig.RefSpec{spec},
		Auth:       w.executor.auth(w.remote),
	})
	switch {
	case err == nil, errors.Is(err, gogit.NoErrAlreadyUpToDate):
		return nil
	case strings.Contains(err.Error(), "non-fast-forward"), strings.Contains(err.Error(), "rejected"):
		return fmt.Errorf("pushing %s: %w: %w", branch, ErrPushRejected, err)
	default:
		return fmt.Errorf("pushing %s: %w", branch, err)
	}
}

func (w *goGitWorkspace) Cleanup(ctx context.Context) error {
	return os.RemoveAll(w.path)
}
