package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rancher/delint-action/internal/proc"
)

// ShellExecutor shells out to the system git binary to prepare workspaces for
// lint remediation.
type ShellExecutor struct {
	// Git is the git binary to execute. Defaults to "git" when empty.
	Git string

	// BaseDir is the directory under which temporary workspaces are created. When
	// empty, os.TempDir() is used.
	BaseDir string

	// RemoteURL constructs the git remote URL for the given owner/repo pair. When
	// unset, https://github.com/<owner>/<repo>.git is assumed.
	RemoteURL func(owner, repo string) string

	// Token, if provided, is embedded into HTTPS remotes using the
	// x-access-token format.
	Token string

	// UserName and UserEmail configure the git identity for commits.
	UserName  string
	UserEmail string

	// SigningKey, if provided, enables GPG signing of remediation commits. The
	// key should be armored GPG private key material.
	SigningKey string

	// SigningPassphrase unlocks the signing key when required.
	SigningPassphrase string

	// RemoteName controls which remote the workspace interacts with. Defaults to "origin".
	RemoteName string

	// NetworkRetries controls how many additional attempts should be made for network
	// oriented git commands (clone, fetch, push). When zero, a default of 2 retries is used.
	// Rejected pushes are never retried.
	NetworkRetries int

	// NetworkRetryDelay controls the initial backoff delay between retries. When zero,
	// a default of 1 second is used. Backoff grows exponentially per attempt.
	NetworkRetryDelay time.Duration

	// NetworkTimeout bounds network commands that would otherwise inherit an unbounded
	// context. When zero, a default of 2 minutes is used.
	NetworkTimeout time.Duration
}

// NewShellExecutor returns an Executor backed by system git commands.
func NewShellExecutor() *ShellExecutor {
	return &ShellExecutor{}
}

func (e *ShellExecutor) gitBinary() string {
	if e.Git == "" {
		return "git"
	}
	return e.Git
}

func (e *ShellExecutor) remoteName() string {
	if e.RemoteName == "" {
		return "origin"
	}
	return e.RemoteName
}

func (e *ShellExecutor) remoteURL(owner, repo string) string {
	remote := fmt.Sprintf("https://github.com/%s/%s.git", owner, repo)
	if e.RemoteURL != nil {
		remote = e.RemoteURL(owner, repo)
	}
	return authenticatedURL(remote, e.Token)
}

// authenticatedURL embeds token into an https remote using the x-access-token
// user understood by GitHub.
func authenticatedURL(remote, token string) string {
	if token == "" || !strings.HasPrefix(remote, "https://") {
		return remote
	}
	parts := strings.SplitN(strings.TrimPrefix(remote, "https://"), "/", 2)
	if len(parts) != 2 {
		return remote
	}
	return fmt.Sprintf("https://x-access-token:%s@%s/%s", token, parts[0], parts[1])
}

func workspaceDir(base, repo string) (string, error) {
	if base == "" {
		base = os.TempDir()
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", fmt.Errorf("create workspace base: %w", err)
	}
	return os.MkdirTemp(base, fmt.Sprintf("delint-%s-", strings.ReplaceAll(repo, " ", "_")))
}

// Prepare clones branch into a new temporary directory and configures the
// commit identity.
func (e *ShellExecutor) Prepare(ctx context.Context, owner, repo, branch string) (Workspace, error) {
	if owner == "" || repo == "" {
		return nil, fmt.Errorf("owner and repo are required")
	}
	if branch == "" {
		return nil, fmt.Errorf("branch is required")
	}

	remoteURL := e.remoteURL(owner, repo)
	if remoteURL == "" {
		return nil, fmt.Errorf("remote url could not be determined")
	}

	workDir, err := workspaceDir(e.BaseDir, repo)
	if err != nil {
		return nil, err
	}

	cleanup := func() {
		_ = os.RemoveAll(workDir)
	}

	if err := e.runGit(ctx, "clone", "--origin", e.remoteName(), "--branch", branch, "--single-branch", remoteURL, workDir); err != nil {
		cleanup()
		return nil, fmt.Errorf("git clone %s/%s@%s: %w", owner, repo, branch, redact(err, e.Token))
	}

	if e.UserName != "" {
		if err := e.runGit(ctx, "-C", workDir, "config", "user.name", e.UserName); err != nil {
			cleanup()
			return nil, fmt.Errorf("git config user.name: %w", err)
		}
	}
	if e.UserEmail != "" {
		if err := e.runGit(ctx, "-C", workDir, "config", "user.email", e.UserEmail); err != nil {
			cleanup()
			return nil, fmt.Errorf("git config user.email: %w", err)
		}
	}

	ws := &shellWorkspace{
		executor:   e,
		path:       workDir,
		remoteName: e.remoteName(),
	}

	if e.SigningKey != "" {
		gpgHome, err := e.configureGPGSigning(ctx, workDir)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("configure gpg signing: %w", err)
		}
		ws.env = []string{"GNUPGHOME=" + gpgHome}
	}

	return ws, nil
}

type shellWorkspace struct {
	path       string
	remoteName string
	executor   *ShellExecutor
	// env is appended to the environment of every git command run in the workspace.
	env []string
}

func (w *shellWorkspace) Dir() string {
	return w.path
}

func (w *shellWorkspace) FileExists(relativePath string) bool {
	return fileExists(w.path, relativePath)
}

func (w *shellWorkspace) IsClean(ctx context.Context) (bool, error) {
	output, err := w.executor.captureGitOutput(ctx, "-C", w.path, "status", "--porcelain", "--untracked-files=all")
	if err != nil {
		return false, fmt.Errorf("git status: %w", err)
	}
	return strings.TrimSpace(output) == "", nil
}

func (w *shellWorkspace) CurrentBranch(ctx context.Context) (string, error) {
	output, err := w.executor.captureGitOutput(ctx, "-C", w.path, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("git rev-parse HEAD: %w", err)
	}
	return strings.TrimSpace(output), nil
}

// CreateBranch switches the working copy to name, carrying uncommitted changes
// along. Being on name already is not an error.
func (w *shellWorkspace) CreateBranch(ctx context.Context, name string) error {
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
	if err := w.exec(ctx, "checkout", "-B", name); err != nil {
		return fmt.Errorf("git checkout -B %s: %w", name, err)
	}
	return nil
}

func (w *shellWorkspace) Commit(ctx context.Context, message string) error {
	msg := strings.TrimSpace(message)
	if msg == "" {
		return fmt.Errorf("commit message is required")
	}
	if err := w.exec(ctx, "add", "--all"); err != nil {
		return fmt.Errorf("git add: %w", err)
	}
	if err := w.exec(ctx, "commit", "-m", msg); err != nil {
		return fmt.Errorf("git commit: %w", err)
	}
	return nil
}

// Push publishes the current branch under the same name. It never forces.
func (w *shellWorkspace) Push(ctx context.Context) error {
	branch, err := w.CurrentBranch(ctx)
	if err != nil {
		return err
	}
	if err := w.exec(ctx, "push", w.remoteName, fmt.Sprintf("HEAD:refs/heads/%s", branch)); err != nil {
		return fmt.Errorf("git push %s: %w", branch, redact(err, w.executor.Token))
	}
	return nil
}

func (w *shellWorkspace) Cleanup(ctx context.Context) error {
	return os.RemoveAll(w.path)
}

func (w *shellWorkspace) exec(ctx context.Context, args ...string) error {
	cmd := append([]string{"-C", w.path}, args...)
	return w.executor.runGitEnv(ctx, w.env, cmd...)
}

func (e *ShellExecutor) captureGitOutput(ctx context.Context, args ...string) (string, error) {
	res, err := proc.Run(ctx, proc.Command{Name: e.gitBinary(), Args: args, Env: gitEnv(nil)})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", &GitError{Args: args, Output: res.Output, Err: err}
	}
	return res.Output, nil
}

func (e *ShellExecutor) runGit(ctx context.Context, args ...string) error {
	return e.runGitEnv(ctx, nil, args...)
}

func (e *ShellExecutor) runGitEnv(ctx context.Context, extraEnv []string, args ...string) error {
	primary := primaryGitCommand(args)
	isNetwork := isNetworkCommand(primary)

	retries := 0
	if isNetwork {
		retries = e.networkRetriesValue()
	}

	delay := e.networkRetryDelayValue()
	var lastErr error

	for attempt := 0; attempt <= retries; attempt++ {
		attemptCtx, cancel := e.applyNetworkTimeout(ctx, isNetwork)
		err := e.runGitOnce(attemptCtx, extraEnv, args...)
		cancel()

		if err == nil {
			return nil
		}
		lastErr = err

		if !isNetwork || isPushRejected(err) {
			break
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			break
		}
		if attempt == retries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return lastErr
}

func (e *ShellExecutor) runGitOnce(ctx context.Context, extraEnv []string, args ...string) error {
	res, err := proc.Run(ctx, proc.Command{Name: e.gitBinary(), Args: args, Env: gitEnv(extraEnv)})
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return &GitError{Args: args, Output: res.Output, Err: err}
}

// gitEnv disables interactive credential prompts so a bad token fails fast.
func gitEnv(extra []string) []string {
	env := append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	return append(env, extra...)
}

func primaryGitCommand(args []string) string {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			if i+1 < len(args) {
				return args[i+1]
			}
			return ""
		}
		if strings.HasPrefix(arg, "-") {
			switch arg {
			case "-C", "--git-dir", "-c":
				i++
			}
			continue
		}
		return arg
	}
	return ""
}

func isNetworkCommand(cmd string) bool {
	switch cmd {
	case "clone", "fetch", "push", "pull":
		return true
	default:
		return false
	}
}

func (e *ShellExecutor) networkRetriesValue() int {
	if e.NetworkRetries < 0 {
		return 0
	}
	if e.NetworkRetries == 0 {
		return 2
	}
	return e.NetworkRetries
}

func (e *ShellExecutor) networkRetryDelayValue() time.Duration {
	if e.NetworkRetryDelay <= 0 {
		return time.Second
	}
	return e.NetworkRetryDelay
}

func (e *ShellExecutor) networkTimeoutValue() time.Duration {
	if e.NetworkTimeout <= 0 {
		return 2 * time.Minute
	}
	return e.NetworkTimeout
}

func (e *ShellExecutor) applyNetworkTimeout(ctx context.Context, network bool) (context.Context, context.CancelFunc) {
	if !network {
		return ctx, func() {}
	}
	if deadline, ok := ctx.Deadline(); ok && !deadline.IsZero() {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.networkTimeoutValue())
}

// configureGPGSigning imports the signing key into a keyring private to the
// workspace and returns that keyring's directory.
func (e *ShellExecutor) configureGPGSigning(ctx context.Context, workDir string) (string, error) {
	keyData := strings.TrimSpace(e.SigningKey)
	gpgHome := filepath.Join(workDir, ".git", "gnupg")
	if err := os.MkdirAll(gpgHome, 0o700); err != nil {
		return "", fmt.Errorf("create gpg home: %w", err)
	}

	keyFile := filepath.Join(gpgHome, "signing.key")
	if err := os.WriteFile(keyFile, []byte(keyData), 0o600); err != nil {
		return "", fmt.Errorf("write signing key: %w", err)
	}
	defer func() {
		_ = os.Remove(keyFile)
	}()

	env := os.Environ()
	if e.SigningPassphrase != "" {
		env = append(env, fmt.Sprintf("GPG_PASSPHRASE=%s", e.SigningPassphrase))
	}

	if res, err := proc.Run(ctx, proc.Command{Name: "gpg", Args: []string{"--homedir", gpgHome, "--batch", "--import", keyFile}, Env: env}); err != nil {
		return "", fmt.Errorf("gpg import key: %w\n%s", err, res.Output)
	}

	res, err := proc.Run(ctx, proc.Command{Name: "gpg", Args: []string{"--homedir", gpgHome, "--list-secret-keys", "--keyid-format=long"}})
	if err != nil {
		return "", fmt.Errorf("gpg list keys: %w\n%s", err, res.Output)
	}

	keyID := extractKeyID(res.Output)
	if keyID == "" {
		return "", fmt.Errorf("could not extract key ID from gpg output")
	}

	settings := [][2]string{
		{"user.signingkey", keyID},
		{"commit.gpgsign", "true"},
		{"gpg.program", "gpg"},
	}
	for _, kv := range settings {
		if err := e.runGit(ctx, "-C", workDir, "config", kv[0], kv[1]); err != nil {
			return "", fmt.Errorf("git config %s: %w", kv[0], err)
		}
	}

	return gpgHome, nil
}

// extractKeyID finds the long key id in `gpg --list-secret-keys` output, e.g.
// the ABCD1234EFGH5678 in "sec   rsa4096/ABCD1234EFGH5678".
func extractKeyID(output string) string {
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "sec") && !strings.Contains(line, "ssb") {
			continue
		}
		for _, part := range strings.Fields(line) {
			segments := strings.Split(part, "/")
			if len(segments) == 2 && len(segments[1]) >= 8 {
				return segments[1]
			}
		}
	}
	return ""
}
