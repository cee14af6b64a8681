package git

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPushRejected marks a push refused by the remote.
var ErrPushRejected = errors.New("push rejected by remote")

// GitError wraps failures when invoking the git binary.
type GitError struct {
	Args   []string
	Output string
	Err    error
}

func (e *GitError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("git %s: %v\n%s", strings.Join(e.Args, " "), e.Err, e.Output)
}

func (e *GitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsPushRejected reports whether err is a push the remote refused because the
// branch moved underneath us (or a hook declined it). Such failures are
// expected when two pushes race and must not be retried.
func IsPushRejected(err error) bool {
	return isPushRejected(err)
}

func isPushRejected(err error) bool {
	if errors.Is(err, ErrPushRejected) {
		return true
	}
	var gitErr *GitError
	if !errors.As(err, &gitErr) {
		return false
	}
	out := gitErr.Output
	return strings.Contains(out, "[rejected]") ||
		strings.Contains(out, "[remote rejected]") ||
		strings.Contains(out, "non-fast-forward") ||
		strings.Contains(out, "fetch first")
}

// redact strips token from the arguments and output of a GitError so that
// credentials embedded in remote URLs never reach logs.
func redact(err error, token string) error {
	if err == nil || token == "" {
		return err
	}
	var gitErr *GitError
	if !errors.As(err, &gitErr) {
		return err
	}
	args := make([]string, len(gitErr.Args))
	for i, arg := range gitErr.Args {
		args[i] = strings.ReplaceAll(arg, token, "***")
	}
	return &GitError{
		Args:   args,
		Output: strings.ReplaceAll(gitErr.Output, token, "***"),
		Err:    gitErr.Err,
	}
}
