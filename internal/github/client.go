package gh

import (
	"context"
	"errors"
)

// Commit status states accepted by the GitHub statuses API.
const (
	StatePending = "pending"
	StateSuccess = "success"
	StateFailure = "failure"
	StateError   = "error"
)

// CommitStatus is a pass/fail marker attached to a commit.
type CommitStatus struct {
	State       string
	Context     string
	Description string
	TargetURL   string
}

// Client exposes the GitHub operations required by the delint pipeline.
type Client interface {
	CreateStatus(ctx context.Context, owner, repo, sha string, status CommitStatus) error
}

// Factory builds concrete GitHub clients (e.g., REST-backed) for the pipeline.
type Factory interface {
	New(ctx context.Context, token string) (Client, error)
}

// ErrInvalidState indicates a status state GitHub would reject.
var ErrInvalidState = errors.New("github: invalid status state")

// retryableError marks an error that may succeed if the operation is retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	if e == nil || e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// IsRetryable reports whether the supplied error resulted from a retryable GitHub
// API failure (for example, a transient network problem or rate-limited request).
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var target *retryableError
	return errors.As(err, &target)
}

func validState(state string) bool {
	switch state {
	case StatePending, StateSuccess, StateFailure, StateError:
		return true
	default:
		return false
	}
}
