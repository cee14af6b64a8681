package pipeline

import "errors"

var (
	// ErrClone indicates the repository or branch could not be cloned.
	ErrClone = errors.New("clone failed")
	// ErrMissingConfiguration indicates the repository has no lint configuration.
	ErrMissingConfiguration = errors.New("lint configuration missing")
	// ErrGitOperation indicates a branch, commit or push step failed.
	ErrGitOperation = errors.New("git operation failed")
	// ErrNotificationDelivery indicates a chat message could not be delivered.
	ErrNotificationDelivery = errors.New("notification delivery failed")
	// ErrStatusReport indicates the commit status could not be posted.
	ErrStatusReport = errors.New("status report failed")
)
