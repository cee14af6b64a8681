package lint

import "fmt"

// ProcessError reports a lint command that could not run to completion: it
// failed to start, or it was killed on timeout or cancellation. A command that
// ran and exited non-zero is an Outcome, not a ProcessError.
type ProcessError struct {
	Command string
	Output  string
	Err     error
}

func (e *ProcessError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("lint command %q: %v", e.Command, e.Err)
}

func (e *ProcessError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
