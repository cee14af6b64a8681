package event

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/go-github/v55/github"
)

const (
	branchRefPrefix = "refs/heads/"
	tagRefPrefix    = "refs/tags/"
)

// PushPayload captures the subset of GitHub push event data used by the action.
type PushPayload struct {
	Ref        string
	Branch     string
	Repository Repository
	Before     string
	After      string
	Created    bool
	Deleted    bool
	HeadCommit HeadCommit
	Sender     string
}

// Repository identifies the owner/name of the repository where the event originated.
type Repository struct {
	Owner string
	Name  string
}

// HeadCommit describes the most recent commit of a push.
type HeadCommit struct {
	SHA         string
	Message     string
	AuthorName  string
	AuthorLogin string
	AuthorEmail string
}

// ParsePushEvent decodes a GitHub push event payload from the provided reader.
func ParsePushEvent(r io.Reader) (PushPayload, error) {
	var raw github.PushEvent

	dec := json.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		return PushPayload{}, fmt.Errorf("decode push event: %w", err)
	}

	ref := strings.TrimSpace(raw.GetRef())
	owner := strings.TrimSpace(raw.GetRepo().GetOwner().GetLogin())
	if owner == "" {
		// Push payloads carry the owner's login under "name".
		owner = strings.TrimSpace(raw.GetRepo().GetOwner().GetName())
	}

	payload := PushPayload{
		Ref: ref,
		Repository: Repository{
			Owner: owner,
			Name:  strings.TrimSpace(raw.GetRepo().GetName()),
		},
		Before:  strings.TrimSpace(raw.GetBefore()),
		After:   strings.TrimSpace(raw.GetAfter()),
		Created: raw.GetCreated(),
		Deleted: raw.GetDeleted(),
		Sender:  strings.TrimSpace(raw.GetSender().GetLogin()),
	}

	if strings.HasPrefix(ref, branchRefPrefix) {
		payload.Branch = strings.TrimPrefix(ref, branchRefPrefix)
	}

	if head := raw.GetHeadCommit(); head != nil {
		payload.HeadCommit = HeadCommit{
			SHA:         strings.TrimSpace(head.GetID()),
			Message:     head.GetMessage(),
			AuthorName:  strings.TrimSpace(head.GetAuthor().GetName()),
			AuthorLogin: strings.TrimSpace(head.GetAuthor().GetLogin()),
			AuthorEmail: strings.TrimSpace(head.GetAuthor().GetEmail()),
		}
	}
	if payload.HeadCommit.SHA == "" {
		payload.HeadCommit.SHA = payload.After
	}

	return payload, nil
}

// ParsePushEventFile reads the event JSON from disk.
func ParsePushEventFile(path string) (PushPayload, error) {
	f, err := os.Open(path)
	if err != nil {
		return PushPayload{}, fmt.Errorf("open event file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "failed to close event file: %v\n", closeErr)
		}
	}()

	return ParsePushEvent(f)
}

// SkipReason explains why the push should not be linted, or returns "" when
// it should.
func (p PushPayload) SkipReason() string {
	switch {
	case p.Deleted:
		return "branch deleted"
	case strings.HasPrefix(p.Ref, tagRefPrefix):
		return "tag push"
	case p.Branch == "":
		return fmt.Sprintf("unsupported ref %q", p.Ref)
	case p.HeadCommit.SHA == "" || strings.Trim(p.HeadCommit.SHA, "0") == "":
		return "push has no head commit"
	default:
		return ""
	}
}

// AuthorLogin returns the head commit author's login, falling back to the
// user who pushed.
func (p PushPayload) AuthorLogin() string {
	if p.HeadCommit.AuthorLogin != "" {
		return p.HeadCommit.AuthorLogin
	}
	return p.Sender
}
