package pipeline

// PushEvent is the slice of a push notification the pipeline acts on.
type PushEvent struct {
	Owner     string
	Repo      string
	Branch    string
	BeforeSHA string
	After     Commit
}

// Commit describes the head commit of a push.
type Commit struct {
	SHA         string
	Message     string
	AuthorLogin string
	AuthorEmail string
	// AuthorChatIdentity is nil when the author has no known chat account.
	AuthorChatIdentity *string
}

// ChatIdentity returns the author's chat identity, if one was resolved.
func (c Commit) ChatIdentity() (string, bool) {
	if c.AuthorChatIdentity == nil || *c.AuthorChatIdentity == "" {
		return "", false
	}
	return *c.AuthorChatIdentity, true
}

// FullName returns owner/repo.
func (p PushEvent) FullName() string {
	return p.Owner + "/" + p.Repo
}
