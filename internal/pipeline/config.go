package pipeline

// Config captures the runtime controls the pipeline needs.
type Config struct {
	// ConfigFile is the lint configuration whose presence at the repository
	// root gates the pipeline.
	ConfigFile    string
	CommitMessage string
	CommitMarker  string
	// BranchPrefix, when set, moves remediation commits onto a prefixed branch
	// instead of the pushed one.
	BranchPrefix string
	// SkipRemediationCommits ignores pushes whose head commit carries
	// CommitMarker. Off by default: a rerun over fixed code commits nothing.
	SkipRemediationCommits bool
}

const (
	DefaultConfigFile    = "tslint.json"
	DefaultCommitMessage = "Automatic de-linting\n" + DefaultMarker
)

func (c Config) withDefaults() Config {
	if c.ConfigFile == "" {
		c.ConfigFile = DefaultConfigFile
	}
	if c.CommitMarker == "" {
		c.CommitMarker = DefaultMarker
	}
	if c.CommitMessage == "" {
		c.CommitMessage = DefaultCommitMessage
	}
	return c
}
