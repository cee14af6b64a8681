package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"

	"github.com/rancher/delint-action/internal/lint"
	"github.com/rancher/delint-action/internal/pipeline"
)

const (
	gitBackendShell = "shell"
	gitBackendGoGit = "go-git"
)

var supportedGitBackends = map[string]struct{}{
	gitBackendShell: {},
	gitBackendGoGit: {},
}

// Config captures runtime options sourced from GitHub Action inputs or environment variables.
type Config struct {
	GitHubToken     string `env:"INPUT_GITHUB_TOKEN"`
	GitHubBaseURL   string `env:"INPUT_GITHUB_BASE_URL"`
	GitHubUploadURL string `env:"INPUT_GITHUB_UPLOAD_URL"`

	DryRun    bool   `env:"INPUT_DRY_RUN, default=false"`
	Verbose   bool   `env:"INPUT_VERBOSE, default=false"`
	LogLevel  string `env:"INPUT_LOG_LEVEL, default=info"`
	LogFormat string `env:"INPUT_LOG_FORMAT, default=text"`

	LintMode         string        `env:"INPUT_LINT_MODE, default=single-pass"`
	LintCommand      string        `env:"INPUT_LINT_COMMAND, default=npx tslint --project . --fix"`
	LintCheckCommand string        `env:"INPUT_LINT_CHECK_COMMAND, default=npx tslint --project ."`
	LintFixCommand   string        `env:"INPUT_LINT_FIX_COMMAND, default=npx tslint --project . --fix"`
	LintConfigFile   string        `env:"INPUT_LINT_CONFIG_FILE, default=tslint.json"`
	LintTimeout      time.Duration `env:"INPUT_LINT_TIMEOUT, default=10m"`

	GitBackend        string        `env:"INPUT_GIT_BACKEND, default=shell"`
	GitUserName       string        `env:"INPUT_GIT_USER_NAME, default=Rancher Delint Bot"`
	GitUserEmail      string        `env:"INPUT_GIT_USER_EMAIL, default=no-reply@rancher.com"`
	GitSigningKey     string        `env:"INPUT_GIT_SIGNING_KEY"`
	GitSigningPass    string        `env:"INPUT_GIT_SIGNING_PASSPHRASE"`
	GitNetworkTimeout time.Duration `env:"INPUT_GIT_NETWORK_TIMEOUT, default=2m"`

	CommitMessage string `env:"INPUT_COMMIT_MESSAGE"`
	CommitMarker  string `env:"INPUT_COMMIT_MARKER, default=[auto-delint]"`
	BranchPrefix  string `env:"INPUT_BRANCH_PREFIX"`
	StatusContext string `env:"INPUT_STATUS_CONTEXT, default=linting/atomist"`

	SkipRemediationCommits bool `env:"INPUT_SKIP_REMEDIATION_COMMITS, default=false"`

	SlackToken         string `env:"INPUT_SLACK_TOKEN"`
	SlackAPIURL        string `env:"INPUT_SLACK_API_URL"`
	ChatIdentitiesFile string `env:"INPUT_CHAT_IDENTITIES_FILE"`
	PushgatewayURL     string `env:"INPUT_PUSHGATEWAY_URL"`

	Action ActionEnv
}

// ActionEnv holds the workflow context GitHub Actions exports to every step.
type ActionEnv struct {
	EventName   string `env:"GITHUB_EVENT_NAME"`
	EventPath   string `env:"GITHUB_EVENT_PATH"`
	ServerURL   string `env:"GITHUB_SERVER_URL, default=https://github.com"`
	Repository  string `env:"GITHUB_REPOSITORY"`
	RunID       string `env:"GITHUB_RUN_ID"`
	StepSummary string `env:"GITHUB_STEP_SUMMARY"`
	Output      string `env:"GITHUB_OUTPUT"`
	// FallbackToken is the workflow token, used when no explicit token input is set.
	FallbackToken string `env:"GITHUB_TOKEN"`
}

// LoadConfig reads action inputs from the environment, applies defaults, and performs validation.
func LoadConfig(ctx context.Context) (Config, error) {
	return LoadConfigFrom(ctx, envconfig.OsLookuper())
}

// LoadConfigFrom is LoadConfig with an explicit source of variables.
func LoadConfigFrom(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: nonEmptyLookuper{lookuper},
	}); err != nil {
		return Config{}, fmt.Errorf("process action inputs: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) normalize() error {
	if cfg.GitHubToken == "" {
		cfg.GitHubToken = cfg.Action.FallbackToken
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	cfg.GitBackend = strings.ToLower(cfg.GitBackend)

	if cfg.CommitMessage == "" {
		cfg.CommitMessage = pipeline.DefaultCommitMessage
	}
	// Action inputs cannot carry literal newlines in every runner; accept \n escapes.
	cfg.CommitMessage = strings.ReplaceAll(cfg.CommitMessage, `\n`, "\n")

	if cfg.GitHubToken == "" {
		return fmt.Errorf("github token is required (set INPUT_GITHUB_TOKEN or GITHUB_TOKEN)")
	}

	if (cfg.GitHubBaseURL == "") != (cfg.GitHubUploadURL == "") {
		return fmt.Errorf("INPUT_GITHUB_BASE_URL and INPUT_GITHUB_UPLOAD_URL must both be set for GitHub Enterprise")
	}

	supportedFormats := map[string]struct{}{"text": {}, "json": {}}
	if _, ok := supportedFormats[cfg.LogFormat]; !ok {
		return fmt.Errorf("unsupported log format %q", cfg.LogFormat)
	}

	mode, err := lint.ParseMode(cfg.LintMode)
	if err != nil {
		return err
	}
	cfg.LintMode = string(mode)

	if _, ok := supportedGitBackends[cfg.GitBackend]; !ok {
		return fmt.Errorf("unsupported git backend %q", cfg.GitBackend)
	}

	if cfg.GitBackend == gitBackendGoGit && cfg.GitSigningKey != "" {
		return fmt.Errorf("commit signing requires the %q git backend", gitBackendShell)
	}

	if cfg.LintTimeout <= 0 {
		return fmt.Errorf("lint timeout must be positive, got %s", cfg.LintTimeout)
	}

	if strings.ContainsAny(cfg.LintConfigFile, `\`) || strings.HasPrefix(cfg.LintConfigFile, "/") {
		return fmt.Errorf("lint config file must be relative to the repository root, got %q", cfg.LintConfigFile)
	}

	if cfg.Verbose {
		cfg.LogLevel = "debug"
	}

	return nil
}

// nonEmptyLookuper treats blank variables as unset. GitHub Actions exports
// every declared input, so unset inputs arrive as empty strings.
type nonEmptyLookuper struct {
	envconfig.Lookuper
}

func (l nonEmptyLookuper) Lookup(key string) (string, bool) {
	v, ok := l.Lookuper.Lookup(key)
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
