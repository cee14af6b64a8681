package app

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rancher/delint-action/internal/pipeline"
)

func (r *Runner) writeStepSummary(result pipeline.Result) error {
	path := strings.TrimSpace(r.cfg.Action.StepSummary)
	if path == "" {
		return nil
	}

	var builder strings.Builder
	builder.WriteString("## Delint action summary\n\n")
	builder.WriteString(renderResultDetails(result))

	return appendFile(path, builder.String(), "step summary")
}

func (r *Runner) writeGitHubOutputs(result pipeline.Result) error {
	path := strings.TrimSpace(r.cfg.Action.Output)
	if path == "" {
		return nil
	}

	out := outputResult{
		Code:          result.Code,
		Stage:         string(result.Stage),
		FailedAt:      string(result.FailedAt),
		Message:       result.Message,
		Branch:        result.Branch,
		Committed:     result.Committed,
		Notified:      result.Notified,
		StatusState:   result.StatusState,
		StatusPosted:  result.StatusPosted,
		Skipped:       result.Skipped,
		SkippedReason: result.SkippedReason,
	}
	if result.Lint != nil {
		code := result.Lint.ExitCode
		out.LintExitCode = &code
	}

	resultJSON, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	var builder strings.Builder
	if err := writeMultilineOutput(&builder, "result", string(resultJSON)); err != nil {
		return err
	}
	fmt.Fprintf(&builder, "committed=%t\n", result.Committed)

	return appendFile(path, builder.String(), "github output")
}

func renderResultDetails(result pipeline.Result) string {
	var builder strings.Builder

	if result.Skipped {
		reason := result.SkippedReason
		if reason == "" {
			reason = "run skipped"
		}
		builder.WriteString(fmt.Sprintf("Skipped linting: %s\n", sanitizeMarkdownCell(reason)))
		return builder.String()
	}

	lintCell := "-"
	if result.Lint != nil {
		lintCell = strconv.Itoa(result.Lint.ExitCode)
	}

	stage := string(result.Stage)
	if result.FailedAt != "" {
		stage = fmt.Sprintf("%s (%s)", stage, result.FailedAt)
	}

	statusCell := result.StatusState
	if statusCell != "" && !result.StatusPosted {
		statusCell += " (not posted)"
	}

	builder.WriteString("| Stage | Lint exit code | Branch | Committed | Notified | Status | Details |\n")
	builder.WriteString("| --- | --- | --- | --- | --- | --- | --- |\n")
	builder.WriteString(fmt.Sprintf("| %s | %s | %s | %t | %t | %s | %s |\n",
		sanitizeMarkdownCell(stage),
		lintCell,
		sanitizeMarkdownCell(result.Branch),
		result.Committed,
		result.Notified,
		sanitizeMarkdownCell(statusCell),
		sanitizeMarkdownCell(result.Message),
	))

	return builder.String()
}

type outputResult struct {
	Code          int    `json:"code"`
	Stage         string `json:"stage"`
	FailedAt      string `json:"failed_at,omitempty"`
	Message       string `json:"message"`
	LintExitCode  *int   `json:"lint_exit_code,omitempty"`
	Branch        string `json:"branch,omitempty"`
	Committed     bool   `json:"committed"`
	Notified      bool   `json:"notified"`
	StatusState   string `json:"status_state,omitempty"`
	StatusPosted  bool   `json:"status_posted"`
	Skipped       bool   `json:"skipped"`
	SkippedReason string `json:"skipped_reason,omitempty"`
}

func appendFile(path, content, what string) error {
	// GitHub Actions normally creates the directory already; a failure here
	// still leaves OpenFile to report the real problem.
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			fmt.Fprintf(os.Stderr, "warning: could not create %s directory: %v\n", what, mkErr)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", what, err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "failed to close %s file: %v\n", what, closeErr)
		}
	}()

	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	if _, err := file.WriteString(content); err != nil {
		return fmt.Errorf("write %s: %w", what, err)
	}
	return nil
}

func writeMultilineOutput(w io.Writer, key, value string) error {
	if _, err := fmt.Fprintf(w, "%s<<EOF\n%s\nEOF\n", key, value); err != nil {
		return fmt.Errorf("write output %s: %w", key, err)
	}
	return nil
}

func sanitizeMarkdownCell(value string) string {
	value = strings.ReplaceAll(value, "|", "\\|")
	value = strings.ReplaceAll(value, "\n", "<br>")
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return value
}
