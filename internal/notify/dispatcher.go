package notify

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/rancher/delint-action/internal/lint"
	"github.com/rancher/delint-action/internal/pipeline"
)

const (
	failureColor      = "#D94649"
	failureTitle      = "Linting of TypeScript sources failed"
	defaultFooterIcon = "https://images.atomist.com/rug/commit.png"
)

// Dispatcher builds lint failure messages and hands them to a Messenger.
type Dispatcher struct {
	messenger  Messenger
	log        *slog.Logger
	now        func() time.Time
	footerIcon string
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// WithClock overrides the clock used for attachment timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// WithFooterIcon sets the attachment footer icon URL.
func WithFooterIcon(url string) Option {
	return func(d *Dispatcher) { d.footerIcon = url }
}

// NewDispatcher returns a Dispatcher delivering through m.
func NewDispatcher(m Messenger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		messenger:  m,
		now:        time.Now,
		footerIcon: defaultFooterIcon,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Notify sends the lint output to the push author when lint failed with output
// and the author has a chat identity. It reports whether a message was
// delivered; delivery errors are logged and swallowed.
func (d *Dispatcher) Notify(ctx context.Context, push pipeline.PushEvent, outcome lint.Outcome, baseDir string) bool {
	if outcome.Passed() || strings.TrimSpace(outcome.Output) == "" {
		return false
	}

	recipient, ok := push.After.ChatIdentity()
	if !ok {
		if d.log != nil {
			d.log.Info("skipping lint notification: author has no chat identity", "author", push.After.AuthorLogin)
		}
		return false
	}
	if d.messenger == nil {
		return false
	}

	if err := d.messenger.Send(ctx, recipient, d.Build(push, outcome, baseDir)); err != nil {
		if d.log != nil {
			d.log.Warn("failed to deliver lint notification", "recipient", recipient, "error", fmt.Errorf("%w: %w", pipeline.ErrNotificationDelivery, err))
		}
		return false
	}

	if d.log != nil {
		d.log.Info("sent lint notification", "recipient", recipient)
	}
	return true
}

// Build renders the failure message for push. Every occurrence of baseDir is
// removed from the lint output.
func (d *Dispatcher) Build(push pipeline.PushEvent, outcome lint.Outcome, baseDir string) Message {
	repo := push.FullName()
	return Message{
		Text: fmt.Sprintf("Linting failed after your push to `%s`", repo),
		Attachments: []Attachment{{
			Color:      failureColor,
			Fallback:   failureTitle,
			Title:      failureTitle,
			Text:       "```" + StripPath(outcome.Output, baseDir) + "```",
			MarkdownIn: []string{"text"},
			Footer:     repo,
			FooterIcon: d.footerIcon,
			Timestamp:  d.now().Unix(),
		}},
	}
}

// StripPath removes dir, and its symlink-resolved form, from output.
func StripPath(output, dir string) string {
	if dir == "" {
		return output
	}

	paths := []string{dir}
	if resolved, err := filepath.EvalSymlinks(dir); err == nil && resolved != dir {
		paths = append(paths, resolved)
	}
	// Replace the longer path first so one never leaves a fragment of the other.
	if len(paths) == 2 && len(paths[1]) > len(paths[0]) {
		paths[0], paths[1] = paths[1], paths[0]
	}

	// Removing one occurrence can join its neighbours into a new one.
	for {
		found := false
		for _, p := range paths {
			if strings.Contains(output, p) {
				output = strings.ReplaceAll(output, p, "")
				found = true
			}
		}
		if !found {
			return output
		}
	}
}
