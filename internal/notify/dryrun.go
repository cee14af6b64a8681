package notify

import (
	"context"
	"log/slog"
)

// NewDryRunMessenger returns a Messenger that logs messages instead of
// delivering them.
func NewDryRunMessenger(log *slog.Logger) Messenger {
	return dryRunMessenger{log: log}
}

type dryRunMessenger struct {
	log *slog.Logger
}

func (m dryRunMessenger) Send(_ context.Context, recipient string, msg Message) error {
	if m.log != nil {
		m.log.Info("dry run: skipping chat notification", "recipient", recipient, "text", msg.Text)
	}
	return nil
}
