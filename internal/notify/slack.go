package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/slack-go/slack"
)

// SlackMessenger delivers messages through the Slack Web API.
type SlackMessenger struct {
	client *slack.Client
}

// NewSlackMessenger returns a messenger authenticated with token. apiURL
// overrides the Slack API endpoint when non-empty and must end with a slash.
func NewSlackMessenger(token, apiURL string) (*SlackMessenger, error) {
	if token == "" {
		return nil, fmt.Errorf("slack token is required")
	}
	var opts []slack.Option
	if apiURL != "" {
		opts = append(opts, slack.OptionAPIURL(apiURL))
	}
	return &SlackMessenger{client: slack.New(token, opts...)}, nil
}

// Send posts msg as a direct message to recipient, a Slack user or channel id.
func (m *SlackMessenger) Send(ctx context.Context, recipient string, msg Message) error {
	attachments := make([]slack.Attachment, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		var ts json.Number
		if a.Timestamp > 0 {
			ts = json.Number(strconv.FormatInt(a.Timestamp, 10))
		}
		attachments = append(attachments, slack.Attachment{
			Color:      a.Color,
			Fallback:   a.Fallback,
			Title:      a.Title,
			Text:       a.Text,
			MarkdownIn: a.MarkdownIn,
			Footer:     a.Footer,
			FooterIcon: a.FooterIcon,
			Ts:         ts,
		})
	}

	_, _, err := m.client.PostMessageContext(ctx, recipient,
		slack.MsgOptionText(msg.Text, false),
		slack.MsgOptionAttachments(attachments...),
	)
	if err != nil {
		return fmt.Errorf("post slack message to %s: %w", recipient, err)
	}
	return nil
}
