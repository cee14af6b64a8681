// Package notify tells the pushing author about lint failures over chat.
package notify

import "context"

// Message is a chat message with optional rich attachments.
type Message struct {
	Text        string
	Attachments []Attachment
}

// Attachment is a formatted block rendered below the message text.
type Attachment struct {
	Color      string
	Fallback   string
	Title      string
	Text       string
	MarkdownIn []string
	Footer     string
	FooterIcon string
	// Timestamp is in unix seconds.
	Timestamp int64
}

// Messenger delivers a message to a single chat user.
type Messenger interface {
	Send(ctx context.Context, recipient string, msg Message) error
}
