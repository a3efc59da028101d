// Package notify provides notification delivery over email, webhook and Telegram channels.
package notify

import (
	"context"
	"fmt"
	"log/slog"
)

// Channel represents a notification channel type.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWebhook  Channel = "webhook"
	ChannelTelegram Channel = "telegram"
)

// Digest holds the headline numbers of a report for channels that carry
// structured data.
type Digest struct {
	Date     string `json:"date"`
	Source   string `json:"source,omitempty"`
	Articles int    `json:"articles"`
	Journals int    `json:"journals"`
	Sample   bool   `json:"sample"`
}

// Message represents a notification message.
type Message struct {
	Title    string  `json:"title"`
	Body     string  `json:"body"`                // plain-text rendition
	HTMLBody string  `json:"html_body,omitempty"` // rich HTML alternative
	URL      string  `json:"url,omitempty"`
	Digest   *Digest `json:"digest,omitempty"`
}

// Notifier defines the interface for sending notifications.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
	Channel() Channel
}

// Dispatcher sends a message to every registered notifier in registration order.
type Dispatcher struct {
	notifiers []Notifier
	logger    *slog.Logger
}

// NewDispatcher creates a new notification dispatcher.
func NewDispatcher(notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{
		notifiers: notifiers,
		logger:    slog.Default(),
	}
}

// Register adds a notifier to the dispatcher.
func (d *Dispatcher) Register(n Notifier) {
	d.notifiers = append(d.notifiers, n)
}

// Channels lists registered channels in order.
func (d *Dispatcher) Channels() []Channel {
	out := make([]Channel, 0, len(d.notifiers))
	for _, n := range d.notifiers {
		out = append(out, n.Channel())
	}
	return out
}

// Dispatch attempts every notifier; one failing channel does not stop the rest.
// The returned map holds the error for each failed channel.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) map[Channel]error {
	failures := make(map[Channel]error)
	for _, n := range d.notifiers {
		if err := n.Send(ctx, msg); err != nil {
			d.logger.Error("notification failed", "channel", n.Channel(), "error", err)
			failures[n.Channel()] = fmt.Errorf("%s: %w", n.Channel(), err)
			continue
		}
		d.logger.Info("notification sent", "channel", n.Channel(), "title", msg.Title)
	}
	return failures
}
