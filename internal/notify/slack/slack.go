// Package slack delivers tracker notifications to Slack channels.
package slack

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	slackapi "github.com/slack-go/slack"
	"github.com/zulandar/tracker/internal/config"
	"github.com/zulandar/tracker/internal/notify"
)

// maxRetries is the max number of retries for rate-limited API calls.
const maxRetries = 3

// Client abstracts the Slack API methods we use, enabling test mocks.
type Client interface {
	PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Notifier posts events to the channel mapped to each user.
type Notifier struct {
	client         Client
	defaultChannel string
	userChannels   map[string]string
}

// New builds a Notifier from config. A nil client creates a real Slack client
// from the configured bot token.
func New(cfg config.SlackConfig, client Client) (*Notifier, error) {
	if client == nil {
		if cfg.BotToken == "" {
			return nil, fmt.Errorf("slack: bot token is required")
		}
		client = slackapi.New(cfg.BotToken)
	}
	return &Notifier{
		client:         client,
		defaultChannel: cfg.DefaultChannel,
		userChannels:   cfg.UserChannels,
	}, nil
}

// Channel returns the channel a user's notifications go to, or "".
func (n *Notifier) Channel(userID string) string {
	if ch, ok := n.userChannels[userID]; ok && ch != "" {
		return ch
	}
	return n.defaultChannel
}

// Notify implements notify.Notifier. Users with no channel are skipped.
func (n *Notifier) Notify(ctx context.Context, userID string, e notify.Event) error {
	channel := n.Channel(userID)
	if channel == "" {
		return nil
	}
	opts := buildMessageOptions(e)
	err := retryOnRateLimit(ctx, func() error {
		_, _, err := n.client.PostMessage(channel, opts...)
		return err
	})
	if err != nil {
		return fmt.Errorf("slack: post to %s: %w", channel, err)
	}
	return nil
}

// buildMessageOptions renders an event as an attachment with a text fallback.
func buildMessageOptions(e notify.Event) []slackapi.MsgOption {
	return []slackapi.MsgOption{
		slackapi.MsgOptionAttachments(eventToAttachment(e)),
		slackapi.MsgOptionText(notify.Text(e), false),
	}
}

func eventToAttachment(e notify.Event) slackapi.Attachment {
	title := notify.Headline(e)
	att := slackapi.Attachment{
		Title:    title,
		Text:     e.Summary,
		Color:    notify.SeverityColor(notify.Severity(e.Kind)),
		Fallback: title,
	}
	if e.ActorID != "" {
		att.Footer = "by " + e.ActorID
	}
	for _, f := range e.Fields {
		att.Fields = append(att.Fields, slackapi.AttachmentField{
			Title: f.Name,
			Value: f.Value,
			Short: f.Short,
		})
	}
	return att
}

// retryOnRateLimit calls fn and retries with backoff on Slack rate limit errors.
// It respects context cancellation and the RetryAfter duration from Slack.
func retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		var rle *slackapi.RateLimitedError
		if !errors.As(err, &rle) || attempt == maxRetries {
			return err
		}

		wait := rle.RetryAfter
		if wait <= 0 {
			wait = time.Duration(math.Pow(2, float64(attempt))) * time.Second
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil
}
