// Package discord delivers tracker notifications to Discord channels.
package discord

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/zulandar/tracker/internal/config"
	"github.com/zulandar/tracker/internal/notify"
)

const (
	// maxRetries is the max number of retries for rate-limited API calls.
	maxRetries = 3
	// baseBackoff is the initial backoff after a 429.
	baseBackoff = 2 * time.Second
	// maxBackoff caps the exponential backoff.
	maxBackoff = 30 * time.Second
)

// Session abstracts the discordgo.Session methods we use, enabling test mocks.
type Session interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Notifier posts events as embeds to the channel mapped to each user.
type Notifier struct {
	sess         Session
	channelID    string
	userChannels map[string]string
	baseBackoff  time.Duration
}

// New builds a Notifier from config. A nil session creates a REST-only
// discordgo session from the bot token; no gateway connection is opened.
func New(cfg config.DiscordConfig, sess Session) (*Notifier, error) {
	if sess == nil {
		if cfg.BotToken == "" {
			return nil, fmt.Errorf("discord: bot token is required")
		}
		s, err := discordgo.New("Bot " + cfg.BotToken)
		if err != nil {
			return nil, fmt.Errorf("discord: create session: %w", err)
		}
		sess = s
	}
	return &Notifier{
		sess:         sess,
		channelID:    cfg.ChannelID,
		userChannels: cfg.UserChannels,
		baseBackoff:  baseBackoff,
	}, nil
}

// Channel returns the channel a user's notifications go to, or "".
func (n *Notifier) Channel(userID string) string {
	if ch, ok := n.userChannels[userID]; ok && ch != "" {
		return ch
	}
	return n.channelID
}

// Notify implements notify.Notifier. Users with no channel are skipped.
func (n *Notifier) Notify(ctx context.Context, userID string, e notify.Event) error {
	channel := n.Channel(userID)
	if channel == "" {
		return nil
	}
	data := buildMessageSend(e)
	err := n.retryOnRateLimit(ctx, func() error {
		_, err := n.sess.ChannelMessageSendComplex(channel, data, discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		return fmt.Errorf("discord: send to %s: %w", channel, err)
	}
	return nil
}

func buildMessageSend(e notify.Event) *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Content: notify.Text(e),
		Embeds:  []*discordgo.MessageEmbed{eventToEmbed(e)},
	}
}

func eventToEmbed(e notify.Event) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       notify.Headline(e),
		Description: e.Summary,
		Color:       parseHexColor(notify.SeverityColor(notify.Severity(e.Kind))),
	}
	if e.ActorID != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "by " + e.ActorID}
	}
	for _, f := range e.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Short,
		})
	}
	return embed
}

// parseHexColor converts "#rrggbb" into the integer form Discord expects.
func parseHexColor(hex string) int {
	if len(hex) > 0 && hex[0] == '#' {
		hex = hex[1:]
	}
	var color int
	for _, c := range hex {
		color <<= 4
		switch {
		case c >= '0' && c <= '9':
			color |= int(c - '0')
		case c >= 'a' && c <= 'f':
			color |= int(c-'a') + 10
		case c >= 'A' && c <= 'F':
			color |= int(c-'A') + 10
		}
	}
	return color
}

// retryOnRateLimit calls fn and retries with exponential backoff on HTTP 429.
func (n *Notifier) retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		var restErr *discordgo.RESTError
		if !errors.As(err, &restErr) || restErr.Response == nil ||
			restErr.Response.StatusCode != http.StatusTooManyRequests || attempt == maxRetries {
			return err
		}

		wait := time.Duration(math.Pow(2, float64(attempt))) * n.baseBackoff
		if wait > maxBackoff {
			wait = maxBackoff
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil
}
