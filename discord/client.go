package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"disbahn/apperrors"

	"github.com/bwmarrin/discordgo"
)

// Webhook identifies one execute-webhook endpoint.
type Webhook struct {
	ID    uint64
	Token string
}

// ParseWebhookURL extracts the webhook ID and token from a Discord webhook
// URL of the form https://discord.com/api/webhooks/<id>/<token>.
func ParseWebhookURL(rawURL string) (Webhook, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Webhook{}, fmt.Errorf("invalid webhook URL: %w", err)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	idx := -1
	for i, part := range parts {
		if part == "webhooks" {
			idx = i
			break
		}
	}
	if idx < 0 || len(parts) < idx+3 {
		return Webhook{}, fmt.Errorf("invalid webhook URL %q: missing ID or token", rawURL)
	}

	id, err := strconv.ParseUint(parts[idx+1], 10, 64)
	if err != nil {
		return Webhook{}, fmt.Errorf("invalid webhook ID in URL %q: %w", rawURL, err)
	}

	return Webhook{ID: id, Token: parts[idx+2]}, nil
}

// Payload is the rendered announcement content sent through a webhook.
type Payload struct {
	Embeds []*discordgo.MessageEmbed
}

// Client posts and edits announcement messages through Discord webhooks.
// The session carries no bot token: webhook endpoints authenticate with the
// token embedded in their URL.
type Client struct {
	session *discordgo.Session
	tokens  map[uint64]string
	ids     []uint64 // configuration order, deduplicated
}

// NewClient creates a client serving the given webhooks.
func NewClient(webhooks []Webhook) (*Client, error) {
	if len(webhooks) == 0 {
		return nil, fmt.Errorf("no webhooks configured")
	}

	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	c := &Client{
		session: session,
		tokens:  make(map[uint64]string, len(webhooks)),
	}
	for _, wh := range webhooks {
		if _, ok := c.tokens[wh.ID]; ok {
			continue
		}
		c.tokens[wh.ID] = wh.Token
		c.ids = append(c.ids, wh.ID)
	}

	return c, nil
}

// WebhookIDs returns the configured webhook IDs in configuration order.
func (c *Client) WebhookIDs() []uint64 {
	ids := make([]uint64, len(c.ids))
	copy(ids, c.ids)
	return ids
}

// Create posts the payload through the webhook and returns the ID of the
// new message.
func (c *Client) Create(ctx context.Context, webhookID uint64, payload any) (uint64, error) {
	content, token, err := c.resolve(webhookID, payload)
	if err != nil {
		return 0, err
	}

	params := &discordgo.WebhookParams{Embeds: content.Embeds}
	msg, err := c.session.WebhookExecute(formatID(webhookID), token, true, params, discordgo.WithContext(ctx))
	if err != nil {
		return 0, fmt.Errorf("failed to execute webhook %d: %w: %w", webhookID, apperrors.ErrDeliveryFailed, err)
	}

	messageID, err := strconv.ParseUint(msg.ID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse message ID %q from webhook %d: %w", msg.ID, webhookID, err)
	}
	return messageID, nil
}

// Edit replaces the content of a message previously posted through the
// webhook. A message deleted on the remote side is reported as
// apperrors.ErrMessageGone.
func (c *Client) Edit(ctx context.Context, webhookID uint64, messageID uint64, payload any) error {
	content, token, err := c.resolve(webhookID, payload)
	if err != nil {
		return err
	}

	edit := &discordgo.WebhookEdit{Embeds: &content.Embeds}
	_, err = c.session.WebhookMessageEdit(formatID(webhookID), token, formatID(messageID), edit, discordgo.WithContext(ctx))
	if err != nil {
		if isUnknownMessage(err) {
			return fmt.Errorf("message %d on webhook %d: %w", messageID, webhookID, apperrors.ErrMessageGone)
		}
		return fmt.Errorf("failed to edit message %d on webhook %d: %w: %w",
			messageID, webhookID, apperrors.ErrDeliveryFailed, err)
	}
	return nil
}

// resolve checks the payload type and looks up the webhook's token.
func (c *Client) resolve(webhookID uint64, payload any) (Payload, string, error) {
	content, ok := payload.(Payload)
	if !ok {
		return Payload{}, "", fmt.Errorf("unsupported payload type %T: %w", payload, apperrors.ErrDeliveryFailed)
	}
	token, ok := c.tokens[webhookID]
	if !ok {
		return Payload{}, "", fmt.Errorf("webhook %d is not configured: %w", webhookID, apperrors.ErrDeliveryFailed)
	}
	return content, token, nil
}

// isUnknownMessage reports whether err is Discord's answer to editing a
// message that no longer exists.
func isUnknownMessage(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Message != nil {
		return restErr.Message.Code == discordgo.ErrCodeUnknownMessage
	}
	return restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
}

func formatID(id uint64) string {
	return strconv.FormatUint(id, 10)
}
