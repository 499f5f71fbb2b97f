package svix

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/flexprice/membership/internal/config"
	ierr "github.com/flexprice/membership/internal/errors"
	svix "github.com/svix/svix-webhooks/go"
	"github.com/svix/svix-webhooks/go/models"
)

// Client wraps the Svix SDK client for the single configured application
type Client struct {
	client  *svix.Svix
	appID   string
	enabled bool
}

// NewClient creates a new Svix client. A disabled client accepts calls and does nothing.
func NewClient(cfg *config.Configuration) (*Client, error) {
	if !cfg.Webhook.Svix.Enabled {
		return &Client{enabled: false}, nil
	}

	serverURL, err := url.Parse(cfg.Webhook.Svix.BaseURL)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid svix base URL").
			Mark(ierr.ErrValidation)
	}

	svixClient, err := svix.New(cfg.Webhook.Svix.AuthToken, &svix.SvixOptions{
		ServerUrl: serverURL,
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to create svix client").
			Mark(ierr.ErrSystem)
	}

	return &Client{
		client:  svixClient,
		appID:   cfg.Webhook.Svix.AppID,
		enabled: true,
	}, nil
}

func (c *Client) Enabled() bool {
	return c != nil && c.enabled && c.client != nil
}

// EnsureApplication creates the configured application when it does not exist yet
func (c *Client) EnsureApplication(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}

	if _, err := c.client.Application.Get(ctx, c.appID); err == nil {
		return nil
	}

	appID := c.appID
	if _, err := c.client.Application.Create(ctx, models.ApplicationIn{
		Name: appID,
		Uid:  &appID,
	}, &svix.ApplicationCreateOptions{}); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create svix application").
			Mark(ierr.ErrHTTPClient)
	}
	return nil
}

// SendMessage sends a webhook message. eventID deduplicates redeliveries of the same transition.
func (c *Client) SendMessage(ctx context.Context, eventType, eventID string, payload json.RawMessage) error {
	if !c.Enabled() {
		return nil
	}

	var payloadMap map[string]interface{}
	if err := json.Unmarshal(payload, &payloadMap); err != nil {
		return ierr.WithError(err).
			WithHint("Webhook payload is not a JSON object").
			Mark(ierr.ErrValidation)
	}

	_, err := c.client.Message.Create(ctx, c.appID, models.MessageIn{
		EventType: eventType,
		EventId:   &eventID,
		Payload:   payloadMap,
	}, &svix.MessageCreateOptions{
		IdempotencyKey: &eventID,
	})
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to send webhook via svix").
			WithReportableDetails(map[string]any{
				"event_type": eventType,
				"event_id":   eventID,
			}).
			Mark(ierr.ErrHTTPClient)
	}

	return nil
}
