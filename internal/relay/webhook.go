package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/charlesng35/waitlist/internal/models"
)

const defaultWebhookTimeout = 10 * time.Second

// Webhook posts a JSON mirror of each stored lead to a fixed URL, e.g. a Zapier or Make hook.
type Webhook struct {
	url    string
	client *resty.Client
}

// NewWebhook returns nil when url is blank, which disables the relay.
func NewWebhook(url string, timeout time.Duration) *Webhook {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "waitlist-relay/1")
	return &Webhook{url: url, client: client}
}

// Name implements Named.
func (w *Webhook) Name() string { return "webhook" }

// Deliver posts the lead and treats any non-2xx status as a failure.
func (w *Webhook) Deliver(ctx context.Context, lead models.Lead) error {
	if w == nil {
		return errors.New("relay: webhook not configured")
	}
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(lead).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("relay: webhook post: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("relay: webhook responded %d", resp.StatusCode())
	}
	return nil
}
