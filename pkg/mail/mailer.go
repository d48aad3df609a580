package mail

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/mailgun/mailgun-go/v4"
)

// ErrMailDisabled signals that outbound email is disabled via configuration.
var ErrMailDisabled = errors.New("mail: delivery disabled")

// Message represents an outbound email.
type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// Mailer defines behaviour for sending email messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// MailgunSettings capture the runtime configuration required by the Mailgun mailer.
type MailgunSettings struct {
	Enabled bool
	Domain  string
	APIKey  string
	// APIBase overrides the API endpoint, e.g. mailgun.APIBaseEU.
	APIBase string
	From    string
	Timeout time.Duration
}

type mailgunClient interface {
	NewMessage(from, subject, text string, to ...string) *mailgun.Message
	Send(ctx context.Context, m *mailgun.Message) (string, string, error)
}

type mailgunMailer struct {
	cfg    MailgunSettings
	client mailgunClient
}

// NewMailgunMailer validates the settings and returns a Mailer backed by the Mailgun API.
func NewMailgunMailer(cfg MailgunSettings) (Mailer, error) {
	if err := validateMailgunConfig(cfg); err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := mailgun.NewMailgun(cfg.Domain, cfg.APIKey)
	if base := strings.TrimSpace(cfg.APIBase); base != "" {
		client.SetAPIBase(base)
	}

	return &mailgunMailer{cfg: cfg, client: client}, nil
}

func (m *mailgunMailer) Send(ctx context.Context, msg Message) error {
	if !m.cfg.Enabled {
		return ErrMailDisabled
	}

	recipients := uniqueAddresses(msg.To)
	if len(recipients) == 0 {
		return errors.New("mail: at least one recipient is required")
	}

	from := strings.TrimSpace(msg.From)
	if from == "" {
		from = m.cfg.From
	}
	if from == "" {
		return errors.New("mail: sender address is required")
	}
	if _, err := mail.ParseAddress(from); err != nil {
		return fmt.Errorf("mail: invalid from address: %w", err)
	}
	for _, rcpt := range recipients {
		if _, err := mail.ParseAddress(rcpt); err != nil {
			return fmt.Errorf("mail: invalid recipient address %q: %w", rcpt, err)
		}
	}

	message := m.client.NewMessage(from, escapeHeader(msg.Subject), msg.Body, recipients...)

	sendCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	if _, _, err := m.client.Send(sendCtx, message); err != nil {
		return fmt.Errorf("mail: mailgun send: %w", err)
	}
	return nil
}

func validateMailgunConfig(cfg MailgunSettings) error {
	if !cfg.Enabled {
		return nil
	}
	if strings.TrimSpace(cfg.Domain) == "" {
		return errors.New("mail: domain is required when enabled")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return errors.New("mail: api key is required when enabled")
	}
	return nil
}

func uniqueAddresses(addresses []string) []string {
	seen := make(map[string]struct{}, len(addresses))
	var result []string
	for _, addr := range addresses {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		if _, exists := seen[addr]; exists {
			continue
		}
		seen[addr] = struct{}{}
		result = append(result, addr)
	}
	return result
}

func escapeHeader(value string) string {
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.ReplaceAll(value, "\n", " ")
	return value
}
