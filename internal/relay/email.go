package relay

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/charlesng35/waitlist/internal/models"
	"github.com/charlesng35/waitlist/pkg/mail"
)

// Email notifies a fixed list of addresses about every new lead.
type Email struct {
	mailer mail.Mailer
	from   string
	to     []string
}

// NewEmail returns nil when there is no mailer or no recipient.
func NewEmail(mailer mail.Mailer, from string, to []string) *Email {
	if mailer == nil || len(to) == 0 {
		return nil
	}
	return &Email{mailer: mailer, from: from, to: to}
}

// Name implements Named.
func (e *Email) Name() string { return "email" }

// Deliver sends a plain-text summary of the lead.
func (e *Email) Deliver(ctx context.Context, lead models.Lead) error {
	if e == nil {
		return errors.New("relay: email not configured")
	}
	err := e.mailer.Send(ctx, mail.Message{
		From:    e.from,
		To:      e.to,
		Subject: fmt.Sprintf("New waitlist lead: %s", lead.Email),
		Body:    summarize(lead),
	})
	if err != nil {
		return fmt.Errorf("relay: email: %w", err)
	}
	return nil
}

func summarize(lead models.Lead) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Email: %s\n", lead.Email)
	fmt.Fprintf(&b, "Role: %s\n", lead.Role)
	fmt.Fprintf(&b, "Use case: %s\n", lead.UseCase)
	fmt.Fprintf(&b, "Challenge: %s\n", lead.Challenge)
	fmt.Fprintf(&b, "Count: %s\n", lead.Count)
	fmt.Fprintf(&b, "Company: %s\n", lead.Company)
	fmt.Fprintf(&b, "Submitted: %s\n", lead.SubmittedAt.UTC().Format("2006-01-02 15:04:05 MST"))

	if len(lead.Meta) > 0 {
		keys := make([]string, 0, len(lead.Meta))
		for k := range lead.Meta {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("\nMeta:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s: %v\n", k, lead.Meta[k])
		}
	}
	return b.String()
}
