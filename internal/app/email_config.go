package app

import (
	"strings"

	"github.com/charlesng35/waitlist/pkg/mail"
)

// MailgunSettings converts EmailConfig to the mail package representation.
func (c EmailConfig) MailgunSettings() mail.MailgunSettings {
	return mail.MailgunSettings{
		Enabled: c.Mailgun.Enabled,
		Domain:  strings.TrimSpace(c.Mailgun.Domain),
		APIKey:  strings.TrimSpace(c.Mailgun.APIKey),
		APIBase: strings.TrimSpace(c.Mailgun.APIBase),
		From:    strings.TrimSpace(c.Mailgun.From),
		Timeout: c.Mailgun.Timeout,
	}
}
