// Package mailer provides a provider-agnostic interface for transactional
// email with a Postmark implementation for production and a logging sender
// for development.
package mailer

import "context"

// Sender sends a single transactional email.
type Sender interface {
	SendEmail(ctx context.Context, params SendEmailParams) error
}

// SendEmailParams are the parameters for one outbound email.
type SendEmailParams struct {
	SendTo   string // recipient address
	Subject  string
	BodyHTML string
	Tag      string // optional provider-side tag
}

// Config holds mailer configuration. The Postmark token is optional so
// development environments can run with the log sender.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL" envDefault:"no-reply@localhost"`
}
